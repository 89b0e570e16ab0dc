package render

// templates maps template names to Liquid sources. Values that come from
// members or event organisers always pass through the escape filter.
var templates = map[string]string{
	"deadline_reminder.subject": `Please RSVP: {{ event_title }}`,
	"deadline_reminder.html": `<html><body style="font-family: Arial, sans-serif; color: #222;">
<p>Hi {{ member_name | default: "there" | escape }},</p>
<p>We haven't heard from you yet about <strong>{{ event_title | escape }}</strong> on {{ event_starts }}{% if event_location != "" %} at {{ event_location | escape }}{% endif %}.</p>
{% if event_deadline != "" %}<p>Please let us know by {{ event_deadline }}.</p>{% endif %}
<p>
  <a href="{{ yes_url }}">Yes, I'll attend</a> |
  <a href="{{ yes_plus_one_url }}">Yes, and I'm bringing a guest</a> |
  <a href="{{ no_url }}">No, I can't make it</a>
</p>
<p>{{ org_name | escape }}</p>
</body></html>`,

	"attendee_reminder.subject": `Reminder: {{ event_title }} is tomorrow`,
	"attendee_reminder.html": `<html><body style="font-family: Arial, sans-serif; color: #222;">
<p>Hi {{ member_name | default: "there" | escape }},</p>
<p>Thanks for confirming. <strong>{{ event_title | escape }}</strong> starts {{ event_starts }}{% if event_location != "" %} at {{ event_location | escape }}{% endif %}.</p>
<p><a href="{{ calendar_url }}">Add it to your calendar</a></p>
<p>{{ org_name | escape }}</p>
</body></html>`,

	"rsvp_confirmation.subject": `{% if attending %}You're going to {{ event_title }}{% else %}RSVP received for {{ event_title }}{% endif %}`,
	"rsvp_confirmation.html": `<html><body style="font-family: Arial, sans-serif; color: #222;">
<p>Hi {{ member_name | default: "there" | escape }},</p>
{% if attending %}<p>You're confirmed for <strong>{{ event_title | escape }}</strong> on {{ event_starts }}{% if plus_one %}, plus one guest{% endif %}.</p>
{% else %}<p>We've recorded that you can't attend <strong>{{ event_title | escape }}</strong>. Thanks for letting us know.</p>
{% endif %}<p>{{ org_name | escape }}</p>
</body></html>`,

	"rsvp_page.html": `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{ org_name | escape }} RSVP</title></head>
<body style="font-family: Arial, sans-serif; max-width: 560px; margin: 40px auto; color: #222;">
{% case outcome %}
{% when "recorded" %}<h1>Thank you!</h1>
{% if attending %}<p>Your RSVP for <strong>{{ event_title | escape }}</strong> is recorded: you're attending{% if plus_one %} with one guest{% endif %}.</p><p>{{ event_starts }}{% if event_location != "" %}, {{ event_location | escape }}{% endif %}</p>
{% else %}<p>Your RSVP for <strong>{{ event_title | escape }}</strong> is recorded: you won't be attending.</p>
{% endif %}<p>A confirmation email is on its way.</p>
{% when "invalid_response" %}<h1>Something's not right</h1><p>That RSVP link is incomplete. Please use the buttons in your email.</p>
{% when "not_found" %}<h1>Link not recognised</h1><p>We couldn't find this RSVP link. It may have been replaced by a newer email.</p>
{% when "already_used" %}<h1>Already answered</h1><p>This RSVP link has already been used{% if has_event %} for <strong>{{ event_title | escape }}</strong>{% endif %}. Contact us if you need to change your answer.</p>
{% when "expired" %}<h1>RSVP closed</h1><p>This RSVP link has expired{% if has_event %} for <strong>{{ event_title | escape }}</strong>{% endif %}.</p>
{% else %}<h1>Sorry</h1><p>We couldn't record your RSVP right now. Please try again later.</p>
{% endcase %}
<p style="color: #777;">{{ org_name | escape }}</p>
</body></html>`,
}
