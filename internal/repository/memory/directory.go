package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ignite/member-mailer/internal/domain"
)

// RSVP is one stored answer.
type RSVP struct {
	Response domain.RSVPResponse
	PlusOne  bool
}

// Directory is an in-memory membership directory: events, active members
// and their RSVP answers. It satisfies both the scheduler's and the RSVP
// flow's directory interfaces.
type Directory struct {
	mu      sync.Mutex
	events  map[string]domain.Event
	members map[string]domain.Member
	rsvps   map[string]map[string]RSVP // event id -> user id
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		events:  make(map[string]domain.Event),
		members: make(map[string]domain.Member),
		rsvps:   make(map[string]map[string]RSVP),
	}
}

// AddEvent stores or replaces an event.
func (d *Directory) AddEvent(ev domain.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[ev.ID] = ev
}

// AddMember stores or replaces an active member.
func (d *Directory) AddMember(m domain.Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
}

func (d *Directory) GetEvent(_ context.Context, id string) (*domain.Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ev, ok := d.events[id]
	if !ok {
		return nil, false, nil
	}
	return &ev, true, nil
}

func (d *Directory) GetMember(_ context.Context, id string) (*domain.Member, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[id]
	if !ok {
		return nil, false, nil
	}
	return &m, true, nil
}

func (d *Directory) NonResponders(_ context.Context, eventID string) ([]domain.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	answered := d.rsvps[eventID]
	var out []domain.Member
	for id, m := range d.members {
		if _, ok := answered[id]; !ok {
			out = append(out, m)
		}
	}
	sortMembers(out)
	return out, nil
}

func (d *Directory) Attendees(_ context.Context, eventID string) ([]domain.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.Member
	for id, a := range d.rsvps[eventID] {
		if a.Response != domain.RSVPYes {
			continue
		}
		if m, ok := d.members[id]; ok {
			out = append(out, m)
		}
	}
	sortMembers(out)
	return out, nil
}

func (d *Directory) ApplyRSVP(_ context.Context, userID, eventID string, response domain.RSVPResponse, plusOne bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rsvps[eventID] == nil {
		d.rsvps[eventID] = make(map[string]RSVP)
	}
	d.rsvps[eventID][userID] = RSVP{Response: response, PlusOne: plusOne}
	return nil
}

// RSVPFor returns the stored answer for a member and event.
func (d *Directory) RSVPFor(userID, eventID string) (RSVP, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.rsvps[eventID][userID]
	return a, ok
}

func sortMembers(ms []domain.Member) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}
