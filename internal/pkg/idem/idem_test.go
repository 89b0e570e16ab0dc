package idem_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/member-mailer/internal/pkg/idem"
)

type pair struct{ a, b string }

type record struct {
	key   pair
	value string
}

type memStore struct {
	rows     map[pair]record
	inserts  int
	raceWith *record // inserted by a "concurrent writer" right before our Insert
	findErr  error
}

func (m *memStore) FindActive(_ context.Context, k pair) (record, bool, error) {
	if m.findErr != nil {
		return record{}, false, m.findErr
	}
	r, ok := m.rows[k]
	return r, ok, nil
}

func (m *memStore) Insert(_ context.Context, r record) error {
	if m.raceWith != nil {
		m.rows[m.raceWith.key] = *m.raceWith
		m.raceWith = nil
	}
	if _, ok := m.rows[r.key]; ok {
		return idem.ErrConflict
	}
	m.inserts++
	m.rows[r.key] = r
	return nil
}

func TestFindOrCreateCreatesOnce(t *testing.T) {
	s := &memStore{rows: map[pair]record{}}
	k := pair{"user-1", "event-1"}
	n := 0
	build := func() (record, error) {
		n++
		return record{key: k, value: "first"}, nil
	}

	v, created, err := idem.FindOrCreate[pair, record](context.Background(), s, k, build)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "first", v.value)

	v, created, err = idem.FindOrCreate[pair, record](context.Background(), s, k, build)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "first", v.value)
	assert.Equal(t, 1, n, "build must not run when an active record exists")
	assert.Equal(t, 1, s.inserts)
}

func TestFindOrCreateLosesRace(t *testing.T) {
	k := pair{"deadline", "event-9"}
	s := &memStore{
		rows:     map[pair]record{},
		raceWith: &record{key: k, value: "winner"},
	}

	v, created, err := idem.FindOrCreate[pair, record](context.Background(), s, k, func() (record, error) {
		return record{key: k, value: "loser"}, nil
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "winner", v.value)
}

func TestFindOrCreateErrors(t *testing.T) {
	boom := errors.New("db down")
	s := &memStore{rows: map[pair]record{}, findErr: boom}
	_, _, err := idem.FindOrCreate[pair, record](context.Background(), s, pair{}, func() (record, error) {
		t.Fatal("build must not run after a lookup error")
		return record{}, nil
	})
	assert.ErrorIs(t, err, boom)

	s = &memStore{rows: map[pair]record{}}
	_, _, err = idem.FindOrCreate[pair, record](context.Background(), s, pair{}, func() (record, error) {
		return record{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.inserts)
}
