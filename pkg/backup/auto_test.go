package backup

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/logger"
	"github.com/kittclouds/roleforge/internal/store"
	"github.com/kittclouds/roleforge/pkg/roster"
)

func newRoster(t *testing.T, s store.Storer) *roster.Roster {
	t.Helper()
	r := roster.New(roster.Options{Storer: s, Logger: logger.Discard()})
	require.NoError(t, r.Open(context.Background()))
	return r
}

func TestAutoBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := newRoster(t, s)
	_, err := r.AddCharacter(roster.Fields{Name: "Aria", Personality: "wise"})
	require.NoError(t, err)
	_, err = r.AddCharacter(roster.Fields{Name: "Rex", Personality: "dark"})
	require.NoError(t, err)
	want := r.Snapshot()

	captured := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ab := NewAutoBackup(s, "").WithClock(func() time.Time { return captured }).WithLogger(logger.Discard())

	slot, err := ab.Create(ctx, r)
	require.NoError(t, err)
	assert.True(t, slot.Auto)

	raw, _ := s.Load(ctx, DefaultKey)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, true, onDisk["auto"])
	assert.IsType(t, "", onDisk["data"])

	last, err := ab.Last(ctx)
	require.NoError(t, err)
	assert.True(t, captured.Equal(last))

	require.NoError(t, r.Reset())
	require.NoError(t, ab.Restore(ctx, r))
	assert.Equal(t, want, r.Snapshot())
}

func TestAutoBackupMissingSlot(t *testing.T) {
	ab := NewAutoBackup(store.NewMemoryStore(), "").WithLogger(logger.Discard())

	err := ab.Restore(context.Background(), newRoster(t, store.NewMemoryStore()))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = ab.Last(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestAutoBackupCorruptSlotLeavesRosterUntouched(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := newRoster(t, s)
	_, _ = r.AddCharacter(roster.Fields{Name: "Aria"})
	before := r.Snapshot()
	ab := NewAutoBackup(s, "").WithLogger(logger.Discard())

	require.NoError(t, s.Save(ctx, DefaultKey, []byte(`{"data":"{\"nope\":1}","timestamp":"x","auto":true}`)))
	err := ab.Restore(ctx, r)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSerialization))
	assert.Equal(t, before, r.Snapshot())

	require.NoError(t, s.Save(ctx, DefaultKey, []byte(`garbage`)))
	err = ab.Restore(ctx, r)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSerialization))
	assert.Equal(t, before, r.Snapshot())

	require.NoError(t, ab.Delete(ctx))
	_, err = ab.Load(ctx)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestAutoBackupQuota(t *testing.T) {
	s := store.NewMemoryStoreWithQuota(0)
	r := newRoster(t, s)
	_, _ = r.AddCharacter(roster.Fields{Name: "Aria"})
	s.SetQuota(1)

	_, err := NewAutoBackup(s, "").WithLogger(logger.Discard()).Create(context.Background(), r)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePersistence))
}
