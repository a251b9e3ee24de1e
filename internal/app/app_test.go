package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/roleforge/internal/config"
	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/logger"
	"github.com/kittclouds/roleforge/internal/store"
	"github.com/kittclouds/roleforge/pkg/roster"
)

func testConfig() config.Config {
	return config.Config{
		StorageKey: "roleforge-storage",
		BackupKey:  "roleforge-auto-backup",
		Reply:      config.ReplyConfig{Timeout: time.Second, Workers: 1, Seed: 3},
	}
}

func TestNewWiresMockReplies(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), Deps{Logger: logger.Discard()})
	require.NoError(t, err)
	defer a.Close()

	id, err := a.Roster.AddCharacter(roster.Fields{Name: "Aria", Personality: "cheerful"})
	require.NoError(t, err)
	require.NoError(t, a.Roster.SetActiveCharacter(id))

	ex, err := a.Roster.SendMessage(ctx, "let's bake cookies")
	require.NoError(t, err)
	require.NotNil(t, ex.Reply)
	assert.NotEmpty(t, ex.Reply.Text)

	_, err = a.Backup.Create(ctx, a.Roster)
	require.NoError(t, err)
	_, err = a.Backup.Last(ctx)
	require.NoError(t, err)
}

func TestNewWithSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.DSN = t.TempDir() + "/roleforge.db"

	a, err := New(ctx, cfg, Deps{Logger: logger.Discard()})
	require.NoError(t, err)
	_, err = a.Roster.AddCharacter(roster.Fields{Name: "Persisted"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := New(ctx, cfg, Deps{Logger: logger.Discard()})
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, 1, b.Roster.Len())
	assert.Equal(t, "Persisted", b.Roster.List()[0].Name)
}

func TestNewRejectsCorruptRecord(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), "roleforge-storage", []byte(`{}`)))

	_, err := New(context.Background(), testConfig(), Deps{Store: s, Logger: logger.Discard()})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSerialization))
}

func TestOpenStoreQuota(t *testing.T) {
	cfg := testConfig()
	cfg.StorageQuota = 4
	s, err := OpenStore(cfg)
	require.NoError(t, err)

	err = s.Save(context.Background(), "k", []byte("too long"))
	assert.ErrorIs(t, err, store.ErrQuotaExceeded)
}

func TestDefaultConfigHonorsQuota(t *testing.T) {
	t.Setenv("ROLEFORGE_STORAGE_QUOTA", "4")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Empty(t, cfg.DSN)

	s, err := OpenStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)
	assert.ErrorIs(t, s.Save(context.Background(), "k", []byte("too long")), store.ErrQuotaExceeded)
}
