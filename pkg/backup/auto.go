package backup

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/logger"
	"github.com/kittclouds/roleforge/internal/store"
)

// DefaultKey is the storage key of the auto-backup slot.
const DefaultKey = "roleforge-auto-backup"

// Exporter is the part of the roster the auto-backup needs.
type Exporter interface {
	ExportData() ([]byte, error)
	ImportData(blob []byte) error
}

// Slot is the stored auto-backup record. Data holds the full export as a
// string.
type Slot struct {
	Data      string `json:"data"`
	Timestamp string `json:"timestamp"`
	Auto      bool   `json:"auto"`
}

// CapturedAt parses the slot timestamp.
func (s *Slot) CapturedAt() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s.Timestamp)
}

// AutoBackup keeps one full export in a dedicated storage key.
type AutoBackup struct {
	storer store.Storer
	key    string
	now    func() time.Time
	log    *logger.Logger
}

// NewAutoBackup creates an auto-backup on storer. An empty key selects
// DefaultKey.
func NewAutoBackup(storer store.Storer, key string) *AutoBackup {
	if key == "" {
		key = DefaultKey
	}
	return &AutoBackup{storer: storer, key: key, now: time.Now, log: logger.Global()}
}

// WithClock overrides the capture clock.
func (a *AutoBackup) WithClock(now func() time.Time) *AutoBackup {
	a.now = now
	return a
}

// WithLogger overrides the logger.
func (a *AutoBackup) WithLogger(l *logger.Logger) *AutoBackup {
	a.log = l
	return a
}

// Create overwrites the slot with a fresh export.
func (a *AutoBackup) Create(ctx context.Context, src Exporter) (*Slot, error) {
	data, err := src.ExportData()
	if err != nil {
		return nil, err
	}
	slot := &Slot{
		Data:      string(data),
		Timestamp: a.now().UTC().Format(time.RFC3339Nano),
		Auto:      true,
	}
	blob, err := json.Marshal(slot)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSerialization, "encode auto-backup")
	}
	if err := a.storer.Save(ctx, a.key, blob); err != nil {
		a.log.LogError(err, "auto-backup not saved", "key", a.key)
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "save "+a.key)
	}
	a.log.Info("auto-backup created", "bytes", len(blob))
	return slot, nil
}

// Restore imports the slot through dst. The import is all-or-nothing.
func (a *AutoBackup) Restore(ctx context.Context, dst Exporter) error {
	slot, err := a.Load(ctx)
	if err != nil {
		return err
	}
	if err := dst.ImportData([]byte(slot.Data)); err != nil {
		return err
	}
	a.log.Info("auto-backup restored", "captured", slot.Timestamp)
	return nil
}

// Last returns the capture time of the slot.
func (a *AutoBackup) Last(ctx context.Context) (time.Time, error) {
	slot, err := a.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	t, err := slot.CapturedAt()
	if err != nil {
		return time.Time{}, apperrors.Wrap(err, apperrors.CodeSerialization, "auto-backup timestamp")
	}
	return t, nil
}

// Load reads and decodes the slot. A missing slot is NOT_FOUND.
func (a *AutoBackup) Load(ctx context.Context) (*Slot, error) {
	blob, err := a.storer.Load(ctx, a.key)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "load "+a.key)
	}
	if blob == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no auto-backup found")
	}
	var slot Slot
	if err := json.Unmarshal(blob, &slot); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSerialization, "decode auto-backup")
	}
	return &slot, nil
}

// Delete empties the slot.
func (a *AutoBackup) Delete(ctx context.Context) error {
	if err := a.storer.Delete(ctx, a.key); err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "delete "+a.key)
	}
	return nil
}
