package analytics

import (
	"time"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/store"
)

// MaxBuckets bounds the size of a Timeline.
const MaxBuckets = 10000

// Bucket counts messages in [Start, Start+interval).
type Bucket struct {
	Start     time.Time `json:"start"`
	Total     int       `json:"total"`
	User      int       `json:"user"`
	Character int       `json:"character"`
}

// Timeline buckets windowed messages by interval. Buckets run contiguously
// from the window start (or the oldest message for all time) up to Now;
// empty buckets are kept. Messages after Now are ignored.
func Timeline(snap *store.Snapshot, interval time.Duration, opts Options) ([]Bucket, error) {
	if interval <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "interval must be positive")
	}
	lookback, err := opts.Lookback()
	if err != nil {
		return nil, err
	}
	now := opts.now()
	loc := opts.location()

	var start time.Time
	if lookback > 0 {
		start = now.Add(-lookback)
	} else {
		oldest, ok := oldestMessage(snap)
		if !ok {
			return []Bucket{}, nil
		}
		start = oldest
	}
	if start.After(now) {
		return []Bucket{}, nil
	}

	n := int(now.Sub(start)/interval) + 1
	if n > MaxBuckets {
		return nil, apperrors.Newf(apperrors.CodeValidation,
			"interval %s yields %d buckets, limit is %d", interval, n, MaxBuckets)
	}

	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i].Start = start.Add(time.Duration(i) * interval).In(loc)
	}

	startMs, nowMs := start.UnixMilli(), now.UnixMilli()
	for _, c := range snap.Characters {
		for i := range c.Conversations {
			for _, m := range c.Conversations[i].Messages {
				if m.Timestamp < startMs || m.Timestamp > nowMs {
					continue
				}
				b := &buckets[time.UnixMilli(m.Timestamp).Sub(start)/interval]
				b.Total++
				if m.IsUser() {
					b.User++
				} else {
					b.Character++
				}
			}
		}
	}
	return buckets, nil
}

func oldestMessage(snap *store.Snapshot) (time.Time, bool) {
	var oldest int64
	found := false
	for _, c := range snap.Characters {
		for i := range c.Conversations {
			for _, m := range c.Conversations[i].Messages {
				if !found || m.Timestamp < oldest {
					oldest, found = m.Timestamp, true
				}
			}
		}
	}
	return time.UnixMilli(oldest), found
}
