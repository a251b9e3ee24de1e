// Package analytics derives activity statistics from a store.Snapshot.
// Compute and Timeline are pure and safe to call repeatedly.
package analytics

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/store"
)

// Window selects which messages are counted.
type Window string

const (
	WindowAll    Window = "all"
	WindowWeek   Window = "week"
	WindowMonth  Window = "month"
	WindowYear   Window = "year"
	WindowCustom Window = "custom"
)

const day = 24 * time.Hour

// DefaultTopN is the ranking length when Options.TopN is zero.
const DefaultTopN = 10

// Options parameterize Compute and Timeline.
type Options struct {
	Window Window
	// Custom is the lookback for WindowCustom.
	Custom time.Duration
	// Now anchors the window. Zero means time.Now().
	Now time.Time
	// Location is used for hour and weekday buckets. Nil means time.Local.
	Location *time.Location
	// TopN truncates the ranking. Zero means DefaultTopN, negative keeps all.
	TopN int
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// Lookback returns the window length, or 0 for all time.
func (o Options) Lookback() (time.Duration, error) {
	switch o.Window {
	case "", WindowAll:
		return 0, nil
	case WindowWeek:
		return 7 * day, nil
	case WindowMonth:
		return 30 * day, nil
	case WindowYear:
		return 365 * day, nil
	case WindowCustom:
		if o.Custom <= 0 {
			return 0, apperrors.New(apperrors.CodeValidation, "custom window needs a positive duration")
		}
		return o.Custom, nil
	}
	return 0, apperrors.Newf(apperrors.CodeValidation, "unknown window %q", o.Window)
}

// Activity is one row of the per-character ranking.
type Activity struct {
	CharacterID string            `json:"characterId"`
	Name        string            `json:"name"`
	Personality store.Personality `json:"personality"`
	Messages    int               `json:"messages"`
}

// PersonalityShare is the count and percentage of characters with one
// personality.
type PersonalityShare struct {
	Personality store.Personality `json:"personality"`
	Count       int               `json:"count"`
	Percent     float64           `json:"percent"`
}

// Report is the result of Compute.
type Report struct {
	Window            Window             `json:"window"`
	TotalMessages     int                `json:"totalMessages"`
	UserMessages      int                `json:"userMessages"`
	CharacterMessages int                `json:"characterMessages"`
	ByHour            [24]int            `json:"byHour"`
	ByDay             [7]int             `json:"byDay"`
	PeakHour          int                `json:"peakHour"`
	PeakDay           time.Weekday       `json:"peakDay"`
	PeakDayName       string             `json:"peakDayName"`
	Ranking           []Activity         `json:"ranking"`
	Personalities     []PersonalityShare `json:"personalities"`
	// EngagementRate is the user share of messages in percent.
	EngagementRate float64 `json:"engagementRate"`
	// AvgReplyLength is the mean length in characters of replies.
	AvgReplyLength    int     `json:"avgReplyLength"`
	AvgMessagesPerDay float64 `json:"avgMessagesPerDay"`
}

// DayNames are short weekday labels indexed by time.Weekday.
var DayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Compute aggregates message activity inside the window. Characters are never
// filtered: the personality distribution always covers the whole snapshot.
func Compute(snap *store.Snapshot, opts Options) (*Report, error) {
	lookback, err := opts.Lookback()
	if err != nil {
		return nil, err
	}
	now := opts.now()
	loc := opts.location()

	var since int64
	if lookback > 0 {
		since = now.Add(-lookback).UnixMilli()
	}

	window := opts.Window
	if window == "" {
		window = WindowAll
	}
	rep := &Report{Window: window, Ranking: []Activity{}}
	replyRunes := 0
	for _, c := range snap.Characters {
		act := Activity{CharacterID: c.ID, Name: c.Name, Personality: c.Personality}
		for i := range c.Conversations {
			for _, m := range c.Conversations[i].Messages {
				if lookback > 0 && m.Timestamp < since {
					continue
				}
				act.Messages++
				rep.TotalMessages++
				if m.IsUser() {
					rep.UserMessages++
				} else {
					rep.CharacterMessages++
					replyRunes += utf8.RuneCountInString(m.Text)
				}
				t := time.UnixMilli(m.Timestamp).In(loc)
				rep.ByHour[t.Hour()]++
				rep.ByDay[t.Weekday()]++
			}
		}
		rep.Ranking = append(rep.Ranking, act)
	}

	rep.PeakHour = argmax(rep.ByHour[:])
	rep.PeakDay = time.Weekday(argmax(rep.ByDay[:]))
	rep.PeakDayName = DayNames[rep.PeakDay]

	sort.SliceStable(rep.Ranking, func(i, j int) bool {
		return rep.Ranking[i].Messages > rep.Ranking[j].Messages
	})
	topN := opts.TopN
	if topN == 0 {
		topN = DefaultTopN
	}
	if topN > 0 && len(rep.Ranking) > topN {
		rep.Ranking = rep.Ranking[:topN]
	}

	rep.Personalities = Distribution(snap)

	if rep.TotalMessages > 0 {
		rep.EngagementRate = round1(float64(rep.UserMessages) / float64(rep.TotalMessages) * 100)
	}
	if rep.CharacterMessages > 0 {
		rep.AvgReplyLength = int(math.Round(float64(replyRunes) / float64(rep.CharacterMessages)))
	}
	rep.AvgMessagesPerDay = round1(float64(rep.TotalMessages) / float64(spanDays(snap, now, lookback)))
	return rep, nil
}

// Distribution counts characters per personality, in declaration order.
func Distribution(snap *store.Snapshot) []PersonalityShare {
	counts := make(map[store.Personality]int)
	for _, c := range snap.Characters {
		counts[c.Personality]++
	}
	total := len(snap.Characters)

	out := make([]PersonalityShare, 0, len(store.Personalities()))
	for _, p := range store.Personalities() {
		share := PersonalityShare{Personality: p, Count: counts[p]}
		if total > 0 {
			share.Percent = round1(float64(share.Count) / float64(total) * 100)
		}
		out = append(out, share)
	}
	return out
}

// spanDays is the divisor for messages per day: the window length, or the
// days since the oldest character was created. Never less than one.
func spanDays(snap *store.Snapshot, now time.Time, lookback time.Duration) int {
	span := lookback
	if span == 0 {
		oldest := now.UnixMilli()
		for _, c := range snap.Characters {
			if c.CreatedAt < oldest {
				oldest = c.CreatedAt
			}
		}
		span = now.Sub(time.UnixMilli(oldest))
	}
	days := int(math.Ceil(float64(span) / float64(day)))
	if days < 1 {
		days = 1
	}
	return days
}

// argmax returns the first index holding the maximum.
func argmax(xs []int) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
