package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/store"
)

// 2025-03-05 is a Wednesday.
var now = time.Date(2025, 3, 5, 18, 0, 0, 0, time.UTC)

func at(daysAgo int, hour int) int64 {
	d := now.AddDate(0, 0, -daysAgo)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC).UnixMilli()
}

func conv(msgs ...store.Message) store.Conversation {
	return store.Conversation{ID: "c", Messages: msgs}
}

func user(ts int64, text string) store.Message {
	return store.Message{ID: text, Sender: store.SenderUser, Text: text, Timestamp: ts}
}

func char(ts int64, text string) store.Message {
	return store.Message{ID: text, Sender: store.SenderCharacter, Text: text, Timestamp: ts}
}

func fixture() *store.Snapshot {
	return &store.Snapshot{Characters: []*store.Character{
		{
			ID: "a", Name: "Aria", Personality: store.PersonalityWise,
			CreatedAt: now.AddDate(0, 0, -100).UnixMilli(),
			Conversations: []store.Conversation{conv(
				user(at(0, 9), "u1"),
				char(at(0, 9), "ab"),
				user(at(2, 9), "u2"),
				char(at(40, 14), "abcdef"),
			)},
		},
		{
			ID: "b", Name: "Rex", Personality: store.PersonalityDark,
			CreatedAt: now.AddDate(0, 0, -10).UnixMilli(),
			Conversations: []store.Conversation{conv(
				user(at(1, 14), "u3"),
				char(at(1, 14), "abcd"),
			)},
		},
		{
			ID: "c", Name: "Quiet", Personality: store.PersonalityWise,
			CreatedAt:     now.AddDate(0, 0, -1).UnixMilli(),
			Conversations: []store.Conversation{},
		},
	}}
}

func TestComputeAllTime(t *testing.T) {
	rep, err := Compute(fixture(), Options{Now: now, Location: time.UTC})
	require.NoError(t, err)

	assert.Equal(t, WindowAll, rep.Window)
	assert.Equal(t, 6, rep.TotalMessages)
	assert.Equal(t, 3, rep.UserMessages)
	assert.Equal(t, 3, rep.CharacterMessages)
	assert.Equal(t, 3, rep.ByHour[9])
	assert.Equal(t, 3, rep.ByHour[14])
	// 9 and 14 tie; the earlier hour wins.
	assert.Equal(t, 9, rep.PeakHour)
	assert.Equal(t, 50.0, rep.EngagementRate)
	// (2 + 6 + 4) / 3
	assert.Equal(t, 4, rep.AvgReplyLength)
	// 6 messages over 100 days
	assert.Equal(t, 0.1, rep.AvgMessagesPerDay)

	require.Len(t, rep.Ranking, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{
		rep.Ranking[0].CharacterID, rep.Ranking[1].CharacterID, rep.Ranking[2].CharacterID,
	})
	assert.Equal(t, 4, rep.Ranking[0].Messages)
}

func TestComputeWeekWindow(t *testing.T) {
	rep, err := Compute(fixture(), Options{Window: WindowWeek, Now: now, Location: time.UTC})
	require.NoError(t, err)

	assert.Equal(t, 5, rep.TotalMessages)
	assert.Equal(t, 2, rep.CharacterMessages)
	assert.Equal(t, 3, rep.AvgReplyLength)
	assert.Equal(t, 1, rep.ByDay[time.Monday])
	assert.Equal(t, 2, rep.ByDay[time.Tuesday])
	assert.Equal(t, 2, rep.ByDay[time.Wednesday])
	// Tuesday and Wednesday tie; the earlier weekday wins.
	assert.Equal(t, time.Tuesday, rep.PeakDay)
	assert.Equal(t, "Tue", rep.PeakDayName)
	assert.Equal(t, 0.7, rep.AvgMessagesPerDay)

	// Personality percentages ignore the window.
	assert.Equal(t, PersonalityShare{Personality: store.PersonalityWise, Count: 2, Percent: 66.7}, rep.Personalities[2])
	assert.Equal(t, PersonalityShare{Personality: store.PersonalityDark, Count: 1, Percent: 33.3}, rep.Personalities[3])
	assert.Equal(t, 0, rep.Personalities[0].Count)
}

func TestComputeRankingIsStable(t *testing.T) {
	snap := fixture()
	snap.Characters[0].Conversations = []store.Conversation{}
	rep, err := Compute(snap, Options{Now: now, TopN: 2})
	require.NoError(t, err)

	require.Len(t, rep.Ranking, 2)
	assert.Equal(t, "b", rep.Ranking[0].CharacterID)
	assert.Equal(t, "a", rep.Ranking[1].CharacterID)
}

func TestComputeEmpty(t *testing.T) {
	rep, err := Compute(&store.Snapshot{}, Options{Now: now})
	require.NoError(t, err)

	assert.Equal(t, 0, rep.TotalMessages)
	assert.Equal(t, 0, rep.PeakHour)
	assert.Equal(t, time.Sunday, rep.PeakDay)
	assert.Equal(t, 0.0, rep.EngagementRate)
	assert.Equal(t, 0, rep.AvgReplyLength)
	assert.NotNil(t, rep.Ranking)
	assert.Len(t, rep.Personalities, 5)
	for _, p := range rep.Personalities {
		assert.Equal(t, 0.0, p.Percent)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	snap := fixture()
	before := snap.Clone()
	opts := Options{Window: WindowMonth, Now: now, Location: time.UTC}

	a, err := Compute(snap, opts)
	require.NoError(t, err)
	b, err := Compute(snap, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, before, snap)
}

func TestComputeLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	rep, err := Compute(fixture(), Options{Now: now, Location: tokyo})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.ByHour[18])
	assert.Equal(t, 3, rep.ByHour[23])
}

func TestWindowValidation(t *testing.T) {
	_, err := Compute(fixture(), Options{Window: "fortnight"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = Compute(fixture(), Options{Window: WindowCustom})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	rep, err := Compute(fixture(), Options{Window: WindowCustom, Custom: 12 * time.Hour, Now: now})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalMessages)
}

func TestTimeline(t *testing.T) {
	buckets, err := Timeline(fixture(), day, Options{Window: WindowWeek, Now: now, Location: time.UTC})
	require.NoError(t, err)
	require.Len(t, buckets, 8)

	total := 0
	for _, b := range buckets {
		total += b.Total
		assert.Equal(t, b.Total, b.User+b.Character)
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 2, buckets[6].Total)
	assert.Equal(t, 0, buckets[7].Total)
}

func TestTimelineAllTime(t *testing.T) {
	buckets, err := Timeline(fixture(), 7*day, Options{Now: now})
	require.NoError(t, err)
	require.NotEmpty(t, buckets)
	assert.Equal(t, at(40, 14), buckets[0].Start.UnixMilli())
	assert.Equal(t, 1, buckets[0].Total)

	empty, err := Timeline(&store.Snapshot{}, day, Options{Now: now})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTimelineValidation(t *testing.T) {
	_, err := Timeline(fixture(), 0, Options{Now: now})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = Timeline(fixture(), time.Second, Options{Window: WindowYear, Now: now})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}
