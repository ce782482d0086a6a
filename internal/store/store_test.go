package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parksign-service/internal/domain/parking"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOnboardingFlag(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	assert.False(t, s.OnboardingCompleted(ctx))

	require.NoError(t, s.SetOnboardingCompleted(ctx, true))
	assert.True(t, s.OnboardingCompleted(ctx))

	require.NoError(t, s.SetOnboardingCompleted(ctx, false))
	assert.False(t, s.OnboardingCompleted(ctx))
}

func TestLegalAcceptedDate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	assert.Empty(t, s.LegalAcceptedDate(ctx))

	require.NoError(t, s.SetLegalAcceptedDate(ctx, "2025-06-12"))
	assert.Equal(t, "2025-06-12", s.LegalAcceptedDate(ctx))
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	assert.Nil(t, s.Profile(ctx))

	synced := time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC)
	in := &parking.Profile{
		FullName:            "Dana Levi",
		Email:               "dana@example.com",
		VehicleNumber:       "12-345-67",
		HasDisabilityPermit: true,
		HasResidentPermit:   true,
		ResidentArea:        "Zone 4",
		LastSynced:          &synced,
	}
	require.NoError(t, s.SaveProfile(ctx, in))

	out := s.Profile(ctx)
	require.NotNil(t, out)
	assert.Equal(t, in.FullName, out.FullName)
	assert.Equal(t, in.Email, out.Email)
	assert.True(t, out.HasDisabilityPermit)
	assert.Equal(t, "Zone 4", out.ResidentArea)
	require.NotNil(t, out.LastSynced)
	assert.True(t, synced.Equal(*out.LastSynced))
}

func TestHistoryRoundTripNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	assert.Nil(t, s.History(ctx))

	items := []parking.HistoryItem{
		{ID: "b", CreatedAt: time.Now(), Image: []byte{2}},
		{ID: "a", CreatedAt: time.Now().Add(-time.Minute), Image: []byte{1}},
	}
	require.NoError(t, s.SaveHistory(ctx, items))

	out := s.History(ctx)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.Equal(t, []byte{2}, out[0].Image)
}

func TestHistoryDropsEntriesWithoutID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	items := []parking.HistoryItem{
		{ID: "keep"},
		{ID: ""},
		{ID: "also-keep"},
	}
	require.NoError(t, s.SaveHistory(ctx, items))

	out := s.History(ctx)
	require.Len(t, out, 2)
	assert.Equal(t, "keep", out[0].ID)
	assert.Equal(t, "also-keep", out[1].ID)
}

// A corrupted record must be skipped without taking the other keys
// down with it.
func TestCorruptRecordIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveHistory(ctx, []parking.HistoryItem{{ID: "ok"}}))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		"parksign.profile.v1", "{not json")
	require.NoError(t, err)

	assert.Nil(t, s.Profile(ctx), "malformed profile reads as absent")
	require.Len(t, s.History(ctx), 1, "history is unaffected by the corrupt profile")
}
