package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haven-app/haven/internal/profile"
	"github.com/haven-app/haven/internal/recovery"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "haven.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_ProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	_, err := s.LoadProfile(ctx)
	require.ErrorIs(t, err, ErrNoProfile)

	p := profile.Default(now).WithPreferredResponse(profile.ResponseGentlePrompt, now)
	require.NoError(t, s.SaveProfile(ctx, p))

	got, err := s.LoadProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, profile.ResponseGentlePrompt, got.PreferredResponse)

	// Saving again replaces rather than duplicates.
	p2 := got.WithPreferredResponse(profile.ResponseDoNothing, now.Add(time.Hour))
	require.NoError(t, s.SaveProfile(ctx, p2))
	got, err = s.LoadProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, profile.ResponseDoNothing, got.PreferredResponse)
}

func TestSQLiteStore_CorruptProfile(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_profile (id, document, updated_at) VALUES (1, 'not json{', ?)", now)
	require.NoError(t, err)

	_, err = s.LoadProfile(ctx)
	require.ErrorIs(t, err, ErrCorruptProfile)
}

func TestSQLiteStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	w1 := recovery.WeekKey(now)
	w2 := recovery.NextWeek(w1)
	snap := recovery.ZeroSnapshot(w1)
	snap.EntriesLogged = 7
	require.NoError(t, s.SaveSnapshot(ctx, snap))
	require.NoError(t, s.SaveSnapshot(ctx, recovery.ZeroSnapshot(w2)))

	snaps, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, w1, snaps[0].Week)
	require.Equal(t, 7, snaps[0].EntriesLogged)

	last, err := s.LastWeek(ctx)
	require.NoError(t, err)
	require.Equal(t, w2, last)
}
