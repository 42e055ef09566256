package store

import (
	"context"
	"errors"

	"github.com/haven-app/haven/internal/profile"
	"github.com/haven-app/haven/internal/recovery"
)

var (
	// ErrNoProfile: nothing saved yet; callers start from defaults.
	ErrNoProfile = errors.New("no profile stored")
	// ErrCorruptProfile: stored profile failed to decode. Detection
	// continues on population defaults; it never crashes.
	ErrCorruptProfile = errors.New("stored profile is corrupt")
)

// Store is the injected local-persistence collaborator. The engine
// specifies only the shape; sqlite and in-memory implementations ship
// here, and a host may bring its own. Nothing behind this interface ever
// leaves the device.
type Store interface {
	SaveProfile(ctx context.Context, p profile.Profile) error
	LoadProfile(ctx context.Context) (profile.Profile, error)

	SaveSnapshot(ctx context.Context, s recovery.WeeklySnapshot) error
	// Snapshots returns all finalized weeks ordered by week key.
	Snapshots(ctx context.Context) ([]recovery.WeeklySnapshot, error)
	// LastWeek returns the most recent finalized week key, "" when none.
	LastWeek(ctx context.Context) (string, error)

	Close() error
}
