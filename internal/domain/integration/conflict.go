package integration

import "time"

// SyncDirection is the outcome of comparing two copies of a record
type SyncDirection string

const (
	// SyncDirectionNone means both copies are already consistent
	SyncDirectionNone SyncDirection = "none"
	// SyncDirectionPush overwrites the platform copy with the canonical one
	SyncDirectionPush SyncDirection = "push"
	// SyncDirectionPull overwrites the canonical copy with the platform one
	SyncDirectionPull SyncDirection = "pull"
)

// ResolveLastWriteWins keeps whichever copy is strictly newer. Equal
// timestamps are treated as consistent.
func ResolveLastWriteWins(canonicalUpdatedAt, platformUpdatedAt time.Time) SyncDirection {
	switch {
	case canonicalUpdatedAt.After(platformUpdatedAt):
		return SyncDirectionPush
	case platformUpdatedAt.After(canonicalUpdatedAt):
		return SyncDirectionPull
	default:
		return SyncDirectionNone
	}
}
