package scheduler

import "errors"

var (
	// ErrEngineNotRunning is returned when notifying or stopping a stopped engine
	ErrEngineNotRunning = errors.New("scheduler: engine is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")

	// ErrInvalidSchedule is returned when a cron expression cannot be parsed
	ErrInvalidSchedule = errors.New("scheduler: invalid cron schedule")

	// ---------------------------------------------------------------------------
	// Item Errors
	// ---------------------------------------------------------------------------

	// ErrUnsupportedItem is returned for a job type and item type combination
	// the executor does not handle
	ErrUnsupportedItem = errors.New("scheduler: unsupported job item")

	// ErrInvalidItem is returned when an item id or its metadata cannot be used
	ErrInvalidItem = errors.New("scheduler: invalid job item")

	// ErrListingNotPublished is returned when pushing a field of a listing
	// that has no platform product yet
	ErrListingNotPublished = errors.New("scheduler: listing has no platform product")
)
