package dashboard

import "errors"

var (
	// ErrFetchFailure wraps a rejected or timed out Query Service call.
	ErrFetchFailure = errors.New("dashboard: fetch failure")
	// ErrNavigationFailure wraps a rejected view-open request.
	ErrNavigationFailure = errors.New("dashboard: navigation failure")
	// ErrSuperseded reports that a newer refresh was issued while this one was in flight.
	ErrSuperseded = errors.New("dashboard: superseded by a newer request")
	// ErrUnknownCategory rejects category IDs that were never observed.
	ErrUnknownCategory = errors.New("dashboard: unknown category")
	// ErrInvalidDate rejects malformed date bounds.
	ErrInvalidDate = errors.New("dashboard: invalid date")
	// ErrInvalidPeriod rejects an unknown printer period.
	ErrInvalidPeriod = errors.New("dashboard: invalid printer period")
	// ErrInvalidMode rejects an unknown radio mode.
	ErrInvalidMode = errors.New("dashboard: invalid radio mode")
	// ErrInvalidAssetType rejects an unknown asset type on navigation.
	ErrInvalidAssetType = errors.New("dashboard: invalid asset type")
	// ErrNotReady is returned when categories have not been loaded yet.
	ErrNotReady = errors.New("dashboard: not initialized")
)
