package domain

import "errors"

var (
	// ErrInvalidDateRange marks a range whose bounds are missing or reversed.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrBoardNotFound marks a request for a board id that is not configured
	// or does not exist at the source.
	ErrBoardNotFound = errors.New("board not found")

	// ErrProjectNotFound marks a container whose canonical project could not
	// be resolved.
	ErrProjectNotFound = errors.New("project not found")

	// ErrSourceUnavailable is raised only when every sub-fetch of an
	// aggregation failed and no partial answer exists.
	ErrSourceUnavailable = errors.New("data source unavailable")
)
