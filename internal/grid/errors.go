package grid

import "errors"

var (
	// ErrEmptyContent is returned by the mapper when the content list is
	// empty. Callers substitute Placeholder.
	ErrEmptyContent = errors.New("grid: empty content list")

	// ErrCellOutOfRange is returned for a cell offset outside the layout.
	ErrCellOutOfRange = errors.New("grid: cell offset out of range")

	// ErrUnknownEdge is returned for an edge value outside top..body.
	ErrUnknownEdge = errors.New("grid: unknown edge")

	// ErrInvariantViolation reports an index collision or an empty registry.
	// The engine self-heals by forcing a reset.
	ErrInvariantViolation = errors.New("grid: invariant violation")
)
