package repository

import "errors"

// ErrVersionConflict is returned when a version-checked update matched no row.
var ErrVersionConflict = errors.New("document was modified concurrently")

type Pagination struct {
	Page  int
	Limit int
}

// NewPagination clamps page to >= 1 and limit to [1, max], using def when limit is unset.
func NewPagination(page, limit, def, max int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is the number of pages needed for total items.
func (p Pagination) TotalPages(total int64) int {
	if p.Limit <= 0 || total == 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}
