package service

import "go-marketplace/internal/repository"

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	chatPageLimit    = 50
)

type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
	Limit       int   `json:"limit"`
}

func newPageMeta(p repository.Pagination, total int64) PageMeta {
	pages := p.TotalPages(total)
	return PageMeta{
		CurrentPage: p.Page,
		TotalPages:  pages,
		TotalItems:  total,
		HasNext:     p.Page < pages,
		HasPrev:     p.Page > 1,
		Limit:       p.Limit,
	}
}
