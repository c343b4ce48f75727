// Package pagination holds the page/limit arithmetic shared by list endpoints.
package pagination

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params is a one-based page request.
type Params struct {
	Page  int
	Limit int
}

// Normalize clamps the page to >= 1 and the limit to [1, MaxLimit],
// substituting DefaultLimit for a zero limit.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Info describes a returned page.
type Info struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// NewInfo computes page metadata for total matching rows.
func NewInfo(p Params, total int) Info {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Info{
		CurrentPage:  p.Page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: p.Limit,
	}
}
