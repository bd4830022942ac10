package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 12
	MaxLimit     = 100
	// MaxPage keeps (Page-1)*Limit and Page*Limit inside int.
	MaxPage = math.MaxInt32 / MaxLimit
)

// URL: /products?page=2&limit=24
// → ParsePagination() → Pagination{Limit:24, Page:2, Offset:24}
// → filter + sort the collection, then Window(total) picks the page
// → ComputeMeta(total) fills TotalPages, HasNext, etc.
type Pagination struct {
	Limit      int  `json:"limit"`  // items per page
	Offset     int  `json:"offset"` // index of the first item on the page
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination parses ?limit=...&page=... safely. Keys are case sensitive.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{
		Limit: DefaultLimit,
		Page:  1,
	}

	if limitStr := strings.TrimSpace(q.Get("limit")); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			switch {
			case limit <= 0:
				p.Limit = DefaultLimit
			case limit > MaxLimit:
				p.Limit = MaxLimit
			default:
				p.Limit = limit
			}
		}
	}

	if pageStr := strings.TrimSpace(q.Get("page")); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			p.Page = min(page, MaxPage)
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta updates pagination after counting the matching items.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = p.Page <= MaxPage && p.Page*p.Limit < total
}

// Window returns the slice bounds of the current page within total items.
// A page past the end yields an empty window.
func (p Pagination) Window(total int) (start, end int) {
	start = p.Offset
	if start == 0 && p.Page > 1 {
		start = (p.Page - 1) * p.Limit
	}
	if start < 0 || start > total {
		start = total
	}
	end = start + p.Limit
	if end > total || end < start {
		end = total
	}
	return start, end
}

// Paginate cuts the current page out of items and fills in the metadata.
func Paginate[T any](items []T, p *Pagination) []T {
	p.ComputeMeta(len(items))
	start, end := p.Window(len(items))
	return items[start:end]
}
