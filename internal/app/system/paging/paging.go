// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// DefaultPageSize is the number of rows returned when the caller does
// not ask for a specific limit.
const DefaultPageSize = 50

// MaxPageSize bounds the per-request limit so a single call cannot pull
// an entire collection.
const MaxPageSize = 200

// Page is an offset window parsed from ?page= and ?limit=.
type Page struct {
	Number int
	Size   int
}

// Parse reads page and limit from the query string, clamping to sane
// bounds. Page numbers are 1-based.
func Parse(r *http.Request) Page {
	p := Page{Number: 1, Size: DefaultPageSize}

	if s := query.Get(r, "page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			p.Number = n
		}
	}
	if s := query.Get(r, "limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			if n > MaxPageSize {
				n = MaxPageSize
			}
			p.Size = n
		}
	}
	return p
}

// Skip returns the number of documents to skip for Mongo Find options.
func (p Page) Skip() int64 {
	return int64(p.Number-1) * int64(p.Size)
}

// Limit returns the page size as int64 for Mongo Find options.
func (p Page) Limit() int64 {
	return int64(p.Size)
}

// Meta describes a page of results in list responses.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// MetaFor builds response metadata from a page and a total count.
func MetaFor(p Page, total int64) Meta {
	pages := int(total) / p.Size
	if int(total)%p.Size != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return Meta{Page: p.Number, Limit: p.Size, Total: total, TotalPages: pages}
}
