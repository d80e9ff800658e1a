// Package pagination reads limit/offset parameters from a request and
// shapes paged responses, both plain JSON pages and FHIR Bundle links.
package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads _count/limit and _offset/offset, preferring the FHIR
// names. Limits are clamped to [1, MaxLimit] with DefaultLimit for missing
// or invalid values; negative offsets become 0.
func FromContext(c echo.Context) Params {
	return Params{
		Limit:  clampLimit(firstInt(c, "_count", "limit")),
		Offset: max(firstInt(c, "_offset", "offset"), 0),
	}
}

func firstInt(c echo.Context, names ...string) int {
	for _, name := range names {
		if v, err := strconv.Atoi(c.QueryParam(name)); err == nil && v != 0 {
			return v
		}
	}
	return 0
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// Response is one page of a JSON listing.
type Response[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewResponse wraps data. A nil slice is rendered as [].
func NewResponse[T any](data []T, total, limit, offset int) *Response[T] {
	if data == nil {
		data = []T{}
	}
	return &Response[T]{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset never goes below 0.
func (p Params) PreviousOffset() int {
	return max(p.Offset-p.Limit, 0)
}

// FHIRLink is one Bundle.link entry.
type FHIRLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// FHIRLinks builds self, next and previous links for a searchset Bundle
// served at basePath.
func (p Params) FHIRLinks(basePath string, total int) []FHIRLink {
	link := func(rel string, offset int) FHIRLink {
		return FHIRLink{Relation: rel, URL: fmt.Sprintf("%s?_offset=%d&_count=%d", basePath, offset, p.Limit)}
	}

	links := []FHIRLink{link("self", p.Offset)}
	if p.HasNext(total) {
		links = append(links, link("next", p.NextOffset()))
	}
	if p.HasPrevious() {
		links = append(links, link("previous", p.PreviousOffset()))
	}
	return links
}
