package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	// PageSize is the fixed number of records shown per page.
	PageSize = 10
	// MaxButtons is the number of page-number buttons in the window.
	MaxButtons = 5
)

// Params holds the 1-based page requested by a client.
type Params struct {
	Page int
}

// FromContext extracts the page from the echo context. Missing, malformed or
// non-positive values fall back to page 1.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	return Params{Page: Normalize(page)}
}

// Normalize clamps a page number to at least 1.
func Normalize(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// TotalPages returns ceil(total / PageSize).
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// Bounds returns the half-open [start, end) slice indexes of page within a
// result set of size total. A page past the end yields an empty range.
func Bounds(page, total int) (start, end int) {
	page = Normalize(page)
	if total <= 0 {
		return 0, 0
	}
	// Checked before multiplying so huge pages cannot overflow.
	if page > TotalPages(total) {
		return total, total
	}
	start = (page - 1) * PageSize
	end = page * PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return start, end
}

// Window describes the page-number buttons to render around the current page.
type Window struct {
	Pages       []int `json:"pages"`
	ShowFirst   bool  `json:"show_first"`
	ShowLast    bool  `json:"show_last"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

// NewWindow computes the button window. With five or fewer pages every page
// is shown; otherwise five consecutive pages are shown, pinned to the start
// for the first three pages and to the end for the last three. The leading
// "1 …" and trailing "… N" markers appear only when more than five pages exist.
func NewWindow(current, totalPages int) Window {
	w := Window{
		ShowFirst:   current > 3 && totalPages > MaxButtons,
		ShowLast:    current < totalPages-2 && totalPages > MaxButtons,
		HasPrevious: current > 1,
		HasNext:     current < totalPages,
	}

	var first int
	switch {
	case totalPages <= MaxButtons:
		w.Pages = pageRange(1, totalPages)
		return w
	case current <= 3:
		first = 1
	case current >= totalPages-2:
		first = totalPages - MaxButtons + 1
	default:
		first = current - 2
	}
	w.Pages = pageRange(first, first+MaxButtons-1)
	return w
}

func pageRange(from, to int) []int {
	pages := make([]int, 0, MaxButtons)
	for p := from; p <= to; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Response wraps a page of results for the API.
type Response struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
	Window     Window      `json:"window"`
}

func NewResponse(data interface{}, total, page int) *Response {
	totalPages := TotalPages(total)
	return &Response{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   PageSize,
		TotalPages: totalPages,
		Window:     NewWindow(page, totalPages),
	}
}
