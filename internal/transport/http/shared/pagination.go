package shared

import (
	"net/http"
	"strconv"
)

// TotalCountHeader carries the unpaginated result size.
const TotalCountHeader = "X-Total-Count"

// Page is a limit/offset window read from the query string.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage ignores malformed values and caps limit at maxLimit.
func ParsePage(r *http.Request, defaultLimit, maxLimit int) Page {
	page := Page{Limit: defaultLimit}
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		page.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		page.Offset = n
	}
	if maxLimit > 0 {
		page.Limit = min(page.Limit, maxLimit)
	}
	return page
}

// Window returns the slice of items inside the page and sets the total count
// header. The result is never nil.
func Window[T any](w http.ResponseWriter, page Page, items []T) []T {
	total := len(items)
	w.Header().Set(TotalCountHeader, strconv.Itoa(total))
	start := min(page.Offset, total)
	end := min(start+page.Limit, total)
	out := items[start:end]
	if out == nil {
		return []T{}
	}
	return out
}
