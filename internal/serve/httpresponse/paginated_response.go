package httpresponse

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

var ErrInvalidPageLimit = errors.New("page_limit must be a positive integer")

// PaginatedResponse is the envelope of list endpoints.
type PaginatedResponse[T any] struct {
	Pagination PaginationInfo `json:"pagination"`
	Data       []T            `json:"data"`
}

type PaginationInfo struct {
	Next  string `json:"next,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Pages int    `json:"pages"`
	Total int    `json:"total"`
}

// Paginate returns the page of items selected by page, starting at 1, and pageLimit. The links to the neighbouring
// pages keep the query of r. Data is never nil so an empty page renders as [].
func Paginate[T any](r *http.Request, items []T, page, pageLimit int) (PaginatedResponse[T], error) {
	if pageLimit <= 0 {
		return PaginatedResponse[T]{}, ErrInvalidPageLimit
	}
	if page <= 0 {
		return PaginatedResponse[T]{}, fmt.Errorf("page must be a positive integer, got %d", page)
	}

	total := len(items)
	pages := (total + pageLimit - 1) / pageLimit
	start := min((page-1)*pageLimit, total)
	end := min(start+pageLimit, total)

	response := PaginatedResponse[T]{
		Pagination: PaginationInfo{Pages: pages, Total: total},
		Data:       append(make([]T, 0, end-start), items[start:end]...),
	}
	if page < pages {
		response.Pagination.Next = pageURL(r, page+1)
	}
	if page > 1 && total > 0 {
		response.Pagination.Prev = pageURL(r, min(page-1, pages))
	}
	return response, nil
}

func pageURL(r *http.Request, page int) string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
