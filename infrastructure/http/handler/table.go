package handler

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const tablePageSize = 10

// column is one sortable field of a table row. Columns with a text func
// take part in search.
type column[T any] struct {
	key     string
	compare func(a, b T) int
	text    func(T) string
}

// tableQuery is the table state carried in the page URL:
// ?q=<search>&sort=<key>&order=asc|desc&page=<n>.
type tableQuery struct {
	Search string
	Sort   string
	Desc   bool
	Page   int
}

func parseTableQuery(r *http.Request) tableQuery {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	return tableQuery{
		Search: strings.TrimSpace(q.Get("q")),
		Sort:   q.Get("sort"),
		Desc:   strings.EqualFold(q.Get("order"), "desc"),
		Page:   page,
	}
}

func (q tableQuery) encode() string {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
		if q.Desc {
			v.Set("order", "desc")
		} else {
			v.Set("order", "asc")
		}
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if len(v) == 0 {
		return "?"
	}
	return "?" + v.Encode()
}

// tableView is one rendered page of a filtered, sorted row set.
type tableView[T any] struct {
	Rows     []T
	Query    tableQuery
	Total    int
	Filtered int
	Page     int
	Pages    int
}

func (v tableView[T]) Empty() bool { return v.Filtered == 0 }

// SortURL links to the table sorted by key. Sorting by the current key
// again flips the direction; a new key starts ascending.
func (v tableView[T]) SortURL(key string) string {
	q := v.Query
	q.Desc = q.Sort == key && !q.Desc
	q.Sort = key
	q.Page = 1
	return q.encode()
}

// SortMark is the arrow shown next to the active sort column.
func (v tableView[T]) SortMark(key string) string {
	switch {
	case v.Query.Sort != key:
		return ""
	case v.Query.Desc:
		return "▼"
	default:
		return "▲"
	}
}

func (v tableView[T]) PrevURL() string {
	if v.Page <= 1 {
		return ""
	}
	q := v.Query
	q.Page = v.Page - 1
	return q.encode()
}

func (v tableView[T]) NextURL() string {
	if v.Page >= v.Pages {
		return ""
	}
	q := v.Query
	q.Page = v.Page + 1
	return q.encode()
}

// buildTable filters rows by a case-insensitive substring match on the
// searchable columns, sorts them stably by the requested column and cuts
// out the requested page. An unknown sort key leaves the input order and
// is dropped from the query. Out-of-range pages are clamped.
func buildTable[T any](rows []T, columns []column[T], q tableQuery) tableView[T] {
	filtered := rows
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		filtered = make([]T, 0, len(rows))
		for _, row := range rows {
			for _, c := range columns {
				if c.text != nil && strings.Contains(strings.ToLower(c.text(row)), needle) {
					filtered = append(filtered, row)
					break
				}
			}
		}
	}

	sorted := slices.Clone(filtered)
	idx := slices.IndexFunc(columns, func(c column[T]) bool { return c.key == q.Sort })
	if idx >= 0 {
		cmp := columns[idx].compare
		if q.Desc {
			slices.SortStableFunc(sorted, func(a, b T) int { return cmp(b, a) })
		} else {
			slices.SortStableFunc(sorted, cmp)
		}
	} else {
		q.Sort, q.Desc = "", false
	}

	pages := (len(sorted) + tablePageSize - 1) / tablePageSize
	if pages < 1 {
		pages = 1
	}
	q.Page = min(max(q.Page, 1), pages)

	start := (q.Page - 1) * tablePageSize
	end := min(start+tablePageSize, len(sorted))

	return tableView[T]{
		Rows:     sorted[start:end],
		Query:    q,
		Total:    len(rows),
		Filtered: len(sorted),
		Page:     q.Page,
		Pages:    pages,
	}
}
