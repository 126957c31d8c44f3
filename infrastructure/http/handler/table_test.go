package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(rows []product) []string {
	out := make([]string, 0, len(rows))
	for _, p := range rows {
		out = append(out, p.ID)
	}
	return out
}

var sampleProducts = []product{
	{ID: "p-1", Name: "Valve", Category: "Hydraulics", Price: 40, Stock: 3},
	{ID: "p-2", Name: "Pump", Category: "Hydraulics", Price: 900, Stock: 0},
	{ID: "p-3", Name: "Gasket", Category: "Seals", Price: 40, Stock: 12},
	{ID: "p-4", Name: "Hose", Category: "hydraulics", Price: 15, Stock: 7},
}

func TestBuildTable(t *testing.T) {
	tests := []struct {
		name     string
		rows     []product
		query    tableQuery
		want     []string
		filtered int
		page     int
		pages    int
	}{
		{"no query keeps order", sampleProducts, tableQuery{}, []string{"p-1", "p-2", "p-3", "p-4"}, 4, 1, 1},
		{"search is case-insensitive", sampleProducts, tableQuery{Search: "HYDRAULICS"}, []string{"p-1", "p-2", "p-4"}, 3, 1, 1},
		{"search matches any searchable field", sampleProducts, tableQuery{Search: "p-3"}, []string{"p-3"}, 1, 1, 1},
		{"numbers are not searched", sampleProducts, tableQuery{Search: "900"}, []string{}, 0, 1, 1},
		{"sort ascending is stable", sampleProducts, tableQuery{Sort: "price"}, []string{"p-4", "p-1", "p-3", "p-2"}, 4, 1, 1},
		{"sort descending is stable", sampleProducts, tableQuery{Sort: "price", Desc: true}, []string{"p-2", "p-1", "p-3", "p-4"}, 4, 1, 1},
		{"sort by text", sampleProducts, tableQuery{Sort: "name"}, []string{"p-3", "p-4", "p-2", "p-1"}, 4, 1, 1},
		{"unknown sort key is ignored", sampleProducts, tableQuery{Sort: "secret"}, []string{"p-1", "p-2", "p-3", "p-4"}, 4, 1, 1},
		{"filter then sort", sampleProducts, tableQuery{Search: "hydraulics", Sort: "stock", Desc: true}, []string{"p-4", "p-1", "p-2"}, 3, 1, 1},
		{"empty input", nil, tableQuery{Search: "x", Page: 3}, []string{}, 0, 1, 1},
		{"single row", sampleProducts[:1], tableQuery{Sort: "name", Desc: true, Page: 0}, []string{"p-1"}, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := buildTable(tt.rows, productColumns, tt.query)
			assert.Equal(t, tt.want, ids(view.Rows))
			assert.Equal(t, tt.filtered, view.Filtered)
			assert.Equal(t, len(tt.rows), view.Total)
			assert.Equal(t, tt.page, view.Page)
			assert.Equal(t, tt.pages, view.Pages)
			assert.Equal(t, tt.filtered == 0, view.Empty())
		})
	}
}

func TestBuildTable_PageBounds(t *testing.T) {
	rows := make([]product, 23)
	for i := range rows {
		rows[i] = product{ID: fmt.Sprintf("p-%02d", i), Name: "Part"}
	}

	tests := []struct {
		name  string
		page  int
		first string
		count int
		want  int
	}{
		{"first page", 1, "p-00", 10, 1},
		{"middle page", 2, "p-10", 10, 2},
		{"last page is short", 3, "p-20", 3, 3},
		{"past the end clamps to the last page", 9, "p-20", 3, 3},
		{"zero clamps to the first page", 0, "p-00", 10, 1},
		{"negative clamps to the first page", -4, "p-00", 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := buildTable(rows, productColumns, tableQuery{Page: tt.page})
			assert.Equal(t, tt.want, view.Page)
			assert.Equal(t, 3, view.Pages)
			assert.Len(t, view.Rows, tt.count)
			assert.Equal(t, tt.first, view.Rows[0].ID)
		})
	}
}

func TestTableView_Links(t *testing.T) {
	view := buildTable(sampleProducts, productColumns, tableQuery{Search: "hose", Sort: "name", Page: 1})

	assert.Equal(t, "?order=desc&q=hose&sort=name", view.SortURL("name"), "same key flips the direction")
	assert.Equal(t, "?order=asc&q=hose&sort=price", view.SortURL("price"), "a new key starts ascending")
	assert.Equal(t, "▲", view.SortMark("name"))
	assert.Empty(t, view.SortMark("price"))
	assert.Empty(t, view.PrevURL())
	assert.Empty(t, view.NextURL())

	rows := make([]product, 15)
	paged := buildTable(rows, productColumns, tableQuery{Page: 2})
	assert.Equal(t, "?", paged.PrevURL())
	assert.Empty(t, paged.NextURL())
}

func TestParseTableQuery(t *testing.T) {
	tests := []struct {
		target string
		want   tableQuery
	}{
		{"/products", tableQuery{Page: 1}},
		{"/products?q=+pump+&sort=price&order=DESC&page=2", tableQuery{Search: "pump", Sort: "price", Desc: true, Page: 2}},
		{"/products?order=sideways&page=abc", tableQuery{Page: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, parseTableQuery(r))
		})
	}
}
