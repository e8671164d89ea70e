package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"", 1, 20, 0},
		{"?page=3&per_page=50", 3, 50, 100},
		{"?page=-1", 1, 20, 0},
		{"?page=0", 1, 20, 0},
		{"?page=abc&per_page=xyz", 1, 20, 0},
		{"?per_page=500", 1, 100, 0},
		{"?page=2&per_page=0", 2, 20, 20},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/appeals"+tc.query, nil)
		p := FromRequest(req)

		assert.Equal(t, tc.page, p.Page, "query %q", tc.query)
		assert.Equal(t, tc.perPage, p.PerPage, "query %q", tc.query)
		assert.Equal(t, tc.offset, p.Offset, "query %q", tc.query)
	}
}

func TestNewResult(t *testing.T) {
	r := NewResult([]string{"a", "b"}, 45, Params{Page: 2, PerPage: 20, Offset: 20})

	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext)
	assert.True(t, r.HasPrev)
	assert.Len(t, r.Items, 2)
}

func TestNewResult_LastPage(t *testing.T) {
	r := NewResult([]int{1}, 41, Params{Page: 3, PerPage: 20})
	assert.Equal(t, 3, r.TotalPages)
	assert.False(t, r.HasNext)
}

func TestNewResult_Empty(t *testing.T) {
	r := NewResult[int](nil, 0, DefaultParams())

	assert.NotNil(t, r.Items)
	assert.Empty(t, r.Items)
	assert.Equal(t, 0, r.TotalPages)
	assert.False(t, r.HasNext)
	assert.False(t, r.HasPrev)
}
