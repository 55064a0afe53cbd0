package db_test

import (
	"cmp"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/store"
)

func TestFieldMatches(t *testing.T) {
	d := store.Document{
		"total":  []byte(`10`),
		"status": []byte(`"PAID"`),
		"paid":   []byte(`true`),
	}
	assert.True(t, db.FieldMatches("total", "10")(d))
	assert.True(t, db.FieldMatches("status", "PAID")(d))
	assert.True(t, db.FieldMatches("paid", "true")(d))
	assert.False(t, db.FieldMatches("status", `"PAID"`)(d))
	assert.False(t, db.FieldMatches("total", "10.0")(d))
	assert.False(t, db.FieldMatches("missing", "")(d))
}

func TestFilterAndSortBy(t *testing.T) {
	type row struct {
		key  int
		name string
	}
	rows := []row{{2, "a"}, {1, "b"}, {2, "c"}, {1, "d"}}

	sorted := db.SortBy(rows, func(x, y row) int { return cmp.Compare(x.key, y.key) })
	assert.Equal(t, []row{{1, "b"}, {1, "d"}, {2, "a"}, {2, "c"}}, sorted)
	assert.Equal(t, row{2, "a"}, rows[0], "input is not reordered")

	assert.Equal(t, []row{{2, "a"}, {2, "c"}}, db.Filter(rows, func(r row) bool { return r.key == 2 }))
	assert.Len(t, db.Filter(rows, nil), 4)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name          string
		offset, limit int
		want          []int
		wantOffset    int
	}{
		{"first page", 0, 2, []int{1, 2}, 0},
		{"middle", 2, 2, []int{3, 4}, 2},
		{"short last page", 4, 2, []int{5}, 4},
		{"past the end", 9, 2, []int{}, 5},
		{"no limit", 1, 0, []int{2, 3, 4, 5}, 1},
		{"negative offset", -3, 1, []int{1}, 0},
		{"huge limit", 1, math.MaxInt, []int{2, 3, 4, 5}, 1},
		{"huge offset and limit", math.MaxInt, math.MaxInt, []int{}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := db.Paginate(items, tt.offset, tt.limit)
			assert.Equal(t, tt.want, page.Items)
			assert.Equal(t, 5, page.Total)
			assert.Equal(t, tt.wantOffset, page.Offset)
			assert.Equal(t, tt.limit, page.Limit)
		})
	}
}
