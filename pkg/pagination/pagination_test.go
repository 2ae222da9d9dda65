package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", DefaultPage, DefaultLimit},
		{"page=3&limit=5", 3, 5},
		{"page=0&limit=-1", DefaultPage, DefaultLimit},
		{"page=abc&limit=xyz", DefaultPage, DefaultLimit},
		{"limit=1000", DefaultPage, MaxLimit},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+tt.query, nil)
		p := Parse(c)
		if p.Page != tt.wantPage || p.Limit != tt.wantLimit {
			t.Errorf("Parse(%q) = %+v, want page %d limit %d", tt.query, p, tt.wantPage, tt.wantLimit)
		}
	}
}

func TestPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int64
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := Pages(tt.total, tt.limit); got != tt.want {
			t.Errorf("Pages(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}
