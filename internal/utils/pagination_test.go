package utils

import "testing"

func TestParsePage(t *testing.T) {
	cases := []struct {
		number, size string
		want         Page
	}{
		{"", "", Page{1, 20}},
		{"3", "50", Page{3, 50}},
		{"0", "0", Page{1, 20}},
		{"-2", "-9", Page{1, 1}},
		{"x", "1000", Page{1, 100}},
		{"7", "abc", Page{7, 20}},
		{" 2", "999999999999999999999999", Page{1, 20}},
	}
	for _, tc := range cases {
		if got := ParsePage(tc.number, tc.size, 20, 100); got != tc.want {
			t.Fatalf("ParsePage(%q, %q) = %+v; want %+v", tc.number, tc.size, got, tc.want)
		}
	}
}

func TestPage_BoundedWithoutMax(t *testing.T) {
	if got := (Page{Number: 4, Size: 5000}).Bounded(20, 0); got != (Page{4, 5000}) {
		t.Fatalf("maxSize 0 should not cap: %+v", got)
	}
}

func TestPage_OffsetAndTotals(t *testing.T) {
	cases := []struct {
		page       Page
		total      int64
		offset     int
		totalPages int
		hasNext    bool
	}{
		{Page{1, 20}, 0, 0, 0, false},
		{Page{1, 20}, 20, 0, 1, false},
		{Page{1, 20}, 21, 0, 2, true},
		{Page{2, 2}, 5, 2, 3, true},
		{Page{3, 2}, 5, 4, 3, false},
		{Page{0, 0}, 10, 0, 0, false},
	}
	for _, tc := range cases {
		if got := tc.page.Offset(); got != tc.offset {
			t.Fatalf("%+v.Offset() = %d; want %d", tc.page, got, tc.offset)
		}
		if got := tc.page.TotalPages(tc.total); got != tc.totalPages {
			t.Fatalf("%+v.TotalPages(%d) = %d; want %d", tc.page, tc.total, got, tc.totalPages)
		}
		if got := tc.page.HasNext(tc.total); got != tc.hasNext {
			t.Fatalf("%+v.HasNext(%d) = %v", tc.page, tc.total, got)
		}
	}
}
