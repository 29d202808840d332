// Package utils holds small helpers shared by handlers and services that
// carry no domain knowledge.
package utils

import "strconv"

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads raw query values. Unparsable values fall back to page 1
// and defSize before bounding.
func ParsePage(rawNumber, rawSize string, defSize, maxSize int) Page {
	return Page{
		Number: atoiOr(rawNumber, 1),
		Size:   atoiOr(rawSize, defSize),
	}.Bounded(defSize, maxSize)
}

// Bounded returns p with Number at least 1 and Size in [1, maxSize]. A zero
// Size becomes defSize; negative sizes become 1.
func (p Page) Bounded(defSize, maxSize int) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size == 0:
		p.Size = defSize
	case p.Size < 1:
		p.Size = 1
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

// Offset is the number of rows before this page.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TotalPages returns how many pages of p.Size hold total rows.
func (p Page) TotalPages(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether rows exist past this page.
func (p Page) HasNext(total int64) bool {
	return p.Number < p.TotalPages(total)
}

func atoiOr(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
