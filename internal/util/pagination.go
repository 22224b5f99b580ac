package util

import "strconv"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxResultWindow bounds offset+limit, matching the Elasticsearch index default.
	MaxResultWindow = 10000
)

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// MaxPage is the last page whose window stays inside MaxResultWindow.
func MaxPage(size int) int {
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return MaxResultWindow / size
}

// Calculate turns a 1-based page and a size into an offset and a clamped limit.
// Pages past MaxPage are clamped to it.
func Calculate(page, size int) (offset, limit int) {
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	if last := MaxPage(size); page > last {
		page = last
	}
	return (page - 1) * size, size
}
