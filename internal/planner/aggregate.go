package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// Key selects which average of a Result to aggregate on.
type Key string

const (
	KeySGPA Key = "sgpa"
	KeyCGPA Key = "cgpa"
)

// ParseKey accepts "sgpa" or "cgpa" in any case.
func ParseKey(s string) (Key, error) {
	switch Key(strings.ToLower(strings.TrimSpace(s))) {
	case KeySGPA:
		return KeySGPA, nil
	case KeyCGPA:
		return KeyCGPA, nil
	}
	return "", fmt.Errorf("unknown key %q", s)
}

func (k Key) value(r Result) float64 {
	if k == KeyCGPA {
		return r.CGPA
	}
	return r.SGPA
}

// Bucket is one histogram bar.
type Bucket struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Histogram counts results per distinct value of key. Buckets appear in the
// order their value is first seen.
func Histogram(results []Result, key Key) []Bucket {
	buckets := make([]Bucket, 0)
	index := make(map[float64]int)
	for _, r := range results {
		v := key.value(r)
		if i, ok := index[v]; ok {
			buckets[i].Count++
			continue
		}
		index[v] = len(buckets)
		buckets = append(buckets, Bucket{Value: v, Count: 1})
	}
	return buckets
}

// Page is a window over results.
type Page struct {
	Items       []Result `json:"items"`
	CurrentPage int      `json:"currentPage"`
	TotalPages  int      `json:"totalPages"`
}

// Paginate returns the 1-based page of size limit. page and limit below 1
// are raised to 1; a page past the end is empty.
func Paginate(results []Result, page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	total := (len(results) + limit - 1) / limit

	start := (page - 1) * limit
	if start > len(results) || start < 0 {
		start = len(results)
	}
	end := start + limit
	if end > len(results) || end < start {
		end = len(results)
	}

	items := make([]Result, end-start)
	copy(items, results[start:end])
	return Page{Items: items, CurrentPage: page, TotalPages: total}
}

// FormatValue renders an average the way it is matched by FilterBySubstring:
// shortest decimal form, so 7 renders as "7" and 7.125 as "7.125".
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FilterBySubstring keeps results whose rendered key value contains needle.
// This is plain substring matching, not a numeric comparison: "7" matches
// 7, 7.125 and 17.5 alike. An empty needle keeps everything.
func FilterBySubstring(results []Result, key Key, needle string) []Result {
	if needle == "" {
		return results
	}
	out := make([]Result, 0)
	for _, r := range results {
		if strings.Contains(FormatValue(key.value(r)), needle) {
			out = append(out, r)
		}
	}
	return out
}
