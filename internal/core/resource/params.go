package resource

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

type ListParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
}

// ListParamsFromQuery reads page, limit, search, sortBy and sortOrder.
func ListParamsFromQuery(q url.Values) ListParams {
	return parseListParams(q.Get)
}

// ListParamsFromMap reads the same keys from an action payload, where JSON
// numbers arrive as float64.
func ListParamsFromMap(data map[string]any) ListParams {
	return parseListParams(func(key string) string {
		v, ok := data[key]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

func parseListParams(get func(string) string) ListParams {
	return ListParams{
		Page:      atoi(get("page")),
		Limit:     atoi(get("limit")),
		Search:    strings.TrimSpace(get("search")),
		SortBy:    get("sortBy"),
		SortOrder: strings.ToLower(get("sortOrder")),
	}.normalize()
}

// normalize clamps page to >= 1 and limit to [1, MaxLimit]. Missing or
// unparsable values take the defaults.
func (p ListParams) normalize() ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.Limit == 0:
		p.Limit = DefaultLimit
	case p.Limit < 1:
		p.Limit = 1
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
	return p
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// "2.0" from a JSON number
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
