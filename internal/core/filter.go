package core

import (
	"net/url"
	"strings"
)

// Query parameter names understood by BuildFilter.
const (
	ParamCategory = "category"
	ParamQuery    = "q"
	ParamDateFrom = "date_from"
	ParamDateTo   = "date_to"
	ParamType     = "type"
)

// Filter narrows the entries of one owner. Empty fields do not constrain.
type Filter struct {
	Category string
	Query    string // case-sensitive substring of Note
	DateFrom string // inclusive, ISO date
	DateTo   string // inclusive, ISO date
	Type     EntryType
}

// FilterParams echoes the normalized request values back to the filter form.
type FilterParams struct {
	Category string
	Query    string
	DateFrom string
	DateTo   string
	Type     string
}

// BuildFilter turns raw query parameters into a Filter. It never fails:
// unknown transaction types and malformed dates simply pass through or drop
// to "unconstrained".
func BuildFilter(values url.Values) (Filter, FilterParams) {
	get := func(key string) string {
		return strings.TrimSpace(values.Get(key))
	}

	params := FilterParams{
		Category: get(ParamCategory),
		Query:    get(ParamQuery),
		DateFrom: get(ParamDateFrom),
		DateTo:   get(ParamDateTo),
	}
	f := Filter{
		Category: params.Category,
		Query:    params.Query,
		DateFrom: params.DateFrom,
		DateTo:   params.DateTo,
	}
	if t, ok := ParseEntryType(get(ParamType)); ok {
		f.Type = t
		params.Type = string(t)
	}
	return f, params
}

// IsEmpty reports whether the filter matches every entry.
func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

// Matches evaluates the filter against one entry.
func (f Filter) Matches(e Entry) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Query != "" && !strings.Contains(e.Note, f.Query) {
		return false
	}
	if f.DateFrom != "" && e.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && e.Date > f.DateTo {
		return false
	}
	switch f.Type {
	case Income:
		return e.Amount.Cents > 0
	case Expense:
		return e.Amount.Cents < 0
	}
	return true
}

// Apply returns the matching entries in their original order.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Encode renders the filter as query parameters, omitting empty fields.
func (f Filter) Encode() string {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set(ParamCategory, f.Category)
	set(ParamQuery, f.Query)
	set(ParamDateFrom, f.DateFrom)
	set(ParamDateTo, f.DateTo)
	set(ParamType, string(f.Type))
	return v.Encode()
}
