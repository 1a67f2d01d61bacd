// Package request parses projection parameters off an incoming HTTP request:
// per-type field and count selections, the JSON filter tree, ordering and
// limit. The parsed Context feeds the projector, planner and criteria
// interpreter.
package request

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// fieldsPattern matches query parameters like fields[typename]
var fieldsPattern = regexp.MustCompile(`^fields\[([^\]]+)\]$`)

// countsPattern matches query parameters like counts[typename]
var countsPattern = regexp.MustCompile(`^counts\[([^\]]+)\]$`)

// Context carries one request's parsed projection parameters. It implements
// the request-context abstraction the resolver and planner consume.
type Context struct {
	fields  map[string][]string
	counts  map[string][]string
	filters string
	order   string
	limit   *int
}

// Parse extracts projection parameters from the request's query string.
// Example: ?fields[users]=id,name&counts[users]=posts&filters={"status":"a"}
// &order=name:asc&limit=25
func Parse(r *http.Request) *Context {
	values := r.URL.Query()

	ctx := &Context{
		fields:  make(map[string][]string),
		counts:  make(map[string][]string),
		filters: values.Get("filters"),
		order:   values.Get("order"),
	}

	for key, params := range values {
		if matches := fieldsPattern.FindStringSubmatch(key); len(matches) == 2 {
			ctx.fields[matches[1]] = splitList(first(params))
			continue
		}
		if matches := countsPattern.FindStringSubmatch(key); len(matches) == 2 {
			ctx.counts[matches[1]] = splitList(first(params))
		}
	}

	if raw := values.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			ctx.limit = &n
		}
	}

	return ctx
}

// Fields returns the requested field list for a resource type, or nil if the
// client did not constrain fields for that type.
func (c *Context) Fields(resourceType string) []string {
	return c.fields[resourceType]
}

// Counts returns the requested count aliases for a resource type.
func (c *Context) Counts(resourceType string) []string {
	return c.counts[resourceType]
}

// Filters returns the raw JSON filter tree, or an empty string.
func (c *Context) Filters() string { return c.filters }

// Order returns the raw comma-separated order list.
func (c *Context) Order() string { return c.order }

// Limit returns the parsed limit, or nil when absent or invalid.
func (c *Context) Limit() *int { return c.limit }

func first(params []string) string {
	if len(params) == 0 {
		return ""
	}
	return params[0]
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
