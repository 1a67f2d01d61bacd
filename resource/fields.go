package resource

import (
	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/schema"
)

const (
	// AllFieldsToken is the sentinel a client sends in a field list to
	// request every declared field, e.g. fields[users]=:all.
	AllFieldsToken = ":all"

	// CountsField is the synthetic output key carrying the counts payload.
	CountsField = "counts"
)

// FieldResolver decides which field keys are in scope for one projection
// request. The zero value applies the default policy: client-requested
// fields, falling back to the schema's defaults.
type FieldResolver struct {
	// Explicit, when set, is used verbatim, bypassing the client's request
	// and the schema defaults entirely.
	Explicit []string

	// Excluded removes keys from whatever selection was computed.
	Excluded []string

	// All forces every declared field into scope.
	All bool
}

// Fields computes the ordered field keys in scope. fixed keys are always
// appended (global configuration plus per-projector additions); the result is
// deduplicated preserving first-seen order.
func (f *FieldResolver) Fields(cs *schema.CompiledSchema, ctx apitoolkit.RequestContext, fixed []string) []string {
	var keys []string

	switch {
	case len(f.Explicit) > 0:
		keys = append(keys, f.Explicit...)
	case f.allMode(cs, ctx):
		keys = append(keys, cs.FieldOrder...)
	default:
		requested := requestedFields(cs, ctx)
		if len(requested) > 0 {
			keys = append(keys, requested...)
		} else {
			keys = append(keys, cs.DefaultFields...)
		}
	}

	keys = f.withoutExcluded(keys)
	keys = append(keys, fixed...)

	return dedupe(keys)
}

// ShouldIncludeCounts reports whether the synthetic counts key is in scope:
// explicitly requested, all-fields mode, or present in the defaults, and not
// excluded.
func (f *FieldResolver) ShouldIncludeCounts(cs *schema.CompiledSchema, ctx apitoolkit.RequestContext) bool {
	for _, key := range f.Excluded {
		if key == CountsField {
			return false
		}
	}

	if f.allMode(cs, ctx) {
		return true
	}
	if contains(f.Explicit, CountsField) {
		return true
	}
	if ctx != nil && contains(ctx.Fields(cs.ResourceType), CountsField) {
		return true
	}
	return contains(cs.DefaultFields, CountsField)
}

func (f *FieldResolver) allMode(cs *schema.CompiledSchema, ctx apitoolkit.RequestContext) bool {
	if f.All {
		return true
	}
	if ctx == nil {
		return false
	}
	return contains(ctx.Fields(cs.ResourceType), AllFieldsToken)
}

func (f *FieldResolver) withoutExcluded(keys []string) []string {
	if len(f.Excluded) == 0 {
		return keys
	}
	excluded := make(map[string]bool, len(f.Excluded))
	for _, key := range f.Excluded {
		excluded[key] = true
	}
	out := keys[:0]
	for _, key := range keys {
		if !excluded[key] {
			out = append(out, key)
		}
	}
	return out
}

func requestedFields(cs *schema.CompiledSchema, ctx apitoolkit.RequestContext) []string {
	if ctx == nil {
		return nil
	}
	return ctx.Fields(cs.ResourceType)
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
