package resource

import (
	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/schema"
)

// CountSuffix is the attribute suffix count-preloads surface under, e.g. a
// preloaded count of the posts relation arrives as posts_count.
const CountSuffix = "_count"

// ResolveCounts builds the counts payload for one record: present key to
// integer, in declaration order. A count is included when the client named
// its key, or when no keys were named and the definition is a default.
// Guards filter failing entries. Values are read from the precomputed
// <relation>_count attribute; this layer never issues a live count query.
func (p *Projector) ResolveCounts(cs *schema.CompiledSchema, rec apitoolkit.Record) *OrderedMap {
	var aliases []string
	if p.ctx != nil {
		aliases = p.ctx.Counts(cs.ResourceType)
	}

	payload := NewOrderedMap()
	for _, presentKey := range cs.CountOrder {
		def := cs.Counts[presentKey]
		if !shouldIncludeCount(def, aliases) {
			continue
		}
		if !PassesGuards(def.Guards, rec, p.ctx) {
			continue
		}

		value, _ := rec.Attribute(def.Relation + CountSuffix)
		payload.Set(presentKey, toInt(value))
	}

	return payload
}

// shouldIncludeCount applies the inclusion rule shared with the eager-load
// planner's count map: named aliases win; with none named, defaults apply.
func shouldIncludeCount(def *schema.CountDefinition, aliases []string) bool {
	if len(aliases) > 0 {
		return contains(aliases, def.PresentKey)
	}
	return def.Default
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return 0
	}
}
