package resource

import (
	"reflect"
	"strings"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/schema"
)

// ResolveField produces the value for one compiled field definition against
// a record. The boolean reports whether a value was produced at all: a false
// result means the field is missing and must be dropped from output, which is
// distinct from a present nil value (an explicit null).
//
// Resolution never triggers a relation fetch; an unloaded relation resolves
// as missing. Errors only arise from recursive projection when a child
// resource type fails to compile.
func (p *Projector) ResolveField(def *schema.FieldDefinition, rec apitoolkit.Record) (interface{}, bool, error) {
	if !PassesGuards(def.Guards, rec, p.ctx) {
		return nil, false, nil
	}

	value, ok, err := p.resolveRaw(def, rec)
	if err != nil || !ok {
		return nil, false, err
	}

	for _, transform := range def.Transformers {
		if transform == nil {
			continue
		}
		value = transform(p.ctx, value)
	}

	return value, true, nil
}

func (p *Projector) resolveRaw(def *schema.FieldDefinition, rec apitoolkit.Record) (interface{}, bool, error) {
	switch def.Kind {
	case schema.KindCompute:
		return def.Compute(rec, p.ctx), true, nil

	case schema.KindRelation:
		return p.resolveRelation(def, rec)

	case schema.KindAccessor:
		if def.AccessorFunc != nil {
			return def.AccessorFunc(rec), true, nil
		}
		value, ok := lookupPath(rec, def.AccessorPath)
		return value, ok, nil

	default:
		value, ok := rec.Attribute(def.Key)
		return value, ok, nil
	}
}

// resolveRelation reads an already-loaded relation. Unloaded resolves as
// missing; loaded-but-empty resolves as an explicit null; otherwise the value
// passes through the accessor override (element-wise on collections), the
// child-resource wrap, or raw.
func (p *Projector) resolveRelation(def *schema.FieldDefinition, rec apitoolkit.Record) (interface{}, bool, error) {
	related, loaded := rec.Relation(def.Relation)
	if !loaded {
		return nil, false, nil
	}
	if isEmptyValue(related) {
		return nil, true, nil
	}

	if def.AccessorFunc != nil {
		if rv := reflect.ValueOf(related); rv.Kind() == reflect.Slice {
			out := make([]interface{}, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				if child, ok := asRecord(rv.Index(i).Interface()); ok {
					out = append(out, def.AccessorFunc(child))
				}
			}
			return out, true, nil
		}
		if child, ok := asRecord(related); ok {
			return def.AccessorFunc(child), true, nil
		}
		return nil, true, nil
	}
	if def.AccessorPath != "" {
		value, ok := lookupPath(related, def.AccessorPath)
		if !ok {
			return nil, true, nil
		}
		return value, true, nil
	}

	if def.ChildResource != "" && p.compiler.Registered(def.ChildResource) {
		return p.wrapChild(def, related)
	}

	return related, true, nil
}

// wrapChild projects a relation's value through the child resource type. A
// collection wraps element-wise; a singular value wraps as one projection.
func (p *Projector) wrapChild(def *schema.FieldDefinition, related interface{}) (interface{}, bool, error) {
	child := p.childProjector(def)

	rv := reflect.ValueOf(related)
	if rv.Kind() == reflect.Slice {
		out := make([]*OrderedMap, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, ok := asRecord(rv.Index(i).Interface())
			if !ok {
				continue
			}
			projected, err := child.Resolve(item)
			if err != nil {
				return nil, false, err
			}
			out = append(out, projected)
		}
		return out, true, nil
	}

	item, ok := asRecord(related)
	if !ok {
		return related, true, nil
	}
	projected, err := child.Resolve(item)
	if err != nil {
		return nil, false, err
	}
	return projected, true, nil
}

func (p *Projector) childProjector(def *schema.FieldDefinition) *Projector {
	child := NewProjector(p.compiler, def.ChildResource, p.ctx)
	if len(def.ChildFields) > 0 {
		child.fields.Explicit = def.ChildFields
	}
	return child
}

// lookupPath walks a dot-joined attribute path into a record or nested maps.
func lookupPath(value interface{}, path string) (interface{}, bool) {
	current := value
	for _, segment := range strings.Split(path, ".") {
		switch v := current.(type) {
		case apitoolkit.Record:
			attr, ok := v.Attribute(segment)
			if !ok {
				return nil, false
			}
			current = attr
		case map[string]interface{}:
			attr, ok := v[segment]
			if !ok {
				return nil, false
			}
			current = attr
		default:
			return nil, false
		}
	}
	return current, true
}

// asRecord adapts common related-value shapes to the Record interface.
func asRecord(value interface{}) (apitoolkit.Record, bool) {
	switch v := value.(type) {
	case apitoolkit.Record:
		return v, true
	case map[string]interface{}:
		return apitoolkit.MapRecord(v), true
	default:
		return nil, false
	}
}

// isEmptyValue reports whether a loaded relation value counts as empty: nil,
// a nil pointer/interface, or a zero-length slice or map.
func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.IsNil() || rv.Len() == 0
	}
	return false
}
