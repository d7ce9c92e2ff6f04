package engine

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/salonmirai/sitesync/internal/content"
)

// schema describes how raw fields of one kind are read.
type schema struct {
	ints       []string
	floats     []string
	checkboxes []string
	// readOnly keys are dropped from input
	readOnly []string
}

// kindOps is the registry entry for one collection kind.
type kindOps struct {
	schema    schema
	deletable bool
	create    func(doc *content.Document, f Fields, now time.Time) (content.Entity, error)
	update    func(doc *content.Document, id int, f Fields) (content.Entity, error)
	remove    func(doc *content.Document, id int)
}

// entityPtr constrains PT to *T for a collection item type T.
type entityPtr[T any] interface {
	*T
	content.Entity
	SetID(int)
	Copy() T
}

type collectionSpec[T any] struct {
	kind     content.Kind
	schema   schema
	items    func(doc *content.Document) *[]T
	prepare  func(item *T, now time.Time)
	validate func(item *T) map[string]string
}

func register[T any, PT entityPtr[T]](c collectionSpec[T], deletable bool) kindOps {
	ops := kindOps{schema: c.schema, deletable: deletable}

	ops.create = func(doc *content.Document, f Fields, now time.Time) (content.Entity, error) {
		in, err := c.schema.coerce(f, true)
		if err != nil {
			return nil, err
		}
		var item T
		if err := decode(in, PT(&item)); err != nil {
			return nil, err
		}
		list := c.items(doc)
		PT(&item).SetID(nextID[T, PT](*list))
		if c.prepare != nil {
			c.prepare(&item, now)
		}
		if err := check(c.validate, &item); err != nil {
			return nil, err
		}
		*list = append(*list, item)
		return any(PT(&item).Copy()).(content.Entity), nil
	}

	ops.update = func(doc *content.Document, id int, f Fields) (content.Entity, error) {
		list := c.items(doc)
		idx := indexOf[T, PT](*list, id)
		if idx < 0 {
			return nil, &content.NotFoundError{Kind: c.kind, ID: id}
		}
		in, err := c.schema.coerce(f, false)
		if err != nil {
			return nil, err
		}
		next := PT(&(*list)[idx]).Copy()
		if err := decode(in, PT(&next)); err != nil {
			return nil, err
		}
		PT(&next).SetID(id)
		if err := check(c.validate, &next); err != nil {
			return nil, err
		}
		(*list)[idx] = next
		return any(PT(&next).Copy()).(content.Entity), nil
	}

	ops.remove = func(doc *content.Document, id int) {
		list := c.items(doc)
		out := (*list)[:0]
		for _, it := range *list {
			if PT(&it).EntityID() != id {
				out = append(out, it)
			}
		}
		*list = out
	}
	return ops
}

func check[T any](validate func(*T) map[string]string, item *T) error {
	if validate == nil {
		return nil
	}
	if fields := validate(item); len(fields) > 0 {
		return &content.ValidationError{Reason: "invalid field values", Fields: fields}
	}
	return nil
}

func nextID[T any, PT entityPtr[T]](items []T) int {
	max := 0
	for i := range items {
		if id := PT(&items[i]).EntityID(); id > max {
			max = id
		}
	}
	return max + 1
}

func indexOf[T any, PT entityPtr[T]](items []T, id int) int {
	for i := range items {
		if PT(&items[i]).EntityID() == id {
			return i
		}
	}
	return -1
}

// coerce converts numeric and checkbox fields of a copy of f. On create,
// absent numeric fields become 0 and absent checkboxes false; on update only
// present keys are touched. Whole numbers too large to store are rejected.
func (s schema) coerce(f Fields, create bool) (Fields, error) {
	out := f.clone()
	delete(out, "id")
	for _, k := range s.readOnly {
		delete(out, k)
	}
	bad := map[string]string{}
	for _, k := range s.ints {
		v, ok := out[k]
		if !ok && !create {
			continue
		}
		if !intInRange(v) {
			bad[k] = "is out of range"
			continue
		}
		out[k] = toInt(v)
	}
	if len(bad) > 0 {
		return nil, &content.ValidationError{Reason: "invalid field values", Fields: bad}
	}
	for _, k := range s.floats {
		if v, ok := out[k]; ok || create {
			out[k] = toFloat(v)
		}
	}
	for _, k := range s.checkboxes {
		if v, ok := out[k]; ok || create {
			out[k] = toBool(v)
		}
	}
	return out, nil
}

// decode merges fields onto out, matching keys by their JSON names.
func decode(in Fields, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("engine: decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(in)); err != nil {
		return &content.ValidationError{Reason: err.Error()}
	}
	return nil
}
