// Package registry holds a set of values and injects them into the exported
// fields of other values by assignability.
package registry

import (
	"errors"
	"reflect"
	"sync"
)

// Entry is a registered value.
type Entry struct {
	Ref   interface{}
	Type  reflect.Type
	Value reflect.Value
}

// Ref wraps a value for registration.
func Ref(v interface{}) *Entry {
	return &Entry{
		Ref:   v,
		Type:  reflect.TypeOf(v),
		Value: reflect.ValueOf(v),
	}
}

// Registry is a list of entries in registration order.
type Registry struct {
	entries []*Entry
	mu      sync.RWMutex
}

// New returns a registry with the given values registered.
func New(vals ...interface{}) (*Registry, error) {
	r := &Registry{}
	for _, v := range vals {
		if err := r.Register(Ref(v)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds entries. Only non-nil pointers can be registered.
func (r *Registry) Register(entries ...*Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		if e == nil || e.Ref == nil {
			return errors.New("registry: nil entry")
		}
		if e.Type.Kind() != reflect.Ptr || e.Value.IsNil() {
			return errors.New("registry: entry must be a non-nil pointer")
		}
		r.entries = append(r.entries, e)
	}
	return nil
}

// Entries returns a copy of all entries.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := make([]*Entry, len(r.entries))
	copy(e, r.entries)
	return e
}

// AssignableTo returns the entries whose type is assignable to typ.
func (r *Registry) AssignableTo(typ reflect.Type) []*Entry {
	var entries []*Entry
	for _, e := range r.Entries() {
		if e.Type.AssignableTo(typ) {
			entries = append(entries, e)
		}
	}
	return entries
}

// ValueTo sets the value rv points to with the first entry assignable to its
// element type, or the element of an entry whose element type matches.
// It reports whether a value was set.
func (r *Registry) ValueTo(rv reflect.Value) bool {
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return false
	}
	target := rv.Elem()
	for _, e := range r.Entries() {
		if e.Type.AssignableTo(target.Type()) {
			target.Set(e.Value)
			return true
		}
		if e.Type.Elem().AssignableTo(target.Type()) {
			target.Set(e.Value.Elem())
			return true
		}
	}
	return false
}

// Populate sets every zero exported field of the struct obj points to.
// Slice fields receive every assignable entry, other fields the first.
// obj itself is never injected into its own fields.
func (r *Registry) Populate(obj interface{}) {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return
	}
	self := rv.Pointer()
	elem := rv.Elem()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		if !field.CanSet() || !isZero(field) {
			continue
		}
		if elem.Type().Field(i).Anonymous {
			continue
		}
		if field.Kind() == reflect.Slice {
			for _, e := range r.AssignableTo(field.Type().Elem()) {
				if e.Value.Pointer() == self {
					continue
				}
				field.Set(reflect.Append(field, e.Value))
			}
			continue
		}
		for _, e := range r.AssignableTo(field.Type()) {
			if e.Value.Pointer() == self {
				continue
			}
			field.Set(e.Value)
			break
		}
	}
}

// SelfPopulate populates every registered entry from the registry.
func (r *Registry) SelfPopulate() {
	for _, e := range r.Entries() {
		r.Populate(e.Ref)
	}
}

func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	}
	return v.IsZero()
}
