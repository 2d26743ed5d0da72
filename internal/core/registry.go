package core

import (
	"errors"
	"sort"

	"github.com/cryguy/jshandler/ext"
)

// ClassRegistry maps extension names to their class descriptors for one
// location. It is filled while the location is configured and only read
// afterwards, so it carries no lock.
type ClassRegistry struct {
	classes map[string]*ext.ClassDescriptor
}

// NewClassRegistry returns an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{classes: make(map[string]*ext.ClassDescriptor)}
}

// Register stores desc under name. A previous entry with the same name is
// replaced; replaced reports whether that happened.
func (r *ClassRegistry) Register(name string, desc *ext.ClassDescriptor) (replaced bool, err error) {
	if name == "" {
		return false, errors.New("extension reported an empty name")
	}
	if desc == nil {
		return false, errors.New("extension returned a nil descriptor")
	}
	if desc.Constructor == nil {
		return false, errors.New("extension descriptor has no constructor")
	}
	_, replaced = r.classes[name]
	r.classes[name] = desc
	return replaced, nil
}

// Lookup returns the descriptor registered under name.
func (r *ClassRegistry) Lookup(name string) (*ext.ClassDescriptor, bool) {
	d, ok := r.classes[name]
	return d, ok
}

// Names returns the registered names in sorted order.
func (r *ClassRegistry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered classes.
func (r *ClassRegistry) Len() int { return len(r.classes) }
