// Package ext is the contract between jshandler and extension modules.
//
// An extension contributes one constructible class to the script-visible
// Components.classes namespace of every location that loads it. It can be
// compiled into the server and registered under a builtin name:
//
//	func init() { ext.Register("sqlite", sqlite.Extension) }
//
// and referenced from configuration as "builtin:sqlite", or built as a Go
// plugin (go build -buildmode=plugin) exporting two entry points:
//
//	func GetName() string
//	func CreateObject() *ext.ClassDescriptor
package ext

import (
	"fmt"
	"sort"
	"sync"
)

// Method implements one method of an extension class. self is the value
// returned by the class constructor. Arguments arrive JSON-decoded
// (numbers as float64, objects as map[string]any); the result is
// JSON-encoded back to the script, and a nil result reads as undefined.
type Method func(self any, args []any) (any, error)

// ClassDescriptor describes a script-visible constructible type.
type ClassDescriptor struct {
	// Constructor builds the native instance behind `new Class(...args)`.
	// If the instance implements io.Closer it is closed when released.
	Constructor func(args []any) (any, error)

	// Methods maps method names to their implementations.
	Methods map[string]Method
}

// MethodNames returns the method names in sorted order.
func (d *ClassDescriptor) MethodNames() []string {
	names := make([]string, 0, len(d.Methods))
	for name := range d.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extension is a registrable class provider.
type Extension interface {
	// Name is the key under Components.classes.
	Name() string
	// BuildDescriptor is called once per registration.
	BuildDescriptor() *ClassDescriptor
}

type funcExtension struct {
	name   func() string
	create func() *ClassDescriptor
}

func (f funcExtension) Name() string                     { return f.name() }
func (f funcExtension) BuildDescriptor() *ClassDescriptor { return f.create() }

// Func adapts a pair of entry points into an Extension.
func Func(name func() string, create func() *ClassDescriptor) Extension {
	return funcExtension{name: name, create: create}
}

var (
	builtinMu sync.RWMutex
	builtins  = make(map[string]Extension)
)

// Register makes an extension available under "builtin:<id>". It panics
// if id is empty, e is nil, or id is already registered.
func Register(id string, e Extension) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if id == "" || e == nil {
		panic("ext: Register with empty id or nil extension")
	}
	if _, dup := builtins[id]; dup {
		panic(fmt.Sprintf("ext: Register called twice for %q", id))
	}
	builtins[id] = e
}

// Lookup returns the builtin extension registered under id.
func Lookup(id string) (Extension, bool) {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	e, ok := builtins[id]
	return e, ok
}

// Builtins returns the sorted ids of all registered builtin extensions.
func Builtins() []string {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
