// Package extension resolves `extension <path>` directives into class
// descriptors and records them in a location's class registry.
package extension

import (
	"errors"
	"fmt"
	"plugin"
	"strings"

	"github.com/cryguy/jshandler/ext"
	"github.com/cryguy/jshandler/internal/core"
	"go.uber.org/zap"
)

// BuiltinPrefix marks extension paths served from the ext registration table.
const BuiltinPrefix = "builtin:"

// Symbols every extension plugin must export.
const (
	SymbolGetName      = "GetName"
	SymbolCreateObject = "CreateObject"
)

// Loaded is the result of loading one extension module.
type Loaded struct {
	Name       string
	Descriptor *ext.ClassDescriptor
}

// Loader turns an extension path into a named class descriptor.
type Loader interface {
	Load(path string) (*Loaded, error)
}

// PluginLoader loads builtin extensions by id and everything else as a Go
// plugin shared object.
type PluginLoader struct{}

var _ Loader = PluginLoader{}

// Load returns an *core.ExtensionLoadError on any failure.
func (PluginLoader) Load(path string) (*Loaded, error) {
	if id, ok := strings.CutPrefix(path, BuiltinPrefix); ok {
		e, found := ext.Lookup(id)
		if !found {
			return nil, &core.ExtensionLoadError{Path: path, Err: fmt.Errorf("no builtin extension %q", id)}
		}
		return finish(path, e.Name(), e.BuildDescriptor())
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, &core.ExtensionLoadError{Path: path, Err: err}
	}
	getName, err := lookup[func() string](p, SymbolGetName)
	if err != nil {
		return nil, &core.ExtensionLoadError{Path: path, Err: err}
	}
	create, err := lookup[func() *ext.ClassDescriptor](p, SymbolCreateObject)
	if err != nil {
		return nil, &core.ExtensionLoadError{Path: path, Err: err}
	}
	return finish(path, getName(), create())
}

func lookup[T any](p *plugin.Plugin, name string) (T, error) {
	var zero T
	sym, err := p.Lookup(name)
	if err != nil {
		return zero, err
	}
	fn, ok := sym.(T)
	if !ok {
		return zero, fmt.Errorf("symbol %s has type %T, want %T", name, sym, zero)
	}
	return fn, nil
}

func finish(path, name string, desc *ext.ClassDescriptor) (*Loaded, error) {
	switch {
	case name == "":
		return nil, &core.ExtensionLoadError{Path: path, Err: errors.New("extension reported an empty name")}
	case desc == nil || desc.Constructor == nil:
		return nil, &core.ExtensionLoadError{Path: path, Err: errors.New("extension returned no constructor")}
	}
	return &Loaded{Name: name, Descriptor: desc}, nil
}

// Register loads path and adds its class to reg. A name that is already
// registered is replaced and a warning is logged.
func Register(reg *core.ClassRegistry, loader Loader, path string, log *zap.Logger) (string, error) {
	l, err := loader.Load(path)
	if err != nil {
		return "", err
	}
	replaced, err := reg.Register(l.Name, l.Descriptor)
	if err != nil {
		return "", &core.ExtensionLoadError{Path: path, Err: err}
	}
	if replaced && log != nil {
		log.Warn("extension class replaced", zap.String("class", l.Name), zap.String("path", path))
	}
	return l.Name, nil
}
