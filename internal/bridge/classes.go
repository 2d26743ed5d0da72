package bridge

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cryguy/jshandler/ext"
	"github.com/cryguy/jshandler/internal/core"
	"go.uber.org/zap"
)

// instance is the native value behind one `new Components.classes.X()`.
type instance struct {
	class string
	desc  *ext.ClassDescriptor
	value any
}

// classNew constructs an instance of the named class. When handle names a
// live request the instance is released together with that request;
// instances built while the top level of the script runs (empty handle)
// live as long as the context.
func (b *Bridge) classNew(handle, name, argsJSON string) (string, error) {
	desc, ok := b.registry.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown class %q", name)
	}

	var st *core.RequestState
	if handle != "" {
		var err error
		if st, err = b.state(handle); err != nil {
			return "", err
		}
	}

	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	value, err := desc.Constructor(args)
	if err != nil {
		return "", fmt.Errorf("new %s: %w", name, err)
	}

	id := core.FormatReqID(b.nextInstance.Add(1))
	b.mu.Lock()
	b.instances[id] = &instance{class: name, desc: desc, value: value}
	b.mu.Unlock()

	if st != nil {
		st.RegisterCleanup(func() { b.release(id) })
	}
	return id, nil
}

// classCall dispatches a method call on a live instance and returns the
// JSON-encoded result, or "" for undefined.
func (b *Bridge) classCall(id, method, argsJSON string) (string, error) {
	b.mu.Lock()
	inst, ok := b.instances[id]
	b.mu.Unlock()
	if !ok {
		return "", core.ErrBridgeLifetime
	}

	fn, ok := inst.desc.Methods[method]
	if !ok || fn == nil {
		return "", fmt.Errorf("%s has no method %q", inst.class, method)
	}
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	out, err := fn(inst.value, args)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", inst.class, method, err)
	}
	if out == nil {
		return "", nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("%s.%s: encoding result: %w", inst.class, method, err)
	}
	return string(data), nil
}

func (b *Bridge) release(id string) {
	b.mu.Lock()
	inst, ok := b.instances[id]
	delete(b.instances, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	if c, ok := inst.value.(io.Closer); ok {
		if err := c.Close(); err != nil {
			b.log.Warn("closing extension instance",
				zap.String("location", b.location),
				zap.String("class", inst.class),
				zap.Error(err),
			)
		}
	}
}

// Instances reports how many extension instances are currently alive.
func (b *Bridge) Instances() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.instances)
}

func decodeArgs(argsJSON string) ([]any, error) {
	if argsJSON == "" {
		return nil, nil
	}
	var args []any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("decoding arguments: %w", err)
	}
	return args, nil
}
