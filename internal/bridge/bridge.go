// Package bridge installs the script-visible surface of a location into a
// JS runtime: the log() function, the Components namespace, and the
// request/response object shapes bound to request-scoped state.
//
// Every native call made on behalf of a script object goes through a
// handle lookup (core.LookupRequestState), so objects retained past their
// request fail with core.ErrBridgeLifetime instead of touching freed state.
package bridge

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cryguy/jshandler/internal/core"
	"go.uber.org/zap"
)

// Options configures Setup.
type Options struct {
	Location string
	Registry *core.ClassRegistry
	Logger   *zap.Logger
}

// Bridge is the native half of one execution context's script surface.
// A Bridge belongs to exactly one JS runtime and is used by one request at
// a time.
type Bridge struct {
	rt       core.JSRuntime
	location string
	registry *core.ClassRegistry
	log      *zap.Logger
	script   *zap.Logger

	nextInstance atomic.Uint64
	mu           sync.Mutex
	instances    map[string]*instance
}

// Setup registers the native callbacks on rt and evaluates the glue that
// builds the request and response shapes and the Components namespace.
// Shapes are built here, once per context, and reused by every request.
func Setup(rt core.JSRuntime, opts Options) (*Bridge, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = core.NewClassRegistry()
	}
	b := &Bridge{
		rt:        rt,
		location:  opts.Location,
		registry:  opts.Registry,
		log:       opts.Logger,
		script:    opts.Logger.Named("script"),
		instances: make(map[string]*instance),
	}

	natives := []struct {
		name string
		fn   any
	}{
		{"__bridge_log", b.logLine},
		{"__bridge_req", b.requestField},
		{"__bridge_req_header", b.requestHeader},
		{"__bridge_ct_get", b.contentTypeGet},
		{"__bridge_ct_set", b.contentTypeSet},
		{"__bridge_write", b.writeString},
		{"__bridge_write_hex", b.writeHex},
		{"__bridge_class_new", b.classNew},
		{"__bridge_class_call", b.classCall},
	}
	for _, n := range natives {
		if err := rt.RegisterFunc(n.name, n.fn); err != nil {
			return nil, fmt.Errorf("registering %s: %w", n.name, err)
		}
	}

	classes, err := b.classInfos()
	if err != nil {
		return nil, err
	}
	if err := rt.SetGlobal("__bridge_classes", classes); err != nil {
		return nil, fmt.Errorf("publishing classes: %w", err)
	}
	if err := rt.Eval(glueJS); err != nil {
		return nil, fmt.Errorf("installing bridge globals: %w", err)
	}
	return b, nil
}

// BindEntryPoint resolves the top-level `process` binding left by the
// handler script and pins it as this context's entry point.
func (b *Bridge) BindEntryPoint() error {
	ok, err := b.rt.EvalBool("__bridge_bind_entry()")
	if err != nil {
		return fmt.Errorf("resolving process: %w", err)
	}
	if !ok {
		return errors.New("script does not define a callable `process`")
	}
	return nil
}

// Invoke calls process(request, response) for the request whose state
// was created with this bridge as owner. It returns the status code the
// script asked for, or ok=false when the return value was not an integer.
// Integers too large to represent exactly come back as -1.
func (b *Bridge) Invoke(reqID uint64) (status int, ok bool, err error) {
	handle := core.JsEscape(core.FormatReqID(reqID))
	out, err := b.rt.EvalString("__bridge_invoke(" + handle + ")")
	// Promise callbacks queued by process() still belong to this request,
	// even when it threw.
	b.rt.RunMicrotasks()
	if serr := b.rt.Eval("__bridge_settle()"); err == nil {
		err = serr
	}
	if err != nil {
		return 0, false, err
	}
	if out == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return -1, true, nil
	}
	return n, true, nil
}

// Close releases every instance that is still alive, including the ones
// created while the script's top level ran.
func (b *Bridge) Close() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.instances))
	for id := range b.instances {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	for _, id := range ids {
		b.release(id)
	}
}

func (b *Bridge) state(handle string) (*core.RequestState, error) {
	return core.LookupRequestState(handle, b)
}

func (b *Bridge) logLine(handle, message string) {
	id := core.ParseReqID(handle)
	if id != 0 {
		core.AddLog(id, "log", message)
	}
	b.script.Info("log",
		zap.String("location", b.location),
		zap.Uint64("request_id", id),
		zap.String("message", message),
	)
}

func (b *Bridge) requestField(handle, field string) (string, error) {
	st, err := b.state(handle)
	if err != nil {
		return "", err
	}
	r := st.Request
	switch field {
	case "uri":
		return r.URI, nil
	case "userAgent":
		return r.UserAgent, nil
	case "args":
		return r.Args, nil
	case "method":
		return r.Method, nil
	default:
		return "", fmt.Errorf("unknown request field %q", field)
	}
}

func (b *Bridge) requestHeader(handle, name string) (string, error) {
	st, err := b.state(handle)
	if err != nil {
		return "", err
	}
	return st.Request.Headers[strings.ToLower(name)], nil
}

func (b *Bridge) contentTypeGet(handle string) (string, error) {
	st, err := b.state(handle)
	if err != nil {
		return "", err
	}
	ct, _ := st.ContentType()
	return ct, nil
}

func (b *Bridge) contentTypeSet(handle, value string) (string, error) {
	st, err := b.state(handle)
	if err != nil {
		return "", err
	}
	st.SetContentType(value)
	return "", nil
}

func (b *Bridge) writeString(handle, data string) (string, error) {
	st, err := b.state(handle)
	if err != nil {
		return "", err
	}
	return "", st.Write([]byte(data))
}

func (b *Bridge) writeHex(handle, data string) (string, error) {
	st, err := b.state(handle)
	if err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decoding binary write: %w", err)
	}
	return "", st.Write(raw)
}

type classInfo struct {
	Name    string   `json:"name"`
	Methods []string `json:"methods"`
}

func (b *Bridge) classInfos() (string, error) {
	infos := make([]classInfo, 0, b.registry.Len())
	for _, name := range b.registry.Names() {
		desc, _ := b.registry.Lookup(name)
		infos = append(infos, classInfo{Name: name, Methods: desc.MethodNames()})
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return "", fmt.Errorf("encoding class infos: %w", err)
	}
	return string(data), nil
}
