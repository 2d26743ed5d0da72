package core

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const MaxLogEntries = 1000
const MaxLogMessageSize = 4096

// RequestState is the request-scoped arena behind the script-visible
// request and response objects. Scripts never hold a pointer to it; they
// hold its handle, and every accessor resolves the handle through
// LookupRequestState. Clearing the state invalidates all handles at once.
type RequestState struct {
	Request          *Request
	Chain            *OutputChain
	MaxResponseBytes int
	Logs             []LogEntry

	// owner identifies the execution context serving the request. Handles
	// presented by any other context are rejected.
	owner any

	contentType    string
	contentTypeSet bool

	extMu    sync.Mutex
	cleanups []func()
}

// ContentType returns the value last assigned by the script and whether
// any assignment happened.
func (rs *RequestState) ContentType() (string, bool) {
	return rs.contentType, rs.contentTypeSet
}

// SetContentType replaces the response content type. The string is
// copied into state owned by the request.
func (rs *RequestState) SetContentType(v string) {
	rs.contentType = string(append([]byte(nil), v...))
	rs.contentTypeSet = true
}

// Write appends p to the request's output chain, enforcing the response
// size cap.
func (rs *RequestState) Write(p []byte) error {
	if rs.MaxResponseBytes > 0 && rs.Chain.Len()+len(p) > rs.MaxResponseBytes {
		return fmt.Errorf("response body exceeds %d bytes", rs.MaxResponseBytes)
	}
	rs.Chain.Append(p)
	return nil
}

// RegisterCleanup adds a cleanup function to be called when the request state
// is cleared. Cleanups are called in reverse registration order.
func (rs *RequestState) RegisterCleanup(fn func()) {
	rs.extMu.Lock()
	rs.cleanups = append(rs.cleanups, fn)
	rs.extMu.Unlock()
}

var (
	requestCounter atomic.Uint64
	requestStates  sync.Map // uint64 -> *RequestState
)

// NewRequestState creates the state for one request served by owner and
// returns its handle.
func NewRequestState(req *Request, owner any, maxResponseBytes int) uint64 {
	id := requestCounter.Add(1)
	requestStates.Store(id, &RequestState{
		Request:          req,
		Chain:            NewOutputChain(),
		MaxResponseBytes: maxResponseBytes,
		owner:            owner,
	})
	return id
}

// GetRequestState returns the state for the given request ID, or nil.
func GetRequestState(id uint64) *RequestState {
	v, ok := requestStates.Load(id)
	if !ok {
		return nil
	}
	return v.(*RequestState)
}

// LookupRequestState resolves a script-held handle. It fails with
// ErrBridgeLifetime when the request already completed, the handle was
// forged, or owner is not the context the request runs in.
func LookupRequestState(handle string, owner any) (*RequestState, error) {
	id := ParseReqID(handle)
	if id == 0 {
		return nil, ErrBridgeLifetime
	}
	state := GetRequestState(id)
	if state == nil || state.owner != owner {
		return nil, ErrBridgeLifetime
	}
	return state, nil
}

// ClearRequestState removes the state for the given request ID and returns it.
// Registered cleanups run before it returns; after that every handle that
// referred to the request fails lookup.
func ClearRequestState(id uint64) *RequestState {
	v, ok := requestStates.LoadAndDelete(id)
	if !ok {
		return nil
	}
	state := v.(*RequestState)

	state.extMu.Lock()
	cleanups := state.cleanups
	state.cleanups = nil
	state.extMu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	return state
}

// AddLog appends a log entry to the request state identified by id.
func AddLog(id uint64, level, message string) {
	state := GetRequestState(id)
	if state == nil {
		return
	}
	if len(state.Logs) >= MaxLogEntries {
		return
	}
	if len(message) > MaxLogMessageSize {
		message = message[:MaxLogMessageSize] + "...(truncated)"
	}
	state.Logs = append(state.Logs, LogEntry{
		Level:   level,
		Message: message,
		Time:    time.Now(),
	})
}

// ParseReqID parses a request handle string to uint64. Anything that is
// not a positive decimal yields 0, which never names a live request.
func ParseReqID(s string) uint64 {
	if s == "" || s == "undefined" {
		return 0
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// FormatReqID is the inverse of ParseReqID.
func FormatReqID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// JsEscape escapes a string for safe embedding in JavaScript source code.
func JsEscape(s string) string {
	return strconv.Quote(s)
}
