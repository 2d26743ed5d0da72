package core

import "time"

// DefaultContentType is sent when the script never assigns
// response.contentType.
const DefaultContentType = "text/html; charset=utf-8"

// Request is the native request handle the host hands to the bridge.
// The bridge never copies it: request accessors read these fields at the
// moment the script touches them, so host-side updates between accesses
// are visible to the script.
type Request struct {
	Method    string
	URI       string // path only, no query string
	Args      string // raw query string, without '?'
	UserAgent string
	Headers   map[string]string // lower-case names
}

// Host is the output side of the host server. The handler calls
// SendHeaders exactly once, then either SendBody with a non-empty chain,
// or SendLast followed by Finalize when the script wrote nothing.
type Host interface {
	SendHeaders(status int, contentType string) error
	SendBody(chain *OutputChain) error
	SendLast() error
	Finalize(status int)
}

// Result is what one request-handling invocation produced.
type Result struct {
	Status      int
	ContentType string
	Chain       *OutputChain // never nil; empty when nothing was written
	Deferred    bool         // true when the no-body finalize path was taken
	Logs        []LogEntry
	Error       error // *ScriptRuntimeError, or a host send failure
	Duration    time.Duration
}

// Body flattens the output chain. Convenience for tests and callers that
// do not stream.
func (r *Result) Body() []byte {
	if r == nil || r.Chain == nil {
		return nil
	}
	return r.Chain.Bytes()
}

// LogEntry is a single log() line captured from a script.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
