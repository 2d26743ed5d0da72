package jshandler

import "github.com/cryguy/jshandler/internal/core"

// Type aliases re-exporting internal/core types so hosts can build
// requests and inspect results without importing internal packages.

type Request = core.Request
type Result = core.Result
type Host = core.Host
type LogEntry = core.LogEntry
type OutputChain = core.OutputChain
type Buffer = core.Buffer
type LocationConfig = core.LocationConfig
type ConfigError = core.ConfigError
type ExtensionLoadError = core.ExtensionLoadError
type ScriptRuntimeError = core.ScriptRuntimeError

// ErrBridgeLifetime is raised inside scripts that touch a request or
// response object after its request finished.
var ErrBridgeLifetime = core.ErrBridgeLifetime

// DefaultContentType is sent when a script never sets contentType.
const DefaultContentType = core.DefaultContentType
