package core

// Defaults applied by LocationConfig.WithDefaults.
const (
	DefaultPoolSize         = 1
	DefaultExecutionTimeout = 5000     // milliseconds
	DefaultMaxResponseBytes = 10 << 20 // 10 MiB
)

// LocationConfig holds the configuration of one routing location: the
// handler script, the extension modules merged into its Components
// namespace and the runtime limits of its execution contexts.
type LocationConfig struct {
	Path             string   // routing prefix, used for logs and metrics
	ScriptPath       string   // script <path>
	Extensions       []string // extension <path>, in directive order
	PoolSize         int      // number of independent execution contexts
	MemoryLimitMB    int      // per-context heap limit, 0 means unlimited
	ExecutionTimeout int      // milliseconds before a running process() is interrupted
	MaxResponseBytes int      // cap on bytes accumulated by response.write
}

// WithDefaults returns a copy of c with zero limits replaced by defaults.
func (c LocationConfig) WithDefaults() LocationConfig {
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = DefaultExecutionTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return c
}
