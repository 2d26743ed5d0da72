// Package host serves jshandler locations over net/http.
package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cryguy/jshandler/internal/core"
	toml "github.com/pelletier/go-toml/v2"
)

// Environment overrides.
const (
	EnvConfig = "JSHANDLER_CONFIG"
	EnvListen = "JSHANDLER_LISTEN"
)

// DefaultConfigPath is read when JSHANDLER_CONFIG is unset.
const DefaultConfigPath = "jshandler.toml"

// Duration is a time.Duration written as "5s" or "250ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the server configuration file.
type Config struct {
	Listen          string     `toml:"listen"`
	LogDir          string     `toml:"log_dir"`
	LogLevel        string     `toml:"log_level"`
	MaxConnections  int        `toml:"max_connections"`
	ShutdownTimeout Duration   `toml:"shutdown_timeout"`
	Locations       []Location `toml:"location"`
}

// Location is one [[location]] table.
type Location struct {
	Path             string   `toml:"path"`
	Script           string   `toml:"script"`
	Extensions       []string `toml:"extensions"`
	PoolSize         int      `toml:"pool_size"`
	ExecutionTimeout Duration `toml:"execution_timeout"`
	MemoryLimitMB    int      `toml:"memory_limit_mb"`
	MaxResponseBytes int      `toml:"max_response_bytes"`
	Compress         bool     `toml:"compress"`
}

// LoadConfig reads and validates a TOML file. Relative script and
// extension paths are resolved against the file's directory.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.Locations {
		l := &c.Locations[i]
		l.Script = abs(l.Script)
		for j, e := range l.Extensions {
			if !strings.HasPrefix(e, "builtin:") {
				l.Extensions[j] = abs(e)
			}
		}
	}
}

// Validate checks the whole file and returns every problem found.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Locations) == 0 {
		errs = append(errs, errors.New("no [[location]] configured"))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, errors.New("max_connections must not be negative"))
	}
	seen := make(map[string]bool, len(c.Locations))
	for i, l := range c.Locations {
		name := l.Path
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		fail := func(format string, args ...any) {
			errs = append(errs, &core.ConfigError{Location: name, Op: "validate", Err: fmt.Errorf(format, args...)})
		}
		switch {
		case l.Path == "":
			fail("path is required")
		case !strings.HasPrefix(l.Path, "/"):
			fail("path must start with /")
		case seen[l.Path]:
			fail("duplicate path")
		}
		seen[l.Path] = true
		if l.Script == "" {
			fail("script is required")
		}
		if l.PoolSize < 0 || l.MemoryLimitMB < 0 || l.MaxResponseBytes < 0 || l.ExecutionTimeout.Duration < 0 {
			fail("limits must not be negative")
		}
	}
	return errors.Join(errs...)
}

// LocationConfig converts the table into the engine-facing config.
func (l Location) LocationConfig() core.LocationConfig {
	return core.LocationConfig{
		Path:             l.Path,
		ScriptPath:       l.Script,
		Extensions:       append([]string(nil), l.Extensions...),
		PoolSize:         l.PoolSize,
		MemoryLimitMB:    l.MemoryLimitMB,
		ExecutionTimeout: int(l.ExecutionTimeout.Milliseconds()),
		MaxResponseBytes: l.MaxResponseBytes,
	}.WithDefaults()
}

// EnvOr returns the environment variable k, or def when it is empty.
func EnvOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
