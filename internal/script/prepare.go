// Package script turns a handler file on disk into plain script source
// that defines a top-level `process`.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// moduleGlobal holds a bundled script's exports.
const moduleGlobal = "__handler_module"

// Load reads path and prepares it. Read failures are returned unwrapped
// (*fs.PathError).
func Load(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Prepare(path, string(source))
}

// Prepare returns source unchanged when it is plain JavaScript. TypeScript
// is stripped. ES and CommonJS modules are bundled into an IIFE and the
// exported `process` is lifted to a global.
func Prepare(path, source string) (string, error) {
	if mayBeModule(source) {
		out, isModule, err := bundle(path, source)
		if err != nil {
			return "", err
		}
		if isModule {
			return out, nil
		}
	}
	if isTypeScript(path) {
		return transform(path, source)
	}
	return source, nil
}

func isTypeScript(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return true
	}
	return false
}

func transform(path, source string) (string, error) {
	result := esbuild.Transform(source, esbuild.TransformOptions{
		Loader:     esbuild.LoaderTS,
		Sourcefile: filepath.Base(path),
		Target:     esbuild.ES2020,
	})
	if err := buildErrors(result.Errors); err != nil {
		return "", fmt.Errorf("transforming %s: %w", filepath.Base(path), err)
	}
	return string(result.Code), nil
}

// bundle builds source as an entry point. isModule is false when the
// parsed entry has neither imports nor module syntax; out is then unused.
func bundle(path, source string) (out string, isModule bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, err
	}
	loader := esbuild.LoaderJS
	if isTypeScript(path) {
		loader = esbuild.LoaderTS
	}
	result := esbuild.Build(esbuild.BuildOptions{
		Stdin: &esbuild.StdinOptions{
			Contents:   source,
			ResolveDir: filepath.Dir(abs),
			Sourcefile: filepath.Base(abs),
			Loader:     loader,
		},
		AbsWorkingDir: filepath.Dir(abs),
		Bundle:        true,
		Format:        esbuild.FormatIIFE,
		GlobalName:    moduleGlobal,
		Write:         false,
		Metafile:      true,
		Platform:      esbuild.PlatformNeutral,
		Target:        esbuild.ES2020,
		Footer: map[string]string{
			"js": "var process = " + moduleGlobal + ".process;",
		},
	})
	if err := buildErrors(result.Errors); err != nil {
		return "", false, fmt.Errorf("bundling %s: %w", filepath.Base(path), err)
	}
	if len(result.OutputFiles) == 0 {
		return "", false, fmt.Errorf("bundling %s produced no output", filepath.Base(path))
	}
	isModule, err = entryIsModule(result.Metafile)
	if err != nil {
		return "", false, fmt.Errorf("bundling %s: %w", filepath.Base(path), err)
	}
	return string(result.OutputFiles[0].Contents), isModule, nil
}

type metafile struct {
	Inputs map[string]struct {
		Imports []struct {
			Path string `json:"path"`
		} `json:"imports"`
		Format string `json:"format"`
	} `json:"inputs"`
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint"`
	} `json:"outputs"`
}

// entryIsModule reports whether esbuild parsed the entry point as an ES or
// CommonJS module, or found it importing anything.
func entryIsModule(meta string) (bool, error) {
	var m metafile
	if err := json.Unmarshal([]byte(meta), &m); err != nil {
		return false, fmt.Errorf("reading metafile: %w", err)
	}
	for _, out := range m.Outputs {
		if out.EntryPoint == "" {
			continue
		}
		in, ok := m.Inputs[out.EntryPoint]
		if !ok {
			return false, fmt.Errorf("metafile has no input %q", out.EntryPoint)
		}
		return in.Format != "" || len(in.Imports) > 0, nil
	}
	return false, errors.New("metafile has no entry point")
}

func buildErrors(msgs []esbuild.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			texts = append(texts, fmt.Sprintf("%s:%d: %s", m.Location.File, m.Location.Line, m.Text))
			continue
		}
		texts = append(texts, m.Text)
	}
	return fmt.Errorf("%s", strings.Join(texts, "; "))
}

// mayBeModule is a cheap filter. A match only means the source is worth
// parsing; comments and strings match too.
func mayBeModule(source string) bool {
	for _, word := range []string{"import", "export", "require(", "module.exports", "exports."} {
		if strings.Contains(source, word) {
			return true
		}
	}
	return false
}
