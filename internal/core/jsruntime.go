package core

// JSRuntime abstracts the JavaScript engine (V8 or QuickJS) behind the
// small surface the bridge needs to install its globals and drive the
// entry point.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Arguments and results are limited to string, int, float64 and bool.
	// A trailing error result is thrown into JS instead of being returned.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable on the JS context. value is a
	// string, int, float64, bool or nil.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	RunMicrotasks()
}
