//go:build !v8

package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// executePendingJobs drains the job queue (promise reactions) of the VM's
// runtime and returns how many jobs ran. The Go wrapper does not expose
// JS_ExecutePendingJob, so the C runtime handle is read out of the VM.
func executePendingJobs(vm *quickjs.VM) int {
	rt, tls, ok := runtimeHandle(vm)
	if !ok {
		return 0
	}
	n := 0
	for lib.XJS_ExecutePendingJob(tls, rt, 0) > 0 {
		n++
	}
	return n
}

// runtimeHandle reads VM.runtime.{cRuntime,tls} (modernc.org/quickjs v0.17).
func runtimeHandle(vm *quickjs.VM) (uintptr, *libc.TLS, bool) {
	field := reflect.ValueOf(vm).Elem().FieldByName("runtime")
	if !field.IsValid() || field.IsNil() {
		return 0, nil, false
	}
	inner := reflect.NewAt(field.Type().Elem(), unsafe.Pointer(field.Pointer())).Elem()

	cRuntime := inner.FieldByName("cRuntime")
	tls := inner.FieldByName("tls")
	if !cRuntime.IsValid() || !tls.IsValid() || tls.IsNil() {
		return 0, nil, false
	}
	return uintptr(cRuntime.Uint()), (*libc.TLS)(unsafe.Pointer(tls.Pointer())), true
}
