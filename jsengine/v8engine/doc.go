// Package v8engine is the jsengine backend built on V8 through v8go.
//
// The backend needs cgo. Without it the package is empty and only the goja
// backend is registered.
package v8engine

const Name = "v8"
