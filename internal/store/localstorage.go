//go:build js && wasm

package store

import (
	"context"
	"errors"
	"fmt"
	"syscall/js"
)

// LocalStorage persists blobs in the browser's window.localStorage.
// Values are stored as strings; the JSON records are UTF-8 text.
type LocalStorage struct {
	storage js.Value
}

// NewLocalStorage binds to window.localStorage.
func NewLocalStorage() (*LocalStorage, error) {
	storage := js.Global().Get("localStorage")
	if storage.IsUndefined() || storage.IsNull() {
		return nil, errors.New("localStorage is not available")
	}
	return &LocalStorage{storage: storage}, nil
}

// Load reads key; a missing key yields nil.
func (s *LocalStorage) Load(_ context.Context, key string) (data []byte, err error) {
	defer recoverJSError(&err, "load "+key)

	v := s.storage.Call("getItem", key)
	if v.IsNull() || v.IsUndefined() {
		return nil, nil
	}
	return []byte(v.String()), nil
}

// Save writes key. Browser quota errors surface as Go errors.
func (s *LocalStorage) Save(_ context.Context, key string, data []byte) (err error) {
	defer recoverJSError(&err, "save "+key)

	s.storage.Call("setItem", key, string(data))
	return nil
}

// Delete removes key.
func (s *LocalStorage) Delete(_ context.Context, key string) (err error) {
	defer recoverJSError(&err, "delete "+key)

	s.storage.Call("removeItem", key)
	return nil
}

// Close is a no-op.
func (s *LocalStorage) Close() error {
	return nil
}

// recoverJSError converts a thrown JS exception into err.
func recoverJSError(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	if jsErr, ok := r.(js.Error); ok {
		*err = fmt.Errorf("%s: %w", op, jsErr)
		return
	}
	panic(r)
}

var _ Storer = (*LocalStorage)(nil)
