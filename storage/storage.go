package storage

import (
	"context"
)

// Initer is optionally implemented by T to initialize zero-value fields
// (e.g., nil maps) after deserialization or when the backing file is absent.
type Initer interface {
	Init()
}

// Store provides locked read/modify/write access to a single persisted value.
// T is the top-level structure managed by the store.
type Store[T any] interface {
	// With passes the current value to fn under a shared lock.
	// fn must not modify the value or retain the pointer.
	With(ctx context.Context, fn func(*T) error) error
	// Update performs a read-modify-write under an exclusive lock.
	// If fn returns nil the value is persisted; otherwise it is discarded.
	Update(ctx context.Context, fn func(*T) error) error
}

// Default returns the zero T, initialised through Initer when implemented.
func Default[T any]() T {
	var data T
	initData(&data)
	return data
}

func initData[T any](data *T) {
	if initer, ok := any(data).(Initer); ok {
		initer.Init()
	}
}
