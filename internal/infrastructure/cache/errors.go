package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks a key-value backend failure. Readers fall back to
	// the persistent store; writers report it without failing the write path.
	ErrUnavailable = errors.New("cache unavailable")
	// ErrCorruptPayload marks an entry that exists but cannot be decoded.
	ErrCorruptPayload = errors.New("corrupt cache payload")
)

func unavailable(op string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("cache %s: %w", op, err)
	}
	return fmt.Errorf("cache %s: %w: %w", op, ErrUnavailable, err)
}

func corrupt(namespace string, err error) error {
	return fmt.Errorf("cache %s: %w: %w", namespace, ErrCorruptPayload, err)
}
