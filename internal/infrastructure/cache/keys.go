package cache

import (
	"encoding/json"
	"fmt"
)

// KeySeparator joins a namespace and a sanitized key.
const KeySeparator = ":"

// SanitizeKey turns a lookup value into a deterministic key string. Strings
// are used verbatim; anything else is serialized canonically, so filters with
// the same fields and values map to the same key regardless of field order.
func SanitizeKey(key any) (string, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case nil:
		return "", fmt.Errorf("cache: nil key")
	}
	// encoding/json writes map keys in sorted order.
	b, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("cache: key not serializable: %w", err)
	}
	return string(b), nil
}

// PhysicalKey composes the backend key for key within namespace.
func PhysicalKey(namespace string, key any) (string, error) {
	k, err := SanitizeKey(key)
	if err != nil {
		return "", err
	}
	return namespace + KeySeparator + k, nil
}
