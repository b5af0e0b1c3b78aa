// Package maputils reads typed values from maps that were decoded from
// configuration files.
package maputils

import "fmt"

// StrVal returns the value of key as string.
// If the key does not exist an empty string is returned.
// If the key exists but is not a string, an error is returned.
func StrVal(m map[string]any, key string) (string, error) {
	val, ok := m[key]
	if !ok {
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("value of key %q has type %T, expected string", key, val)
	}

	return str, nil
}

// StrMapVal returns the value of key as map[string]string.
// The value must be a table (a map[string]any) whose values are all strings.
// If the key does not exist an empty map is returned.
func StrMapVal(m map[string]any, key string) (map[string]string, error) {
	val, ok := m[key]
	if !ok {
		return map[string]string{}, nil
	}

	table, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("value of key %q has type %T, expected a table", key, val)
	}

	result := make(map[string]string, len(table))
	for k, v := range table {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: value of key %q has type %T, expected string", key, k, v)
		}

		result[k] = str
	}

	return result, nil
}
