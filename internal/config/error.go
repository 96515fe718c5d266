package config

import (
	"fmt"
	"sort"
)

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authbridge configuration: %s %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("authbridge configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
