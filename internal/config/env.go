package config

import (
	"sort"
	"strings"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// EnvVarFor returns the environment variable that overrides key.
func EnvVarFor(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(envKeyReplacer.Replace(key))
}

// EnvVars returns the sorted list of supported environment overrides.
func EnvVars() []string {
	vars := make([]string, 0, len(Keys))
	for _, key := range Keys {
		vars = append(vars, EnvVarFor(key))
	}
	sort.Strings(vars)
	return vars
}

// IsKnownKey reports whether key is a supported configuration key.
func IsKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
