package config

import "os"

// ExpandEnv expands environment variables in YAML content using the
// standard library. Supports both ${VAR} and $VAR syntax.
//
// Missing variables expand to empty string; Validate() is responsible for
// catching required fields left empty by a missing variable.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
