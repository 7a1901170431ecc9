// Package config provides application configuration management.
//
// The config package loads and validates the runbox configuration from
// YAML files using viper, providing defaults for every option. The
// trusted-image allowlist and the workspace root loaded here are
// process-wide, read-only state: sandbox invocations never mutate them.
package config
