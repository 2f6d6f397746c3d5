// Package config provides configuration loading and validation for the message relay.
// It reads an optional YAML file, applies environment overrides (including a local
// .env file) and validates every section before the service starts.
package config
