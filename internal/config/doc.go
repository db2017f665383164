// Package config loads and validates engine configuration from YAML files
// and STRATACACHE_* environment variables. Defaults come from NewDefault;
// file values override defaults and environment variables override both.
package config
