// Package config defines the application configuration: HTTP listener, NATS
// persistence, engine tuning, logging, the target hierarchy naming scheme,
// and seed targets. Configuration is loaded from a YAML file with
// FLOWDEPLOY_* environment overrides; credentials come from the environment
// only.
package config
