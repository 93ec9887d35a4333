// Package config loads and validates telebridge configuration.
//
// Configuration comes from three layers, later layers overriding earlier:
//
//  1. Hardcoded defaults (defaultConfig)
//  2. YAML file (configs/config.yaml by default)
//  3. Environment variables (TELEBRIDGE_* pattern)
//
// Secrets (MQTT password, InfluxDB token) should be supplied through the
// environment rather than committed to the YAML file.
package config
