// Package config handles loading and validating actuator core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling, including the default safety envelope and
//     parameter map for a controlled-environment growing facility
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret has no default and must be at least 32 characters
//
// The control and safety sections only seed the runtime strategy. Once the
// core is running, strategy changes go through the management API and are
// not written back to the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Control.Mode)
package config
