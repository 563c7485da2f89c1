// Package config handles loading and validating the HubSpace bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HUBSPACE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The HubSpace password and MQTT credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.HubSpace.PollInterval)
package config
