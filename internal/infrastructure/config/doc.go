// Package config handles loading and validating the telemetry sink
// configuration.
//
// This package manages:
//   - Loading sectioned configuration from INI (viper) or YAML files
//   - Overriding with environment variables
//   - Reading the legacy flat [seplos3mqtt] section
//   - Typed decoding and validation of every setting
//
// Security Considerations:
//   - Tokens and passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    fmt.Fprint(os.Stderr, config.Help())
//	    os.Exit(1)
//	}
//	fmt.Println(cfg.InfluxDB.URL)
package config
