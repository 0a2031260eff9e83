// Package config loads the MFA service configuration.
//
// Load reads a YAML file over built-in defaults, applies GRAYLOGIC_*
// environment overrides and validates the result, reporting every problem
// at once. Secrets (JWT secret, MQTT and Redis passwords, InfluxDB token)
// belong in the environment rather than the file.
//
// The devices section selects the profile store backend and the identity
// attribute that marks a user as allowed to skip OATH. The attribute may be
// overridden per realm; the nearest configured ancestor wins:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	attr := cfg.Devices.OATH.SkippableAttributeFor("/staff/ops")
package config
