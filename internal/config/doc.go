// Package config provides configuration management for nefincli.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. A YAML configuration file
//  3. Default values (lowest priority)
//
// The file is the one named by NEFIN_CONFIG, otherwise the first of
// nefin.yaml, configs/nefin.yaml and ../configs/nefin.yaml that exists.
// Unknown keys in the file are rejected.
//
// # Environment Variables
//
// All environment variables follow the pattern NEFIN_<SECTION>_<KEY>:
//
//	NEFIN_SERVER_PORT=8080
//	NEFIN_SOURCE_BASE_URL=http://nefin.com.br/
//	NEFIN_SOURCE_TIMEOUT=60s
//	NEFIN_LOGGING_LEVEL=debug
//	NEFIN_SECURITY_RATE_LIMIT_RPS=10
//	NEFIN_TELEMETRY_ENABLE_TRACING=true
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tests can start from config.Default(), which needs no environment.
package config
