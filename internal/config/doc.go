// Package config resolves the launcher's settings from flags, environment
// variables, an optional .env file and an optional config file.
//
// Precedence, highest first:
//
//  1. Command-line flags that were set explicitly
//  2. Environment variables (HOST, HOSTNAME, PORT, GZIP and VSERVE_*)
//  3. The config file (vserve.yaml, vserve.json or --config)
//  4. Flag defaults and built-in defaults
//
// A .env file in the working directory is loaded before anything else. It
// never overrides variables that are already set.
//
// The result is a plain Config value. Nothing outside this package reads the
// environment.
package config
