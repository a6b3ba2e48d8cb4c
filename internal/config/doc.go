// Package config provides the operating mode and the process-level defaults
// an interception falls back on when its own configuration leaves a field
// unset.
//
// Precedence, highest first:
//
//  1. the field set on the interception itself
//  2. the TEST_MODE environment variable (mode only)
//  3. the YAML file named by EASYFIX_CONFIG
//  4. built-in defaults: directory "test/data", mode "replay"
package config
