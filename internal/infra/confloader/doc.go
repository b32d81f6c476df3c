// Package confloader loads configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults carried by the target struct
//  2. A YAML configuration file
//  3. Environment variables (LOBBYSYNC_ prefix, "__" between sections)
//  4. Overrides, usually command-line flags
//
// Watcher reports changes to the configuration file through fsnotify so
// that callers can re-read it and apply the settings that may change at
// runtime.
package confloader
