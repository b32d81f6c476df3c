// Package output renders command results for the lobbysync CLI.
//
//   - formatter.go: Formatter interface, format parsing and factory
//   - table.go: aligned tables, with lobby list and detail views
//   - json.go: indented JSON
//   - yaml.go: block-style YAML
//
// Table output is meant for people; json and yaml are stable for scripts.
package output
