// Arbor resolves parser backends for configuration and source formats and
// parses files into a normalized syntax tree.
//
// It selects one of several interchangeable backends per format, honoring
// an explicit choice, a scoped override, a process default or automatic
// selection by priority, and refuses backends that conflict with ones
// already used.
//
// Usage:
//
//	# Parse files, detecting the format from the extension
//	arbor parse config.toml values.yaml main.tf
//
//	# Parse with an explicit backend and print the tree as JSON
//	arbor parse --backend burntsushi --tree -o json config.toml
//
//	# Show backends with availability, usage and conflicts
//	arbor backends
//
//	# Report which backend a resource would use
//	arbor resolve --resource yaml
//
//	# Serve the HTTP API
//	arbor serve --config arbor.yaml
//
//	# Query the resolution journal
//	arbor journal list --since 24h --outcome conflict
package main

import "os"

func main() {
	os.Exit(Execute())
}
