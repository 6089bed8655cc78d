// Package config loads the recman configuration file.
//
// The file is YAML. Values not present in the file keep the defaults from
// Default, and the result is checked with struct-tag validation. Only the
// section of the selected backend is validated, so a csv setup does not need
// a reachable Redis address.
//
//	backend: sqlite
//	sqlite:
//	  path: data/records.db
//	  busy_timeout: 5s
//	telemetry:
//	  logging:
//	    level: debug
//
// Command line flags are layered on top with Apply.
package config
