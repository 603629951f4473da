// Package config loads runtime configuration for the notepad client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string     address:port of the sync server
//	-i int        online status check interval (seconds)
//	-d string     path of the local SQLite database
//	-t string     access token issued by the server
//	-l string     log level
//	-f string     log file
//	-z string     IANA timezone used for dates
//
// # File schema
//
// Durations accept strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_path": "notesum.db",
//	  "cloud_sync_delay": "30s"
//	}
//
// Note: This package does not read environment variables directly; use the
// config file or flags to configure values.
package config
