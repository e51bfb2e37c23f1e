// Package config provides configuration parsing for dux tools.
//
// The configuration is stored in dux.json (or dux.yaml) at the project
// root. This package handles loading, saving and validating configuration,
// and turns the storage section into storage.Areas.
//
// # Configuration File Structure
//
//	{
//	  "storage": {
//	    "durable": {"driver": "sqlite", "path": ".dux/state.db"},
//	    "session": {"driver": "memory"},
//	    "timeout": "5s"
//	  },
//	  "devtools": {
//	    "addr": "localhost:7070",
//	    "rate": 20,
//	    "burst": 5
//	  },
//	  "metrics": {"namespace": "dux"},
//	  "log": {"level": "info", "format": "text"}
//	}
//
// Storage drivers are memory, sqlite (path, table), file (path) and s3
// (bucket, prefix, region, endpoint). Relative paths are resolved against
// the directory holding the config file.
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	areas, err := cfg.OpenAreas(ctx, logger)
package config
