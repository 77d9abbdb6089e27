package main

import (
	"os"

	"github.com/BurntSushi/toml"
)

const configFile = ".wsldb.toml"

// config supplies defaults for flags that rarely change between
// invocations in one working directory.
type config struct {
	Schema string `toml:"schema"`
	Shape  string `toml:"shape"`
}

// loadConfig reads .wsldb.toml from the current directory. A missing or
// unreadable file yields the zero config; a present but malformed file
// is also ignored rather than failing the command it was meant to
// abbreviate.
func loadConfig() config {
	var cfg config
	data, err := os.ReadFile(configFile)
	if err != nil {
		return cfg
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return config{}
	}
	return cfg
}
