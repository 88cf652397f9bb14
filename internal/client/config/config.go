// Package config loads runtime configuration for the upload client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the server API
//	-n int      chunk size, bytes
//	-t string   bearer token
//	-i int      request timeout (seconds)
//
// JSON keys: server_url, chunk_size, token, timeout ("30s" or nanoseconds).
package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/docsync/internal/flagx"
)

// Flags lists every flag the client configuration owns.
var Flags = []string{"-a", "-n", "-t", "-i", "-c", "-config"}

// Config holds runtime settings for the upload client.
type Config struct {
	ServerURL string
	ChunkSize int64
	Token     string
	Timeout   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.ChunkSize = 1 << 20
	c.Token = ""
	c.Timeout = 30 * time.Second
}

// LoadConfig builds a Config from defaults, JSON and flags, and returns the
// remaining positional arguments.
func LoadConfig() (*Config, []string) {
	args := os.Args[1:]
	return load(args), flagx.Positional(args, Flags)
}

func load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
