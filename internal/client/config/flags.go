package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/docsync/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Invalid
// values panic.
func parseFlags(cfg *Config, argv []string) {
	args := flagx.FilterArgs(argv, []string{"-a", "-n", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server API base URL")
	fs.Int64Var(&cfg.ChunkSize, "n", cfg.ChunkSize, "chunk size (bytes)")
	fs.StringVar(&cfg.Token, "t", cfg.Token, "bearer token")
	timeout := fs.Int("i", int(cfg.Timeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.Timeout = time.Duration(*timeout) * time.Second
}
