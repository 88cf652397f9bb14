package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/docsync/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-q string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-r string   storage root directory
//	-l string   lock marker file name
//	-k string   backup folder name
//	-x int      max chunk size, bytes
//	-v string   log level
//	-i int      health probe interval, seconds
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name (empty disables the replica)
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Invalid values panic; this runs once at startup.
func parseFlags(config *Config, argv []string) {
	args := flagx.FilterArgs(argv, []string{
		"-a", "-q", "-d", "-s", "-r", "-l", "-k", "-x", "-v", "-i", "-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "q", config.GRPCAddr, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.StorageRoot, "r", config.StorageRoot, "storage root")
	fs.StringVar(&config.LockFileName, "l", config.LockFileName, "lock marker file name")
	fs.StringVar(&config.BackupFolderName, "k", config.BackupFolderName, "backup folder name")
	fs.Int64Var(&config.MaxChunkBytes, "x", config.MaxChunkBytes, "max chunk size (bytes)")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	probe := fs.Int("i", int(config.HealthProbeInterval.Seconds()), "health probe interval (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 replica bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.HealthProbeInterval = time.Duration(*probe) * time.Second
}
