package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/docsync/internal/flagx"
	"github.com/dmitrijs2005/docsync/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Interval
// fields use timex.Duration so "10s" and integer nanoseconds both parse.
type JsonConfig struct {
	HTTPAddr            string         `json:"http_addr"`
	GRPCAddr            string         `json:"grpc_addr"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	StorageRoot         string         `json:"storage_root"`
	LockFileName        string         `json:"lock_file_name"`
	BackupFolderName    string         `json:"backup_folder_name"`
	MaxChunkBytes       int64          `json:"max_chunk_bytes"`
	LogLevel            string         `json:"log_level"`
	HealthProbeInterval timex.Duration `json:"health_probe_interval"`
	ShutdownTimeout     timex.Duration `json:"shutdown_timeout"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the JSON file named by -c/-config.
// Fields absent from the file keep their current values. A missing or
// malformed file panics.
func parseJson(config *Config, args []string) {
	jsonConfigFile := flagx.ConfigPath(args)

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.StorageRoot, c.StorageRoot)
	setString(&config.LockFileName, c.LockFileName)
	setString(&config.BackupFolderName, c.BackupFolderName)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.MaxChunkBytes > 0 {
		config.MaxChunkBytes = c.MaxChunkBytes
	}
	if c.HealthProbeInterval.Duration > 0 {
		config.HealthProbeInterval = c.HealthProbeInterval.Duration
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
