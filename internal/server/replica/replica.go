// Package replica mirrors stored files to an S3-compatible bucket. The
// mirror is best effort: failures are logged and counted, never returned,
// so the filesystem and the database stay the source of truth.
package replica

import (
	"context"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/docsync/internal/logging"
	sc "github.com/dmitrijs2005/docsync/internal/server/config"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
)

// Replicator receives the file-level outcome of registrations and edits.
type Replicator interface {
	// Put uploads the file at localPath as the copy of ownerID/name.
	Put(ctx context.Context, ownerID int64, name, localPath string)
	// Delete removes the copies of the named files of ownerID.
	Delete(ctx context.Context, ownerID int64, names ...string)
}

// Noop is used when no bucket is configured.
type Noop struct{}

func (Noop) Put(context.Context, int64, string, string) {}
func (Noop) Delete(context.Context, int64, ...string)   {}

// objectAPI is the part of *s3.Client the replica uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

const opTimeout = 30 * time.Second

type S3Replicator struct {
	client  objectAPI
	bucket  string
	logger  logging.Logger
	metrics *metrics.Metrics
}

// NewS3Replicator builds a client for the bucket named in cfg using static
// credentials and a path-style endpoint, as MinIO expects.
func NewS3Replicator(ctx context.Context, cfg *sc.Config, logger logging.Logger, m *metrics.Metrics) (*S3Replicator, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Replicator{client: client, bucket: cfg.S3Bucket, logger: logger, metrics: m}, nil
}

// Key returns the object key of a stored file. It mirrors the directory
// layout, so one object stands for one physical file.
func Key(ownerID int64, name string) string {
	return path.Join("documents", strconv.FormatInt(ownerID, 10), name)
}

func (r *S3Replicator) Put(ctx context.Context, ownerID int64, name, localPath string) {
	log := logging.FromContext(ctx, r.logger).With("owner_id", ownerID, "file", name)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	f, err := os.Open(localPath)
	if err != nil {
		r.fail(ctx, log, "put", err)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		r.fail(ctx, log, "put", err)
		return
	}

	key := Key(ownerID, name)
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
	})
	if err != nil {
		r.fail(ctx, log, "put", err)
		return
	}
	log.Debug(ctx, "replica updated", "key", key)
}

func (r *S3Replicator) Delete(ctx context.Context, ownerID int64, names ...string) {
	log := logging.FromContext(ctx, r.logger).With("owner_id", ownerID)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	for _, name := range names {
		key := Key(ownerID, name)
		if _, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(key),
		}); err != nil {
			r.fail(ctx, log.With("file", name), "delete", err)
			continue
		}
		log.Debug(ctx, "replica removed", "key", key)
	}
}

func (r *S3Replicator) fail(ctx context.Context, log logging.Logger, op string, err error) {
	r.metrics.ReplicaFailures.WithLabelValues(op).Inc()
	log.Warn(ctx, "replica "+op+" failed", "err", err)
}
