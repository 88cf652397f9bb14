package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/config"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
	"github.com/dmitrijs2005/docsync/internal/server/replica"
)

func TestNewReplica_DisabledWithoutBucket(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()

	r, err := newReplica(context.Background(), c, logging.Discard(), metrics.NewUnregistered())
	require.NoError(t, err)
	require.IsType(t, replica.Noop{}, r)
}

func TestNewReplica_S3WhenBucketSet(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()
	c.S3Bucket = "docs"
	c.S3RootUser = "user"
	c.S3RootPassword = "password"
	c.S3BaseEndpoint = "http://127.0.0.1:9000"

	r, err := newReplica(context.Background(), c, logging.Discard(), metrics.NewUnregistered())
	require.NoError(t, err)
	require.IsType(t, &replica.S3Replicator{}, r)
}
