// Package services contains the server-side business logic: sequence
// allocation, chunked uploads and document registration, staged-delete
// edits guarded by the edit lock, and owning-record creation.
package services

import (
	"context"

	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
)

// Sequencer hands out unique identifiers. Passing the transaction handle
// makes the allocation part of the caller's unit of work.
type Sequencer interface {
	Next(ctx context.Context, db dbx.DBTX, name string) (int64, error)
}

// SequenceService allocates values from the database-side counters.
type SequenceService struct {
	repomanager repomanager.RepositoryManager
	metrics     *metrics.Metrics
}

func NewSequenceService(m repomanager.RepositoryManager, mt *metrics.Metrics) *SequenceService {
	return &SequenceService{repomanager: m, metrics: mt}
}

func (s *SequenceService) Next(ctx context.Context, db dbx.DBTX, name string) (int64, error) {
	v, err := s.repomanager.Sequences(db).Next(ctx, name)
	if err != nil {
		return 0, err
	}
	s.metrics.SequenceAllocations.WithLabelValues(name).Inc()
	s.metrics.SequenceValue.WithLabelValues(name).Set(float64(v))
	return v, nil
}
