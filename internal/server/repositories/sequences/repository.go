// Package sequences hands out values of named, database-side counters.
package sequences

import "context"

type Repository interface {
	// Next increments the counter called name and returns the new value.
	Next(ctx context.Context, name string) (int64, error)
}
