// Package ledger stores the state that is handed over between the build
// steps of a build, e.g. the branches that were merged and must be pushed.
package ledger

import (
	"context"
	"time"
)

// Store is a key-value store that supports string and list values.
// Reading a key that does not exist is not an error.
type Store interface {
	Put(ctx context.Context, key, val string) error
	Get(ctx context.Context, key string) (val string, exists bool, err error)
	AppendToList(ctx context.Context, key, val string) error
	List(ctx context.Context, key string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}
