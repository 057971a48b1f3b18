package cart

import "context"

// Store is local persistent key/value storage. Set replaces the whole value.
// Get returns "" with a nil error when the key has never been set.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
