package session

import "context"

// ChangeBroker fans auth-state changes out to every interested listener,
// possibly across server instances.
type ChangeBroker interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe delivers changes to handler in publish order until the
	// returned unsubscribe func is called or ctx ends.
	Subscribe(ctx context.Context, handler func(Change)) (unsubscribe func(), err error)
}
