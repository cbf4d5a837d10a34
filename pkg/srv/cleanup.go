package srv

import "context"

// cleanupService wraps a teardown function as a Service so resource closers
// (database handle, event hub) share the ordered shutdown path.
type cleanupService struct {
	cleanup func() error
}

func (c *cleanupService) Start(ctx context.Context) error {
	return nil
}

func (c *cleanupService) Shutdown(ctx context.Context) error {
	if c.cleanup != nil {
		return c.cleanup()
	}
	return nil
}

// NewCleanup registers fn to run at shutdown. It does nothing at start.
func NewCleanup(fn func() error) Service {
	return &cleanupService{cleanup: fn}
}
