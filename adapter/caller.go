package adapter

import "github.com/c360/tagkit/pkg/worker"

// Caller identifies who invoked an operation. The SDK treats it as an
// opaque identity: implementations may use the claims bag for
// authorization decisions, the SDK itself never does.
type Caller struct {
	// ID is the host-assigned caller identity.
	ID string
	// Culture is an IETF language tag used when localizing
	// display strings, empty for the host default.
	Culture string
	// Claims carries host-defined key-value assertions about the caller.
	Claims map[string]string
}

// Claim looks up a claim by key.
func (c Caller) Claim(key string) (string, bool) {
	v, ok := c.Claims[key]
	return v, ok
}

// System is the caller identity for the adapter's own background work.
func System() Caller {
	return Caller{ID: "system"}
}

// TaskScheduler runs fire-and-forget background tasks on behalf of
// adapter components. worker.Pool satisfies it.
type TaskScheduler interface {
	Submit(task worker.Task) error
}
