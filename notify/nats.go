package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/c360/tagkit/errors"
)

// DefaultSubjectPrefix is the NATS subject prefix for tag change events.
// Events are published to "<prefix>.<change type>".
const DefaultSubjectPrefix = "tagkit.tags.changed"

// NATSNotifier publishes change events as JSON to NATS subjects so remote
// collaborators (host UIs, sibling adapters) can react to configuration
// changes without polling.
type NATSNotifier struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATSNotifier creates a notifier publishing under the given subject
// prefix; empty prefix uses DefaultSubjectPrefix.
func NewNATSNotifier(nc *nats.Conn, subjectPrefix string) (*NATSNotifier, error) {
	if nc == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil NATS connection"), "NATSNotifier", "New", "connection validation")
	}
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATSNotifier{nc: nc, subjectPrefix: subjectPrefix}, nil
}

// Notify publishes the event. Publish is fire-and-forget at the NATS level;
// a disconnected client buffers internally and errors only when the buffer
// is exhausted.
func (n *NATSNotifier) Notify(_ context.Context, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WrapInvalid(err, "NATSNotifier", "Notify", "marshal event")
	}

	subject := fmt.Sprintf("%s.%s", n.subjectPrefix, event.Type)
	if err := n.nc.Publish(subject, data); err != nil {
		return errors.WrapUnavailable(err, "NATSNotifier", "Notify", "publish event")
	}
	return nil
}

var _ Notifier = (*NATSNotifier)(nil)
