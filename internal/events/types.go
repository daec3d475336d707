package events

import "context"

// Event type constants, format: domain.action
const (
	EventTypeExecutionDispatched = "execution.dispatched"
	EventTypeExecutionProcessing = "execution.processing"
	EventTypeExecutionCompleted  = "execution.completed"
	EventTypeExecutionFailed     = "execution.failed"
	EventTypeExecutionTimedOut   = "execution.timed_out"
)

// Publisher fans execution transitions out to interested consumers
// (currently the websocket status stream). Publishing is best-effort.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error
}
