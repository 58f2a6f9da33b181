package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook runs around message handling. Returning an error from
// BeforeHandle skips the handler and sends the message to the DLQ without
// retries.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

// HookError is produced by a hook that rejects a message.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs adapts plain functions to ConsumerHook. Nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message) (context.Context, error)
	After  func(context.Context, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, km, err)
	}
}

type ctxKey string

// CtxSessionID holds the session id carried in the message headers.
const CtxSessionID ctxKey = "kafka_session_id"

// SessionHeader is the header key producers use for the session id.
const SessionHeader = "session_id"

// SessionIDFromHeaders returns the session header or "".
func SessionIDFromHeaders(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == SessionHeader && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// SessionID returns the session id stored by a hook, if any.
func SessionID(ctx context.Context) string {
	s, _ := ctx.Value(CtxSessionID).(string)
	return s
}

// WithSessionID stores a session id in the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, CtxSessionID, id)
}
