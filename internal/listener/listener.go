// Package listener binds service objects to message-queue transports. The
// factory entry point is CreateQueuedListener; resolution and binding run
// once, when the host activates the returned deferred listener.
package listener

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/queuefab/queued-listener/internal/connstr"
	"github.com/queuefab/queued-listener/internal/model"
)

// Fabric response headers carrying reply status and error text.
const (
	HeaderStatus = "X-Queue-Status"
	HeaderError  = "X-Queue-Error"
)

// Behavior is a cross-cutting component attached to a bound endpoint.
// Concrete behaviors additionally implement ReceiverBehavior, TokenIssuer
// or both.
type Behavior interface {
	Name() string
}

// ReceiverBehavior wraps the receive path of the endpoint. Behaviors are
// applied in list order: the first listed is the outermost wrapper.
type ReceiverBehavior interface {
	Behavior
	Wrap(next model.MsgReceiver) model.MsgReceiver
}

// TokenIssuer issues fabric access tokens for the endpoint's connection.
type TokenIssuer interface {
	Behavior
	KeyName() string
	Key() string
	TokenFor(audience string) (string, error)
}

// Endpoint is the runtime-bound listening endpoint handed to a Binding.
// The behavior list preserves insertion order; the authentication behavior
// is always at index 0, followed by the caller-supplied behaviors.
type Endpoint struct {
	Address   connstr.Address
	Receiver  model.MsgReceiver
	Behaviors []Behavior
}

// WrappedReceiver folds the receiver behaviors around the service object.
func (ep *Endpoint) WrappedReceiver() model.MsgReceiver {
	receiver := ep.Receiver
	for i := len(ep.Behaviors) - 1; i >= 0; i-- {
		if wrapper, is := ep.Behaviors[i].(ReceiverBehavior); is {
			receiver = wrapper.Wrap(receiver)
		}
	}

	return receiver
}

// TokenIssuer returns the first token-issuing behavior, usually the SAS
// authentication behavior inserted by the binder.
func (ep *Endpoint) TokenIssuer() TokenIssuer {
	for _, behavior := range ep.Behaviors {
		if issuer, is := behavior.(TokenIssuer); is {
			return issuer
		}
	}

	return nil
}

// Binding is the caller-supplied transport policy, opaque to the binder.
// Bind constructs the transport listener for the endpoint.
type Binding interface {
	Bind(ctx context.Context, ep *Endpoint, log logr.Logger) (Listener, error)
}

// Listener is a bound, receiving transport endpoint.
type Listener interface {
	// Endpoint of the listener, with the final behavior list.
	Endpoint() *Endpoint
	// Close stops delivery and releases the transport connection.
	Close() error
}
