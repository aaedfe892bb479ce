package listener

import (
	"context"
	"reflect"
	"sync"

	"emperror.dev/errors"
	"github.com/go-logr/logr"

	"github.com/queuefab/queued-listener/internal/config"
	"github.com/queuefab/queued-listener/internal/connstr"
	"github.com/queuefab/queued-listener/internal/model"
)

// Options collapses the entry point's parameter surface into one struct.
// Receiver, Binding and Credential are mandatory; the rest have defaults.
type Options struct {
	// Receiver is the service object handling delivered requests.
	Receiver model.MsgReceiver
	// Binding is the transport policy used to construct the listener.
	Binding Binding
	// Credential supplies the connection string, either config.Literal or
	// config.Resolved.
	Credential config.Credential
	// QueueName overrides the queue identifier. When nil, the receiver's
	// simple type name is used verbatim, case preserved.
	QueueName func() string
	// Behaviors are attached to the endpoint after the authentication
	// behavior, keeping their relative order.
	Behaviors []Behavior
	// Logger used by the pipeline and the transport listener.
	Logger logr.Logger
}

// State of a deferred listener.
type State int

const (
	StateRegistered State = iota
	StateResolving
	StateBound
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "Registered"
	case StateResolving:
		return "Resolving"
	case StateBound:
		return "Bound"
	case StateFailed:
		return "Failed"
	}

	return "Unknown"
}

// DeferredListener holds the captured factory parameters until the host
// opens the listener. The resolve/derive/bind pipeline runs exactly once,
// inside Activate; afterwards the outcome is terminal and repeated calls
// observe it without re-running anything.
type DeferredListener struct {
	opts Options

	mu       sync.Mutex
	state    State
	listener Listener
	err      error
}

// CreateQueuedListener validates the eagerly-available parameters and
// captures everything else for activation. No configuration access, no
// descriptor parsing and no I/O happen here.
func CreateQueuedListener(opts Options) (*DeferredListener, error) {
	if opts.Receiver == nil {
		return nil, errors.WithMessage(model.ErrInvalidArgument, "receiver is nil")
	}
	if opts.Binding == nil {
		return nil, errors.WithMessage(model.ErrInvalidArgument, "binding is nil")
	}
	if opts.Credential == nil {
		return nil, errors.WithMessage(model.ErrInvalidArgument, "credential is nil")
	}
	if literal, is := opts.Credential.(config.Literal); is && literal == "" {
		return nil, config.ErrEmptyConnectionString
	}
	for i, behavior := range opts.Behaviors {
		if behavior == nil {
			return nil, errors.WithMessagef(model.ErrInvalidArgument, "behaviors[%d] is nil", i)
		}
	}

	return &DeferredListener{opts: opts, state: StateRegistered}, nil
}

// State reports the listener's lifecycle state.
func (d *DeferredListener) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// Activate runs the resolution and binding pipeline. The host invokes it
// once, at the moment it actually opens the listener; configuration and
// parsing errors surface here, not at registration.
func (d *DeferredListener) Activate(ctx context.Context) (Listener, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateBound:
		return d.listener, nil
	case StateFailed:
		return nil, d.err
	case StateResolving:
		return nil, errors.WithMessage(model.ErrInvalidArgument, "activation already in progress")
	case StateRegistered:
	}
	if ctx == nil {
		d.fail(config.ErrNilActivationContext)

		return nil, d.err
	}

	d.state = StateResolving
	lst, err := d.resolveAndBind(ctx)
	if err != nil {
		d.fail(err)

		return nil, d.err
	}
	d.state = StateBound
	d.listener = lst

	return d.listener, nil
}

// Close releases the bound listener, if any.
func (d *DeferredListener) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}

	return d.listener.Close()
}

func (d *DeferredListener) fail(err error) {
	d.state = StateFailed
	d.err = err
}

func (d *DeferredListener) resolveAndBind(ctx context.Context) (Listener, error) {
	connectionString, err := d.opts.Credential.ConnectionString(ctx)
	if err != nil {
		return nil, err
	}
	desc, err := connstr.Parse(connectionString)
	if err != nil {
		return nil, err
	}
	addr, err := connstr.DeriveAddress(desc, d.queueName())
	if err != nil {
		return nil, err
	}

	behaviors := make([]Behavior, 0, len(d.opts.Behaviors)+1)
	behaviors = append(behaviors, NewAuthBehavior(desc.KeyName, desc.Key))
	behaviors = append(behaviors, d.opts.Behaviors...)

	endpoint := &Endpoint{
		Address:   addr,
		Receiver:  d.opts.Receiver,
		Behaviors: behaviors,
	}

	return d.opts.Binding.Bind(ctx, endpoint, d.opts.Logger)
}

// queueName applies the selection rule: explicit provider first, else the
// service object's simple type name, used verbatim as the queue identifier.
func (d *DeferredListener) queueName() string {
	if d.opts.QueueName != nil {
		return d.opts.QueueName()
	}
	t := reflect.TypeOf(d.opts.Receiver)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}

	return t.Name()
}
