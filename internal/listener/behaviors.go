package listener

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/codes"
	metric_api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/queuefab/queued-listener/internal/logger"
	"github.com/queuefab/queued-listener/internal/model"
	"github.com/queuefab/queued-listener/internal/sas"
)

// AuthBehavior is the token-issuing credential the binder inserts at the
// head of every endpoint's behavior list. It is derived solely from the
// connection descriptor.
type AuthBehavior struct {
	provider *sas.TokenProvider
}

var _ TokenIssuer = (*AuthBehavior)(nil)

func NewAuthBehavior(keyName string, key string) *AuthBehavior {
	return &AuthBehavior{provider: sas.NewTokenProvider(keyName, key)}
}

func (b *AuthBehavior) Name() string { return "sas-auth" }

func (b *AuthBehavior) KeyName() string { return b.provider.KeyName() }

func (b *AuthBehavior) Key() string { return b.provider.Key() }

func (b *AuthBehavior) TokenFor(audience string) (string, error) {
	return b.provider.Token(audience, sas.DefaultTokenTTL)
}

type receiverFunc func(ctx context.Context, req model.Request) (*model.Response, error)

func (f receiverFunc) Receive(ctx context.Context, req model.Request) (*model.Response, error) {
	return f(ctx, req)
}

// LogBehavior logs every delivered message with its outcome and duration.
type LogBehavior struct {
	Log logr.Logger
}

var _ ReceiverBehavior = (*LogBehavior)(nil)

func (b *LogBehavior) Name() string { return "log" }

func (b *LogBehavior) Wrap(next model.MsgReceiver) model.MsgReceiver {
	return receiverFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		log := b.Log
		if log.GetSink() == nil {
			ctx, log = logger.FromContext(ctx)
		}
		log = log.WithValues("queue", req.Queue, "payloadLen", len(req.Payload))
		log.Info("MSG_BEGIN")
		begin := time.Now()
		resp, err := next.Receive(ctx, req)
		elapsed := time.Since(begin)
		if err != nil {
			log.Error(err, "MSG_END", "duration", elapsed.String())
		} else {
			log.Info("MSG_END", "status", resp.Status, "duration", elapsed.String())
		}

		return resp, err
	})
}

// SpanBehavior starts a server span per delivered message, continuing the
// trace propagated through the message headers.
type SpanBehavior struct {
	Tracer trace.Tracer
}

var _ ReceiverBehavior = (*SpanBehavior)(nil)

func (b *SpanBehavior) Name() string { return "span" }

func (b *SpanBehavior) Wrap(next model.MsgReceiver) model.MsgReceiver {
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

	return receiverFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		ctx = propagator.Extract(ctx, propagation.HeaderCarrier(http.Header(req.Header)))
		ctx, span := b.Tracer.Start(ctx, "IN MSG "+req.Queue,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		resp, err := next.Receive(ctx, req)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}

		return resp, err
	})
}

// ThrottleBehavior bounds the number of concurrently handled messages.
type ThrottleBehavior struct {
	sem *semaphore.Weighted
}

var _ ReceiverBehavior = (*ThrottleBehavior)(nil)

func NewThrottleBehavior(maxConcurrent int64) *ThrottleBehavior {
	return &ThrottleBehavior{sem: semaphore.NewWeighted(maxConcurrent)}
}

func (b *ThrottleBehavior) Name() string { return "throttle" }

func (b *ThrottleBehavior) Wrap(next model.MsgReceiver) model.MsgReceiver {
	return receiverFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer b.sem.Release(1)

		return next.Receive(ctx, req)
	})
}

// RetryBehavior retries the receive path with exponential backoff on error.
type RetryBehavior struct {
	// MaxRetries additional attempts after the first failure.
	MaxRetries uint64
	// InitialInterval of the backoff, backoff.DefaultInitialInterval if zero.
	InitialInterval time.Duration
}

var _ ReceiverBehavior = (*RetryBehavior)(nil)

func (b *RetryBehavior) Name() string { return "retry" }

func (b *RetryBehavior) Wrap(next model.MsgReceiver) model.MsgReceiver {
	return receiverFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		policy := backoff.NewExponentialBackOff()
		if b.InitialInterval > 0 {
			policy.InitialInterval = b.InitialInterval
		}

		return backoff.RetryWithData(func() (*model.Response, error) {
			return next.Receive(ctx, req)
		}, backoff.WithContext(backoff.WithMaxRetries(policy, b.MaxRetries), ctx))
	})
}

// CounterBehavior counts delivered messages and sums their handling time.
type CounterBehavior struct {
	received metric_api.Int64Counter
	duration metric_api.Float64Counter
}

var _ ReceiverBehavior = (*CounterBehavior)(nil)

func NewCounterBehavior(meter metric_api.Meter, name string) (*CounterBehavior, error) {
	received, err := meter.Int64Counter(name, metric_api.WithDescription("delivered messages"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Counter(name+"_duration",
		metric_api.WithDescription("delivered messages, duration sum"), metric_api.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &CounterBehavior{received: received, duration: duration}, nil
}

func (b *CounterBehavior) Name() string { return "counter" }

func (b *CounterBehavior) Wrap(next model.MsgReceiver) model.MsgReceiver {
	return receiverFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		begin := time.Now()
		resp, err := next.Receive(ctx, req)
		b.received.Add(ctx, 1)
		b.duration.Add(ctx, time.Since(begin).Seconds())

		return resp, err
	})
}
