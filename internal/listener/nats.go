package listener

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"

	"github.com/queuefab/queued-listener/internal/logger"
	"github.com/queuefab/queued-listener/internal/model"
)

// NATSBinding is the transport policy for a NATS-backed queue listener.
// The binding is owned by the caller and never mutated by the binder.
type NATSBinding struct {
	// URL overrides the broker URL derived from the endpoint address.
	URL string
	// ConnectTimeout for the broker connection, nats.DefaultTimeout if zero.
	ConnectTimeout time.Duration
	// MaxReconnects for the broker connection, nats.DefaultMaxReconnect if zero.
	MaxReconnects int
}

var _ Binding = (*NATSBinding)(nil)

type natsListener struct {
	endpoint *Endpoint
	conn     *nats.Conn
	sub      *nats.Subscription
	log      logr.Logger
}

// Bind subscribes the endpoint's receiver to the queue subject. The queue
// name doubles as the queue group, so replicas of the same contract compete
// for messages.
func (b *NATSBinding) Bind(ctx context.Context, ep *Endpoint, log logr.Logger) (Listener, error) {
	brokerURL := b.URL
	if brokerURL == "" {
		brokerURL = "nats://" + ep.Address.Host() + ":4222"
	}
	opts := []nats.Option{nats.Name("queued-listener/" + ep.Address.Queue)}
	if b.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(b.ConnectTimeout))
	}
	if b.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(b.MaxReconnects))
	}
	if issuer := ep.TokenIssuer(); issuer != nil && issuer.Key() != "" {
		token, err := issuer.TokenFor(ep.Address.String())
		if err != nil {
			return nil, err
		}
		opts = append(opts, nats.Token(token))
	}

	conn, err := nats.Connect(brokerURL, opts...)
	if err != nil {
		return nil, errors.WrapIf(err, "connecting to broker")
	}

	receiver := ep.WrappedReceiver()
	sub, err := conn.QueueSubscribe(ep.Address.Queue, ep.Address.Queue, func(msg *nats.Msg) {
		msgLog := log.WithValues("queue", msg.Subject)
		ctx := logger.NewContext(context.Background(), msgLog)
		resp, err := receiver.Receive(ctx, model.Request{
			Queue:   msg.Subject,
			Header:  msg.Header,
			Payload: msg.Data,
		})
		if resp == nil {
			resp = &model.Response{Header: map[string][]string{}}
		}
		header := nats.Header(resp.Header)
		if header == nil {
			header = nats.Header{}
		}
		status := resp.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		errTxt := resp.Error
		if err != nil {
			errTxt = err.Error()
		}
		header.Set(HeaderStatus, strconv.Itoa(status))
		header.Set(HeaderError, errTxt)
		if err = msg.RespondMsg(&nats.Msg{Header: header, Data: resp.Payload}); err != nil {
			msgLog.Error(err, "nats.Msg.RespondMsg")
		}
	})
	if err != nil {
		conn.Close()

		return nil, errors.WrapIf(err, "subscribing to queue")
	}

	return &natsListener{
		endpoint: ep,
		conn:     conn,
		sub:      sub,
		log:      log,
	}, nil
}

func (l *natsListener) Endpoint() *Endpoint {
	return l.endpoint
}

func (l *natsListener) Close() error {
	if err := l.sub.Unsubscribe(); err != nil {
		l.log.Error(err, "nats.Subscription.Unsubscribe")
	}

	return errors.WrapIf(l.conn.Drain(), "draining broker connection")
}
