package listener

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"emperror.dev/errors"
	"github.com/go-logr/logr"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/queuefab/queued-listener/internal/logger"
	"github.com/queuefab/queued-listener/internal/model"
)

// AMQPBinding is the transport policy for an AMQP-backed queue listener.
// The queue is declared on bind; replies go to the request's ReplyTo queue
// with the request's correlation ID.
type AMQPBinding struct {
	// URL overrides the broker URI derived from the endpoint address and
	// the SAS key pair.
	URL string
	// Prefetch limits unacknowledged deliveries per consumer.
	Prefetch int
	// Durable queue declaration.
	Durable bool
	// AutoDelete queue declaration.
	AutoDelete bool
}

var _ Binding = (*AMQPBinding)(nil)

type amqpListener struct {
	endpoint *Endpoint
	conn     *amqp.Connection
	channel  *amqp.Channel
	log      logr.Logger
}

func (b *AMQPBinding) Bind(ctx context.Context, ep *Endpoint, log logr.Logger) (Listener, error) {
	conn, err := amqp.Dial(b.brokerURI(ep))
	if err != nil {
		return nil, errors.WrapIf(err, "connecting to broker")
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close() //nolint:errcheck,gosec // bind failed already

		return nil, errors.WrapIf(err, "opening channel")
	}
	if b.Prefetch > 0 {
		if err = channel.Qos(b.Prefetch, 0, false); err != nil {
			conn.Close() //nolint:errcheck,gosec // bind failed already

			return nil, errors.WrapIf(err, "setting prefetch")
		}
	}
	queue, err := channel.QueueDeclare(ep.Address.Queue, b.Durable, b.AutoDelete, false, false, nil)
	if err != nil {
		conn.Close() //nolint:errcheck,gosec // bind failed already

		return nil, errors.WrapIf(err, "declaring queue")
	}
	deliveries, err := channel.Consume(queue.Name, "queued-listener/"+queue.Name, false, false, false, false, nil)
	if err != nil {
		conn.Close() //nolint:errcheck,gosec // bind failed already

		return nil, errors.WrapIf(err, "consuming queue")
	}

	lst := &amqpListener{
		endpoint: ep,
		conn:     conn,
		channel:  channel,
		log:      log,
	}
	go lst.serve(ep.WrappedReceiver(), deliveries)

	return lst, nil
}

func (b *AMQPBinding) brokerURI(ep *Endpoint) string {
	if b.URL != "" {
		return b.URL
	}
	host := ep.Address.Host() + ":5672"
	if issuer := ep.TokenIssuer(); issuer != nil && issuer.Key() != "" {
		return fmt.Sprintf("amqp://%s:%s@%s/",
			url.QueryEscape(issuer.KeyName()), url.QueryEscape(issuer.Key()), host)
	}

	return "amqp://" + host + "/"
}

func (l *amqpListener) serve(receiver model.MsgReceiver, deliveries <-chan amqp.Delivery) {
	for delivery := range deliveries {
		ctx := logger.NewContext(context.Background(), l.log.WithValues("queue", l.endpoint.Address.Queue))
		resp, err := receiver.Receive(ctx, model.Request{
			Queue:   l.endpoint.Address.Queue,
			Header:  amqpTableToHeader(delivery.Headers),
			Payload: delivery.Body,
		})
		if resp == nil {
			resp = &model.Response{Header: map[string][]string{}}
		}
		status := resp.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		errTxt := resp.Error
		if err != nil {
			errTxt = err.Error()
		}
		if delivery.ReplyTo != "" {
			headers := headerToAmqpTable(resp.Header)
			headers[HeaderStatus] = strconv.Itoa(status)
			headers[HeaderError] = errTxt
			if err = l.channel.PublishWithContext(context.Background(), "", delivery.ReplyTo, false, false,
				amqp.Publishing{
					CorrelationId: delivery.CorrelationId,
					Headers:       headers,
					Body:          resp.Payload,
				},
			); err != nil {
				l.log.Error(err, "amqp.Channel.Publish", "replyTo", delivery.ReplyTo)
			}
		}
		if err = delivery.Ack(false); err != nil {
			l.log.Error(err, "amqp.Delivery.Ack")
		}
	}
}

func (l *amqpListener) Endpoint() *Endpoint {
	return l.endpoint
}

func (l *amqpListener) Close() error {
	if err := l.channel.Close(); err != nil {
		l.log.Error(err, "amqp.Channel.Close")
	}

	return errors.WrapIf(l.conn.Close(), "closing broker connection")
}

func amqpTableToHeader(table amqp.Table) map[string][]string {
	header := make(map[string][]string, len(table))
	for key, value := range table {
		switch typed := value.(type) {
		case string:
			header[key] = []string{typed}
		case []interface{}:
			for _, item := range typed {
				if s, is := item.(string); is {
					header[key] = append(header[key], s)
				}
			}
		}
	}

	return header
}

func headerToAmqpTable(header map[string][]string) amqp.Table {
	table := make(amqp.Table, len(header))
	for key, values := range header {
		items := make([]interface{}, 0, len(values))
		for _, value := range values {
			items = append(items, value)
		}
		table[key] = items
	}

	return table
}
