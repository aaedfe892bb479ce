package listener

import (
	"context"
	"strconv"

	"emperror.dev/errors"
	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"

	"github.com/queuefab/queued-listener/internal/model"
)

var _ model.MsgRequester = (*NATSRequester)(nil)

// NATSRequester is the client-side counterpart of the NATS-bound listener,
// used by the request CLI and the transport tests.
type NATSRequester struct {
	conn *nats.Conn
	log  logr.Logger
}

func NewNATSRequester(brokerURL string, log logr.Logger) (*NATSRequester, error) {
	conn, err := nats.Connect(brokerURL)
	if err != nil {
		return nil, errors.WrapIf(err, "connecting to broker")
	}

	return &NATSRequester{conn: conn, log: log}, nil
}

func (c *NATSRequester) Request(ctx context.Context, req model.Request) (*model.Response, error) {
	respMsg, err := c.conn.RequestMsgWithContext(ctx, &nats.Msg{
		Subject: req.Queue,
		Header:  nats.Header(req.Header),
		Data:    req.Payload,
	})
	if err != nil {
		c.log.Error(err, "nats.Conn.RequestMsg", "queue", req.Queue)

		return nil, errors.WrapIf(err, "queue request")
	}

	status, _ := strconv.Atoi(respMsg.Header.Get(HeaderStatus)) //nolint:errcheck // missing header maps to 0
	errTxt := respMsg.Header.Get(HeaderError)
	respMsg.Header.Del(HeaderStatus)
	respMsg.Header.Del(HeaderError)

	return &model.Response{
		Header:  respMsg.Header,
		Payload: respMsg.Data,
		Status:  status,
		Error:   errTxt,
	}, nil
}

func (c *NATSRequester) Close() error {
	return errors.WrapIf(c.conn.Drain(), "draining broker connection")
}
