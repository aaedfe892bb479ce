package internal

import (
	"context"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/go-logr/logr"

	"github.com/queuefab/queued-listener/internal/listener"
	"github.com/queuefab/queued-listener/internal/model"
)

// RequestConfig is filled from flags, config file and environment.
type RequestConfig struct {
	// BrokerURL of the messaging fabric.
	BrokerURL string
	// Queue to send the request to.
	Queue string
	// Payload of the request.
	Payload string
	// Timeout of the reply wait.
	Timeout time.Duration
}

// Request sends one request through the fabric and logs the reply.
type Request struct {
	config RequestConfig
	log    logr.Logger
}

func NewRequestService(_ context.Context, cfg interface{}, log logr.Logger) model.Service {
	if requestConfig, is := cfg.(*RequestConfig); !is {
		log.Error(ErrInvalidConfig, "config type")
		panic(ErrInvalidConfig)
	} else {
		return &Request{
			config: *requestConfig,
			log:    log,
		}
	}
}

func (s *Request) Run(args []string) error {
	s.log = s.log.WithValues("args", args)
	s.log.Info("Request start")

	requester, err := listener.NewNATSRequester(s.config.BrokerURL, s.log)
	if err != nil {
		return errors.WrapIf(err, "creating requester")
	}
	defer requester.Close() //nolint:errcheck // exiting anyway

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()
	resp, err := requester.Request(ctx, model.Request{
		Queue:   s.config.Queue,
		Header:  map[string][]string{model.QueueHeaderMethod: {http.MethodPost}},
		Payload: []byte(s.config.Payload),
	})
	if err != nil {
		return errors.WrapIf(err, "queue request")
	}
	s.log.Info("Request reply",
		"status", resp.Status,
		"error", resp.Error,
		"server", http.Header(resp.Header).Get(model.QueueHeaderServer),
		"payload", string(resp.Payload),
	)

	return nil
}
