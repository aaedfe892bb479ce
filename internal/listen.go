package internal

import (
	"context"
	"io"
	"net/http"

	"emperror.dev/errors"
	"github.com/go-logr/logr"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/queuefab/queued-listener/internal/config"
	"github.com/queuefab/queued-listener/internal/httpmsg"
	"github.com/queuefab/queued-listener/internal/listener"
	"github.com/queuefab/queued-listener/internal/logger"
	"github.com/queuefab/queued-listener/internal/model"
	"github.com/queuefab/queued-listener/internal/tracing"
)

var (
	ErrInvalidConfig   = errors.NewPlain("invalid config")
	ErrInvalidAccessor = errors.NewPlain("invalid config accessor")
)

var ErrUnknownTransport = errors.WithMessage(model.ErrConfiguration, "unknown transport")

// ListenConfig is filled from flags, config file and environment.
type ListenConfig struct {
	// ConnectionString literal; when empty, the connection string is
	// resolved from the configuration store instead.
	ConnectionString string
	// Transport selects the binding: "nats" or "amqp".
	Transport string
	// BrokerURL overrides the broker URL derived from the endpoint address.
	BrokerURL string
	// Queue overrides the queue name derived from the service contract.
	Queue string
	// PathPrefix of the demo handler routes.
	PathPrefix string
	// Instance identifier in traces and replies.
	Instance string
	// OtlpURL of the trace collector, "-" to disable.
	OtlpURL string
	// Response prefix of the demo echo handler.
	Response string
	// MaxConcurrent delivered messages handled at once.
	MaxConcurrent int64

	VaultAddr       string
	VaultToken      string
	VaultTransitKey string
}

// Listen runs a demo echo service behind a queued listener.
type Listen struct {
	config   ListenConfig
	accessor config.Accessor
	log      logr.Logger
	shutdown <-chan struct{}
}

func NewListenService(ctx context.Context, cfg interface{}, log logr.Logger) model.Service {
	if listenConfig, is := cfg.(*ListenConfig); !is {
		log.Error(ErrInvalidConfig, "config type")
		panic(ErrInvalidConfig)
	} else if accessor, is := ctx.Value(model.CtxKeyConfigAccessor).(config.Accessor); !is {
		log.Error(ErrInvalidAccessor, "config accessor")
		panic(ErrInvalidAccessor)
	} else {
		return &Listen{
			config:   *listenConfig,
			accessor: accessor,
			log:      log,
			shutdown: ctx.Done(),
		}
	}
}

func (s *Listen) Run(args []string) error {
	s.log = s.log.WithValues("args", args)
	s.log.Info("Listen start")

	exporter, err := tracing.OtlpProvider(s.config.OtlpURL)
	if err != nil {
		return errors.WrapIf(err, "building trace exporter")
	}
	tp := tracing.InitTracer(exporter, sdktrace.AlwaysSample(), "listen", s.config.Instance, s.log)
	defer tp.Shutdown(context.Background()) //nolint:errcheck // shutdown flush is best effort

	binding, err := s.binding()
	if err != nil {
		return err
	}

	deferred, err := listener.CreateQueuedListener(listener.Options{
		Receiver:   &httpmsg.HandlerReceiver{Handler: s.bindRoutes(), PathPrefix: s.config.PathPrefix},
		Binding:    binding,
		Credential: s.credential(),
		QueueName:  s.queueName(),
		Behaviors: []listener.Behavior{
			&listener.LogBehavior{Log: s.log},
			&listener.SpanBehavior{Tracer: tp.Tracer("listen")},
			listener.NewThrottleBehavior(s.config.MaxConcurrent),
		},
		Logger: s.log,
	})
	if err != nil {
		return errors.WrapIf(err, "creating queued listener")
	}

	lst, err := deferred.Activate(context.Background())
	if err != nil {
		return errors.WrapIf(err, "activating queued listener")
	}
	s.log.Info("Listener bound", "address", lst.Endpoint().Address.String())

	<-s.shutdown
	if err = lst.Close(); err != nil {
		s.log.Error(err, "Listener close error")
	}
	s.log.Info("Listen exit")

	return nil
}

func (s *Listen) bindRoutes() http.Handler {
	e := echo.New()
	e.Use(logger.EchoLogr(s.log))
	e.Use(middleware.Recover())
	e.POST("/"+s.config.PathPrefix+"/:queue", func(c echo.Context) error {
		if c.Request().Body == nil {
			return c.String(http.StatusBadRequest, "empty request") //nolint:wrapcheck // echo
		}
		defer c.Request().Body.Close() //nolint:errcheck // read only
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error()) //nolint:wrapcheck // echo
		}
		c.Response().Header().Set(model.QueueHeaderServer, s.config.Instance)

		return c.String(http.StatusOK, s.config.Response+string(body)) //nolint:wrapcheck // echo
	})

	return e
}

func (s *Listen) binding() (listener.Binding, error) {
	switch s.config.Transport {
	case "nats":
		return &listener.NATSBinding{URL: s.config.BrokerURL}, nil
	case "amqp":
		return &listener.AMQPBinding{URL: s.config.BrokerURL, Durable: true, Prefetch: int(s.config.MaxConcurrent)}, nil
	}

	return nil, errors.WithDetails(ErrUnknownTransport, "transport", s.config.Transport)
}

func (s *Listen) credential() config.Credential {
	if s.config.ConnectionString != "" {
		return config.Literal(s.config.ConnectionString)
	}
	resolved := config.Resolved{Accessor: s.accessor}
	if s.config.VaultAddr != "" {
		decrypter, err := config.NewVaultDecrypter(config.VaultConfig{
			Address:    s.config.VaultAddr,
			Token:      s.config.VaultToken,
			TransitKey: s.config.VaultTransitKey,
		})
		if err != nil {
			s.log.Error(err, "Vault decrypter unavailable")
		} else {
			resolved.Decrypter = decrypter
		}
	}

	return resolved
}

func (s *Listen) queueName() func() string {
	if s.config.Queue == "" {
		return nil
	}

	return func() string { return s.config.Queue }
}
