package listener

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	nats_server "github.com/nats-io/nats-server/v2/server"
	nats_test "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/suite"

	"github.com/queuefab/queued-listener/internal/config"
	"github.com/queuefab/queued-listener/internal/httpmsg"
	"github.com/queuefab/queued-listener/internal/logger"
	"github.com/queuefab/queued-listener/internal/model"
)

type NatsTestSuite struct {
	suite.Suite
	log logr.Logger
}

func TestNatsTestSuite(t *testing.T) {
	suite.Run(t, new(NatsTestSuite))
}

func (s *NatsTestSuite) SetupTest() {
	s.log = logger.GetLogger(s.T().Name())
}

func (s *NatsTestSuite) runNatsServer() (*nats_server.Server, string) {
	opts := nats_test.DefaultTestOptions
	opts.Host = "127.0.0.1"
	opts.Port = -1
	srv, err := nats_server.NewServer(&opts)
	s.Require().NoError(err)
	go srv.Start()
	s.Require().True(srv.ReadyForConnections(time.Second))

	return srv, "nats://" + net.JoinHostPort(opts.Host, strconv.Itoa(srv.Addr().(*net.TCPAddr).Port))
}

func (s *NatsTestSuite) bindRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/queues/EchoContract", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		body, _ := io.ReadAll(req.Body)
		w.Header().Set("Rcv-Test-Client", req.Header.Get("Test-Client"))
		w.WriteHeader(http.StatusOK)
		w.Write(append([]byte("PONG:"), body...))
	})

	return r
}

func (s *NatsTestSuite) TestQueueRequestReply() {
	srv, natsURL := s.runNatsServer()
	defer srv.Shutdown()

	receiver := &httpmsg.HandlerReceiver{Handler: s.bindRoutes(), PathPrefix: "queues"}
	deferred, err := CreateQueuedListener(Options{
		Receiver:   receiver,
		Binding:    &NATSBinding{URL: natsURL},
		Credential: config.Literal("Endpoint=sb://demo.example.net/;SharedAccessKeyName=K;SharedAccessKey=S"),
		QueueName:  func() string { return "EchoContract" },
		Behaviors:  []Behavior{&LogBehavior{Log: s.log}, NewThrottleBehavior(4)},
		Logger:     s.log,
	})
	s.Require().NoError(err)

	lst, err := deferred.Activate(context.Background())
	s.Require().NoError(err)
	defer lst.Close() //nolint:errcheck // test teardown
	s.Equal("sb://demo.example.net/EchoContract", lst.Endpoint().Address.String())

	requester, err := NewNATSRequester(natsURL, s.log)
	s.Require().NoError(err)
	defer requester.Close() //nolint:errcheck // test teardown

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := requester.Request(ctx, model.Request{
		Queue:   "EchoContract",
		Header:  map[string][]string{"Test-Client": {s.T().Name()}},
		Payload: []byte("PING"),
	})
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.Status)
	s.Empty(resp.Error)
	s.Equal([]byte("PONG:PING"), resp.Payload)
	s.Equal(s.T().Name(), http.Header(resp.Header).Get("Rcv-Test-Client"))
}

func (s *NatsTestSuite) TestQueueRequestUnknownRoute() {
	srv, natsURL := s.runNatsServer()
	defer srv.Shutdown()

	receiver := &httpmsg.HandlerReceiver{Handler: s.bindRoutes(), PathPrefix: "queues"}
	deferred, err := CreateQueuedListener(Options{
		Receiver:   receiver,
		Binding:    &NATSBinding{URL: natsURL},
		Credential: config.Literal("Endpoint=sb://demo.example.net/"),
		QueueName:  func() string { return "OtherContract" },
		Logger:     s.log,
	})
	s.Require().NoError(err)

	lst, err := deferred.Activate(context.Background())
	s.Require().NoError(err)
	defer lst.Close() //nolint:errcheck // test teardown

	requester, err := NewNATSRequester(natsURL, s.log)
	s.Require().NoError(err)
	defer requester.Close() //nolint:errcheck // test teardown

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := requester.Request(ctx, model.Request{Queue: "OtherContract"})
	s.Require().NoError(err)
	s.Equal(http.StatusNotFound, resp.Status)
}

func (s *NatsTestSuite) TestBrokerUnreachable() {
	deferred, err := CreateQueuedListener(Options{
		Receiver:   &PingContract{},
		Binding:    &NATSBinding{URL: "nats://127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond, MaxReconnects: -1},
		Credential: config.Literal("Endpoint=sb://demo.example.net/"),
		Logger:     s.log,
	})
	s.Require().NoError(err)

	_, err = deferred.Activate(context.Background())
	s.Error(err)
	s.Equal(StateFailed, deferred.State())
}
