// Package httpmsg bridges http.Handler based services to the queue message
// shapes, in both directions. It is the black-box service-contract dispatch
// used by the demo CLI and the transport tests.
package httpmsg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"

	"github.com/queuefab/queued-listener/internal/model"
)

var _ model.MsgReceiver = (*HandlerReceiver)(nil)

// HandlerReceiver adapts an http.Handler to the MsgReceiver capability.
// The queue name becomes the request path below PathPrefix; the logical
// method and host travel in queue headers.
type HandlerReceiver struct {
	Handler    http.Handler
	PathPrefix string
}

func (h *HandlerReceiver) Receive(ctx context.Context, req model.Request) (*model.Response, error) {
	recorder := &httptest.ResponseRecorder{Body: &bytes.Buffer{}}
	header := http.Header(req.Header)
	path, _ := url.JoinPath("/", h.PathPrefix, req.Queue) //nolint:errcheck // elements are static
	method := header.Get(model.QueueHeaderMethod)
	if method == "" {
		method = http.MethodPost
	}
	reqURL := url.URL{
		Scheme: "queue",
		Host:   header.Get(model.QueueHeaderHost),
		Path:   path,
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL.String(),
		io.NopCloser(bytes.NewReader(req.Payload)))
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Header

	h.Handler.ServeHTTP(recorder, httpReq)

	hostname, _ := os.Hostname() //nolint:errcheck // best effort
	recorder.Header().Set(model.QueueHeaderServer, hostname)

	return &model.Response{
		Header:  recorder.Header(),
		Status:  recorder.Code,
		Payload: recorder.Body.Bytes(),
	}, nil
}

// QueueTransport is an http.RoundTripper routing queue:// URLs through a
// MsgRequester; everything else falls through to DefaultTransport.
type QueueTransport struct {
	DefaultTransport http.RoundTripper
	Requester        model.MsgRequester
}

func (t *QueueTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "queue" {
		return t.DefaultTransport.RoundTrip(req) //nolint:wrapcheck // passthrough
	}
	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
	}
	resp, err := t.Requester.Request(req.Context(),
		model.Request{Queue: req.URL.Hostname(), Header: req.Header, Payload: payload},
	)
	if err != nil {
		return nil, err
	}

	return &http.Response{
		Request:       req,
		Proto:         "HTTP/1.0",
		ProtoMajor:    1,
		Header:        resp.Header,
		Close:         true,
		Body:          io.NopCloser(bytes.NewReader(resp.Payload)),
		ContentLength: int64(len(resp.Payload)),
		StatusCode:    resp.Status,
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
	}, nil
}
