package model

import (
	"context"

	"github.com/go-logr/logr"
)

type contextKey string

const (
	CtxKeyCmd            = contextKey("command")
	CtxKeyConfigAccessor = contextKey("ConfigAccessor")
)

const (
	// QueueHeaderMethod carries the logical request method over the fabric.
	QueueHeaderMethod = "X-Queue-Method"
	// QueueHeaderHost carries the logical target host over the fabric.
	QueueHeaderHost = "X-Queue-Host"
	// QueueHeaderServer is set by the receiver to identify the serving replica.
	QueueHeaderServer = "X-Queue-Server"
)

// Request is a decoded message delivered through a queue.
type Request struct {
	Queue   string              `json:"queue"`
	Header  map[string][]string `json:"header"`
	Payload []byte              `json:"payload"`
}

// Response is routed back to the requester through the fabric.
type Response struct {
	Header  map[string][]string `json:"header"`
	Payload []byte              `json:"payload"`
	Status  int                 `json:"status"`
	Error   string              `json:"error"`
}

// MsgReceiver is the service-object capability: anything able to turn a
// delivered request into a reply. The dispatch mechanism behind it is opaque.
type MsgReceiver interface {
	Receive(ctx context.Context, req Request) (*Response, error)
}

// MsgRequester is the client-side counterpart of MsgReceiver.
type MsgRequester interface {
	Request(ctx context.Context, req Request) (*Response, error)
}

type NewService func(ctx context.Context, config interface{}, log logr.Logger) Service

type Service interface {
	Run(args []string) error
}
