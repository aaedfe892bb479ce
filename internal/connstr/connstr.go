// Package connstr parses messaging-fabric connection strings and derives
// canonical queue addresses from them.
package connstr

import (
	"net/url"
	"strings"

	"emperror.dev/errors"

	"github.com/queuefab/queued-listener/internal/model"
)

// Connection-string keys, matched case-insensitively.
const (
	keyEndpoint      = "endpoint"
	keySharedKeyName = "sharedaccesskeyname"
	keySharedKey     = "sharedaccesskey"
)

var (
	ErrNoEndpoint        = errors.WithMessage(model.ErrConfiguration, "no endpoint detected")
	ErrAmbiguousEndpoint = errors.WithMessage(model.ErrConfiguration, "ambiguous endpoint: more than one detected")
	ErrMalformedPair     = errors.WithMessage(model.ErrConfiguration, "malformed connection string entry")
	ErrBadEndpointURI    = errors.WithMessage(model.ErrConfiguration, "malformed endpoint URI")
)

// Descriptor is the parsed form of a listen-capable connection string.
// It is parsed fresh on every listener activation and never cached.
type Descriptor struct {
	Endpoints []url.URL
	KeyName   string
	Key       string
}

// Parse decodes the semicolon-separated Key=Value grammar of the fabric's
// connection strings. The Endpoint key may repeat and each occurrence may
// hold a comma-separated list of URIs; every URI contributes one candidate
// endpoint host. Unknown keys are ignored.
func Parse(raw string) (*Descriptor, error) {
	desc := &Descriptor{}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, errors.WithDetails(ErrMalformedPair, "entry", pair)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case keyEndpoint:
			for _, ep := range strings.Split(value, ",") {
				ep = strings.TrimSpace(ep)
				if ep == "" {
					continue
				}
				epURL, err := url.Parse(ep)
				if err != nil || epURL.Host == "" {
					return nil, errors.WithDetails(ErrBadEndpointURI, "endpoint", ep)
				}
				desc.Endpoints = append(desc.Endpoints, *epURL)
			}
		case keySharedKeyName:
			desc.KeyName = value
		case keySharedKey:
			desc.Key = value
		}
	}

	return desc, nil
}

// SingleEndpoint returns the descriptor's endpoint URI. A listen-capable
// descriptor must name exactly one endpoint host; the zero and multi match
// cases are distinct configuration errors.
func (d *Descriptor) SingleEndpoint() (url.URL, error) {
	switch len(d.Endpoints) {
	case 0:
		return url.URL{}, ErrNoEndpoint
	case 1:
		return d.Endpoints[0], nil
	default:
		return url.URL{}, errors.WithDetails(ErrAmbiguousEndpoint, "count", len(d.Endpoints))
	}
}
