package connstr

import (
	"net/url"
	"strings"

	"emperror.dev/errors"

	"github.com/queuefab/queued-listener/internal/model"
)

// Scheme is the fixed scheme of canonical queue addresses.
const Scheme = "sb"

var ErrEmptyQueueName = errors.WithMessage(model.ErrConfiguration, "empty queue name")

// Address is the fully-qualified destination queue identity, immutable once
// derived. Namespace is the leftmost label of the endpoint host, Domain the
// remainder.
type Address struct {
	Namespace string
	Domain    string
	Queue     string
}

// DeriveAddress computes the canonical queue address from the descriptor's
// single endpoint host and the selected queue name. Pure function, no I/O.
func DeriveAddress(desc *Descriptor, queueName string) (Address, error) {
	endpoint, err := desc.SingleEndpoint()
	if err != nil {
		return Address{}, err
	}
	if queueName == "" {
		return Address{}, ErrEmptyQueueName
	}
	namespace, domain, _ := strings.Cut(endpoint.Hostname(), ".")

	return Address{
		Namespace: namespace,
		Domain:    domain,
		Queue:     queueName,
	}, nil
}

// Host is the namespace-qualified endpoint host.
func (a Address) Host() string {
	if a.Domain == "" {
		return a.Namespace
	}

	return a.Namespace + "." + a.Domain
}

// URL renders the address in the fabric's namespace-scoped queue URI form,
// sb://<namespace>.<domain>/<queueName>.
func (a Address) URL() *url.URL {
	return &url.URL{
		Scheme: Scheme,
		Host:   a.Host(),
		Path:   "/" + a.Queue,
	}
}

func (a Address) String() string {
	return a.URL().String()
}
