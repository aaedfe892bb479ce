package connstr

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/queuefab/queued-listener/internal/model"
)

type ConnStrTestSuite struct {
	suite.Suite
}

func TestConnStrTestSuite(t *testing.T) {
	suite.Run(t, new(ConnStrTestSuite))
}

func (s *ConnStrTestSuite) TestParse() {
	desc, err := Parse("Endpoint=sb://foo.bar.net/;SharedAccessKeyName=K;SharedAccessKey=S")
	s.NoError(err)
	s.Len(desc.Endpoints, 1)
	s.Equal("foo.bar.net", desc.Endpoints[0].Hostname())
	s.Equal("K", desc.KeyName)
	s.Equal("S", desc.Key)
}

func (s *ConnStrTestSuite) TestParseCaseAndWhitespace() {
	desc, err := Parse(" endpoint = sb://foo.bar.net/ ; SHAREDACCESSKEYNAME=K ;sharedaccesskey=S;;")
	s.NoError(err)
	s.Len(desc.Endpoints, 1)
	s.Equal("K", desc.KeyName)
	s.Equal("S", desc.Key)
}

func (s *ConnStrTestSuite) TestParseUnknownKeysIgnored() {
	desc, err := Parse("Endpoint=sb://foo.bar.net/;TransportType=Amqp;SharedAccessKeyName=K;SharedAccessKey=S")
	s.NoError(err)
	s.Len(desc.Endpoints, 1)
}

func (s *ConnStrTestSuite) TestParseMalformedPair() {
	_, err := Parse("Endpoint=sb://foo.bar.net/;bogus")
	s.ErrorIs(err, model.ErrConfiguration)
	s.ErrorIs(err, ErrMalformedPair)
}

func (s *ConnStrTestSuite) TestParseBadEndpointURI() {
	_, err := Parse("Endpoint=://;SharedAccessKeyName=K")
	s.ErrorIs(err, ErrBadEndpointURI)
}

func (s *ConnStrTestSuite) TestSingleEndpointZero() {
	desc, err := Parse("SharedAccessKeyName=K;SharedAccessKey=S")
	s.NoError(err)
	_, err = desc.SingleEndpoint()
	s.ErrorIs(err, ErrNoEndpoint)
	s.ErrorIs(err, model.ErrConfiguration)
	s.Contains(err.Error(), "no endpoint detected")
}

func (s *ConnStrTestSuite) TestSingleEndpointRepeatedKey() {
	desc, err := Parse("Endpoint=sb://a.net/;Endpoint=sb://b.net/;SharedAccessKeyName=K")
	s.NoError(err)
	_, err = desc.SingleEndpoint()
	s.ErrorIs(err, ErrAmbiguousEndpoint)
	s.ErrorIs(err, model.ErrConfiguration)
	s.Contains(err.Error(), "ambiguous endpoint")
}

func (s *ConnStrTestSuite) TestSingleEndpointCommaList() {
	desc, err := Parse("Endpoint=sb://a.net/,sb://b.net/;SharedAccessKeyName=K")
	s.NoError(err)
	s.Len(desc.Endpoints, 2)
	_, err = desc.SingleEndpoint()
	s.ErrorIs(err, ErrAmbiguousEndpoint)
	var details interface{ Details() []interface{} }
	if s.ErrorAs(err, &details) {
		s.Contains(details.Details(), 2)
	}
}

func (s *ConnStrTestSuite) TestDeriveAddress() {
	desc, err := Parse("Endpoint=sb://foo.bar.net/;SharedAccessKeyName=K;SharedAccessKey=S")
	s.NoError(err)
	addr, err := DeriveAddress(desc, "Orders")
	s.NoError(err)
	s.Equal("foo", addr.Namespace)
	s.Equal("bar.net", addr.Domain)
	s.Equal("foo.bar.net", addr.Host())
	s.Equal("sb://foo.bar.net/Orders", addr.String())
}

func (s *ConnStrTestSuite) TestDeriveAddressSingleLabelHost() {
	desc, err := Parse("Endpoint=sb://localhost/;SharedAccessKeyName=K")
	s.NoError(err)
	addr, err := DeriveAddress(desc, "q")
	s.NoError(err)
	s.Equal("localhost", addr.Namespace)
	s.Equal("", addr.Domain)
	s.Equal("sb://localhost/q", addr.String())
}

func (s *ConnStrTestSuite) TestDeriveAddressEmptyQueue() {
	desc, err := Parse("Endpoint=sb://foo.bar.net/")
	s.NoError(err)
	_, err = DeriveAddress(desc, "")
	s.ErrorIs(err, ErrEmptyQueueName)
	s.ErrorIs(err, model.ErrConfiguration)
}

func (s *ConnStrTestSuite) TestDeriveAddressCaseSensitiveQueue() {
	desc, err := Parse("Endpoint=sb://foo.bar.net/")
	s.NoError(err)
	addr, err := DeriveAddress(desc, "INotificationEvents")
	s.NoError(err)
	s.Equal("INotificationEvents", addr.Queue)
}
