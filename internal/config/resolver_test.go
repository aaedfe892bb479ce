package config

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"

	"github.com/queuefab/queued-listener/internal/model"
)

type ResolverTestSuite struct {
	suite.Suite
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func (s *ResolverTestSuite) TestLiteral() {
	cs, err := Literal("Endpoint=sb://foo.bar.net/").ConnectionString(context.Background())
	s.NoError(err)
	s.Equal("Endpoint=sb://foo.bar.net/", cs)
}

func (s *ResolverTestSuite) TestLiteralEmpty() {
	_, err := Literal("").ConnectionString(context.Background())
	s.ErrorIs(err, ErrEmptyConnectionString)
	s.ErrorIs(err, model.ErrInvalidArgument)
}

type recordingDecrypter struct {
	gotCiphertext string
	plaintext     string
}

func (d *recordingDecrypter) Decrypt(_ context.Context, ciphertext string) (string, error) {
	d.gotCiphertext = ciphertext

	return d.plaintext, nil
}

func (s *ResolverTestSuite) newViper() *viper.Viper {
	v := viper.New()
	v.Set("config.servicebus.listenconnectionstring", "Endpoint=sb://plain.bar.net/")
	v.Set("config.servicebus.protectedconnectionstring.value", "vault:v1:abc")
	v.Set("config.servicebus.protectedconnectionstring.encrypted", true)

	return v
}

func (s *ResolverTestSuite) TestResolvedDefaults() {
	resolved := Resolved{Accessor: ViperAccessor{Viper: s.newViper()}}
	cs, err := resolved.ConnectionString(context.Background())
	s.NoError(err)
	s.Equal("Endpoint=sb://plain.bar.net/", cs)
}

func (s *ResolverTestSuite) TestResolvedEncrypted() {
	decrypter := &recordingDecrypter{plaintext: "Endpoint=sb://secret.bar.net/"}
	resolved := Resolved{
		Accessor:  ViperAccessor{Viper: s.newViper()},
		Parameter: "ProtectedConnectionString",
		Decrypter: decrypter,
	}
	cs, err := resolved.ConnectionString(context.Background())
	s.NoError(err)
	s.Equal("Endpoint=sb://secret.bar.net/", cs)
	s.Equal("vault:v1:abc", decrypter.gotCiphertext)
}

func (s *ResolverTestSuite) TestResolvedEncryptedWithoutDecrypter() {
	resolved := Resolved{
		Accessor:  ViperAccessor{Viper: s.newViper()},
		Parameter: "ProtectedConnectionString",
	}
	_, err := resolved.ConnectionString(context.Background())
	s.ErrorIs(err, ErrNilDecrypter)
}

func (s *ResolverTestSuite) TestResolvedNilContext() {
	resolved := Resolved{Accessor: ViperAccessor{Viper: s.newViper()}}
	_, err := resolved.ConnectionString(nil) //nolint:staticcheck // nil context is the case under test
	s.ErrorIs(err, ErrNilActivationContext)
	s.ErrorIs(err, model.ErrInvalidArgument)
}

func (s *ResolverTestSuite) TestResolvedNilAccessor() {
	_, err := Resolved{}.ConnectionString(context.Background())
	s.ErrorIs(err, model.ErrInvalidArgument)
}

func (s *ResolverTestSuite) TestResolvedMissingParameter() {
	resolved := Resolved{
		Accessor:  ViperAccessor{Viper: s.newViper()},
		Parameter: "NoSuchParameter",
	}
	_, err := resolved.ConnectionString(context.Background())
	s.ErrorIs(err, ErrParameterNotFound)
	s.ErrorIs(err, model.ErrConfiguration)
}
