package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/queuefab/queued-listener/internal/model"
)

type TokenTestSuite struct {
	suite.Suite
}

func TestTokenTestSuite(t *testing.T) {
	suite.Run(t, new(TokenTestSuite))
}

func (s *TokenTestSuite) TestTokenFields() {
	provider := NewTokenProvider("K", "S")
	token, err := provider.Token("sb://foo.bar.net/Orders", time.Minute)
	s.NoError(err)
	s.True(strings.HasPrefix(token, "SharedAccessSignature "))

	values, err := url.ParseQuery(strings.TrimPrefix(token, "SharedAccessSignature "))
	s.NoError(err)
	s.Equal("sb://foo.bar.net/Orders", values.Get("sr"))
	s.Equal("K", values.Get("skn"))
	s.NotEmpty(values.Get("sig"))

	expiry, err := strconv.ParseInt(values.Get("se"), 10, 64)
	s.NoError(err)
	s.Greater(expiry, time.Now().Unix())
}

func (s *TokenTestSuite) TestSignatureVerifiable() {
	provider := NewTokenProvider("K", "S")
	token := provider.tokenAt("sb://foo.bar.net/Orders", 1700000000)

	values, err := url.ParseQuery(strings.TrimPrefix(token, "SharedAccessSignature "))
	s.NoError(err)

	mac := hmac.New(sha256.New, []byte("S"))
	mac.Write([]byte(url.QueryEscape("sb://foo.bar.net/Orders") + "\n1700000000"))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	s.Equal(expected, values.Get("sig"))
}

func (s *TokenTestSuite) TestDefaultTTL() {
	provider := NewTokenProvider("K", "S")
	token, err := provider.Token("audience", 0)
	s.NoError(err)
	values, err := url.ParseQuery(strings.TrimPrefix(token, "SharedAccessSignature "))
	s.NoError(err)
	expiry, err := strconv.ParseInt(values.Get("se"), 10, 64)
	s.NoError(err)
	s.InDelta(time.Now().Add(DefaultTokenTTL).Unix(), expiry, 5)
}

func (s *TokenTestSuite) TestMissingKey() {
	provider := NewTokenProvider("K", "")
	_, err := provider.Token("audience", time.Minute)
	s.ErrorIs(err, ErrMissingKey)
	s.ErrorIs(err, model.ErrInvalidArgument)
}
