// Package sas issues shared-access-signature tokens for the messaging
// fabric, derived from a key name/secret pair.
package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"emperror.dev/errors"

	"github.com/queuefab/queued-listener/internal/model"
)

// DefaultTokenTTL is applied when the caller passes a non-positive TTL.
const DefaultTokenTTL = 20 * time.Minute

var ErrMissingKey = errors.WithMessage(model.ErrInvalidArgument, "missing shared access key")

// TokenProvider signs access tokens for one messaging namespace key.
type TokenProvider struct {
	keyName string
	key     string
}

func NewTokenProvider(keyName string, key string) *TokenProvider {
	return &TokenProvider{keyName: keyName, key: key}
}

func (p *TokenProvider) KeyName() string {
	return p.keyName
}

// Key is the raw shared secret, needed by transports using password-style
// authentication instead of token exchange.
func (p *TokenProvider) Key() string {
	return p.key
}

// Token issues a token authorizing access to audience until now+ttl.
// Format: SharedAccessSignature sr=<audience>&sig=<signature>&se=<expiry>&skn=<keyName>
func (p *TokenProvider) Token(audience string, ttl time.Duration) (string, error) {
	if p.keyName == "" || p.key == "" {
		return "", ErrMissingKey
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	expiry := time.Now().Add(ttl).Unix()

	return p.tokenAt(audience, expiry), nil
}

func (p *TokenProvider) tokenAt(audience string, expiry int64) string {
	resource := url.QueryEscape(audience)
	expires := strconv.FormatInt(expiry, 10)
	mac := hmac.New(sha256.New, []byte(p.key))
	mac.Write([]byte(resource + "\n" + expires))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%s&skn=%s",
		resource, url.QueryEscape(signature), expires, p.keyName)
}
