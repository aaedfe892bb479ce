package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/queuefab/queued-listener/internal/model"
)

type VaultTestSuite struct {
	suite.Suite
}

func TestVaultTestSuite(t *testing.T) {
	suite.Run(t, new(VaultTestSuite))
}

func (s *VaultTestSuite) TestNewVaultDecrypterNoAddress() {
	_, err := NewVaultDecrypter(VaultConfig{Token: "t", TransitKey: "k"})
	s.ErrorIs(err, model.ErrInvalidArgument)
}

func (s *VaultTestSuite) TestNewVaultDecrypterNoToken() {
	_, err := NewVaultDecrypter(VaultConfig{Address: "http://localhost:8200", TransitKey: "k"})
	s.ErrorIs(err, model.ErrInvalidArgument)
}

func (s *VaultTestSuite) TestNewVaultDecrypterNoTransitKey() {
	_, err := NewVaultDecrypter(VaultConfig{Address: "http://localhost:8200", Token: "t"})
	s.ErrorIs(err, model.ErrInvalidArgument)
}

func (s *VaultTestSuite) TestDecryptUninitialized() {
	var decrypter *VaultDecrypter
	_, err := decrypter.Decrypt(context.Background(), "vault:v1:abc")
	s.ErrorIs(err, model.ErrInvalidArgument)
}

func (s *VaultTestSuite) TestNewVaultDecrypter() {
	decrypter, err := NewVaultDecrypter(VaultConfig{
		Address:    "http://localhost:8200",
		Token:      "t",
		TransitKey: "k",
	})
	s.NoError(err)
	s.NotNil(decrypter)
	s.Equal("transit", decrypter.mountPath)
}
