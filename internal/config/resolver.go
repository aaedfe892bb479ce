// Package config resolves listen-capable connection strings from either a
// caller-supplied literal or the host's configuration store, decrypting
// protected values on the way.
package config

import (
	"context"
	"strings"

	"emperror.dev/errors"
	"github.com/spf13/viper"

	"github.com/queuefab/queued-listener/internal/model"
)

// Default lookup coordinates in the host configuration store.
const (
	DefaultPackage   = "Config"
	DefaultSection   = "ServiceBus"
	DefaultParameter = "ListenConnectionString"
)

var (
	ErrEmptyConnectionString = errors.WithMessage(model.ErrInvalidArgument, "connection string is empty")
	ErrNilActivationContext  = errors.WithMessage(model.ErrInvalidArgument, "activation context is nil")
	ErrNilDecrypter          = errors.WithMessage(model.ErrInvalidArgument, "decrypter is nil for encrypted parameter")
	ErrParameterNotFound     = errors.WithMessage(model.ErrConfiguration, "configuration parameter not found")
)

// Setting is one named configuration value as reported by the store.
type Setting struct {
	Value     string
	Encrypted bool
}

// Accessor reads a named parameter from a section of a configuration package.
type Accessor interface {
	Setting(ctx context.Context, pkg string, section string, parameter string) (Setting, error)
}

// Decrypter is the host's protection mechanism for encrypted settings.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// Credential produces a plaintext connection string. Resolution happens on
// every call; nothing is cached.
type Credential interface {
	ConnectionString(ctx context.Context) (string, error)
}

// Literal is a caller-supplied connection string. Emptiness is checked
// eagerly by the listener factory, before any activation.
type Literal string

func (l Literal) ConnectionString(_ context.Context) (string, error) {
	if l == "" {
		return "", ErrEmptyConnectionString
	}

	return string(l), nil
}

// Resolved looks the connection string up in the host configuration store.
// Zero-valued coordinates fall back to the recognized defaults.
type Resolved struct {
	Accessor  Accessor
	Package   string
	Section   string
	Parameter string
	Decrypter Decrypter
}

func (r Resolved) ConnectionString(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilActivationContext
	}
	if r.Accessor == nil {
		return "", errors.WithMessage(model.ErrInvalidArgument, "accessor is nil")
	}
	pkg, section, parameter := r.Package, r.Section, r.Parameter
	if pkg == "" {
		pkg = DefaultPackage
	}
	if section == "" {
		section = DefaultSection
	}
	if parameter == "" {
		parameter = DefaultParameter
	}

	setting, err := r.Accessor.Setting(ctx, pkg, section, parameter)
	if err != nil {
		return "", err
	}
	if !setting.Encrypted {
		return setting.Value, nil
	}
	if r.Decrypter == nil {
		return "", ErrNilDecrypter
	}
	plaintext, err := r.Decrypter.Decrypt(ctx, setting.Value)
	if err != nil {
		return "", errors.WrapIf(err, "decrypting configuration parameter")
	}

	return plaintext, nil
}

// ViperAccessor adapts a viper instance to the Accessor contract. A
// parameter is stored either as a scalar or as a {value, encrypted} mapping:
//
//	config:
//	  servicebus:
//	    listenconnectionstring:
//	      value: "vault:v1:..."
//	      encrypted: true
type ViperAccessor struct {
	Viper *viper.Viper
}

func (a ViperAccessor) Setting(_ context.Context, pkg string, section string, parameter string) (Setting, error) {
	key := strings.ToLower(strings.Join([]string{pkg, section, parameter}, "."))
	if a.Viper.IsSet(key + ".value") {
		return Setting{
			Value:     a.Viper.GetString(key + ".value"),
			Encrypted: a.Viper.GetBool(key + ".encrypted"),
		}, nil
	}
	if !a.Viper.IsSet(key) {
		return Setting{}, errors.WithDetails(ErrParameterNotFound, "key", key)
	}

	return Setting{Value: a.Viper.GetString(key)}, nil
}
