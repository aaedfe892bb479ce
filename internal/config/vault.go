package config

import (
	"context"
	"encoding/base64"
	"path"

	"emperror.dev/errors"
	vault "github.com/hashicorp/vault/api"

	"github.com/queuefab/queued-listener/internal/model"
)

// VaultConfig describes the host's Vault transit endpoint used to protect
// configuration values.
type VaultConfig struct {
	Address   string
	Token     string
	Namespace string
	// TransitKey is the name of the transit key ring entry.
	TransitKey string
	// MountPath of the transit engine, "transit" unless remounted.
	MountPath string
}

// VaultDecrypter decrypts protected settings through the Vault transit
// engine. It implements Decrypter.
type VaultDecrypter struct {
	client     *vault.Client
	transitKey string
	mountPath  string
}

var _ Decrypter = (*VaultDecrypter)(nil)

func NewVaultDecrypter(cfg VaultConfig) (*VaultDecrypter, error) {
	if cfg.Address == "" {
		return nil, errors.WithMessage(model.ErrInvalidArgument, "vault address is empty")
	}
	if cfg.Token == "" {
		return nil, errors.WithMessage(model.ErrInvalidArgument, "vault token is empty")
	}
	if cfg.TransitKey == "" {
		return nil, errors.WithMessage(model.ErrInvalidArgument, "vault transit key is empty")
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address
	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, errors.WrapIf(err, "creating vault client")
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	mountPath := cfg.MountPath
	if mountPath == "" {
		mountPath = "transit"
	}

	return &VaultDecrypter{
		client:     client,
		transitKey: cfg.TransitKey,
		mountPath:  mountPath,
	}, nil
}

// Decrypt sends the ciphertext (vault:v1:... form) to the transit engine and
// returns the decoded plaintext.
func (d *VaultDecrypter) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if d == nil || d.client == nil {
		return "", errors.WithMessage(model.ErrInvalidArgument, "vault decrypter is not initialized")
	}
	secret, err := d.client.Logical().WriteWithContext(ctx,
		path.Join(d.mountPath, "decrypt", d.transitKey),
		map[string]interface{}{"ciphertext": ciphertext},
	)
	if err != nil {
		return "", errors.WrapIf(err, "vault transit decrypt")
	}
	if secret == nil || secret.Data == nil {
		return "", errors.WithMessage(model.ErrConfiguration, "empty vault transit response")
	}
	encoded, is := secret.Data["plaintext"].(string)
	if !is {
		return "", errors.WithMessage(model.ErrConfiguration, "missing plaintext in vault transit response")
	}
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.WrapIf(err, "decoding vault transit plaintext")
	}

	return string(plaintext), nil
}
