package credential

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/store"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceLength = 24

// Source says where a resolved key came from.
type Source string

// Sources, in resolution order.
const (
	SourceRequest     Source = "request"
	SourceStored      Source = "stored"
	SourceEnvironment Source = "environment"
	SourceNone        Source = ""
)

// Status describes the configured key without revealing it.
type Status struct {
	Configured  bool   `json:"configured"`
	Source      Source `json:"source,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

var errUndecryptable = errors.New("stored credential cannot be decrypted with the current vault key")

// Vault stores one API key in a BlobStore, sealed with secretbox.
type Vault struct {
	blobs    store.BlobStore
	key      *[keyLength]byte
	fallback string
	logger   *slog.Logger
}

// NewVault creates a vault. fallback is the configured ANTHROPIC_API_KEY, used
// when nothing has been saved.
func NewVault(blobs store.BlobStore, key *[keyLength]byte, fallback string, logger *slog.Logger) *Vault {
	return &Vault{
		blobs:    blobs,
		key:      key,
		fallback: strings.TrimSpace(fallback),
		logger:   logger,
	}
}

// Save encrypts and stores apiKey.
func (v *Vault) Save(ctx context.Context, apiKey string) (Status, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return Status{}, domainerrors.Validation("APIキーを入力してください")
	}

	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Status{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create nonce")
	}
	sealed := secretbox.Seal(nonce[:], []byte(apiKey), &nonce, v.key)

	if err := v.blobs.Set(ctx, store.KeyCredential, base64.StdEncoding.EncodeToString(sealed)); err != nil {
		return Status{}, domainerrors.PersistenceUnavailable(fmt.Errorf("save credential: %w", err))
	}

	fp := Fingerprint(apiKey)
	v.logger.Info("credential saved", "fingerprint", fp)
	return Status{Configured: true, Source: SourceStored, Fingerprint: fp}, nil
}

// Clear removes the stored key. The environment fallback, if any, stays in effect.
func (v *Vault) Clear(ctx context.Context) (Status, error) {
	if err := v.blobs.Delete(ctx, store.KeyCredential); err != nil {
		return Status{}, domainerrors.PersistenceUnavailable(fmt.Errorf("clear credential: %w", err))
	}
	v.logger.Info("credential cleared")
	return v.Status(ctx)
}

// Status reports which key would be used without an override.
func (v *Vault) Status(ctx context.Context) (Status, error) {
	key, src, err := v.Resolve(ctx, "")
	if err != nil {
		return Status{}, err
	}
	if src == SourceNone {
		return Status{}, nil
	}
	return Status{Configured: true, Source: src, Fingerprint: Fingerprint(key)}, nil
}

// Resolve picks the key for one call: override, then the stored key, then
// the environment fallback. An empty key with SourceNone means none is set.
func (v *Vault) Resolve(ctx context.Context, override string) (string, Source, error) {
	if k := strings.TrimSpace(override); k != "" {
		return k, SourceRequest, nil
	}

	stored, err := v.stored(ctx)
	switch {
	case errors.Is(err, errUndecryptable):
		v.logger.Warn("ignoring stored credential", "error", err)
	case err != nil:
		return "", SourceNone, err
	case stored != "":
		return stored, SourceStored, nil
	}

	if v.fallback != "" {
		return v.fallback, SourceEnvironment, nil
	}
	return "", SourceNone, nil
}

func (v *Vault) stored(ctx context.Context) (string, error) {
	raw, ok, err := v.blobs.Get(ctx, store.KeyCredential)
	if err != nil {
		return "", domainerrors.PersistenceUnavailable(fmt.Errorf("read credential: %w", err))
	}
	if !ok || raw == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(sealed) < nonceLength+secretbox.Overhead {
		return "", errUndecryptable
	}

	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	plain, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, v.key)
	if !ok {
		return "", errUndecryptable
	}
	return string(plain), nil
}

// Fingerprint identifies a key in logs and API responses. It is the first
// 12 hex characters of the key's BLAKE2b-256 digest.
func Fingerprint(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:12]
}
