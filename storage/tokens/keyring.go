// Package tokenstore persists the Microsoft 365 token record in the system
// keyring, so tokens survive restarts without leaking into the process
// environment.
package tokenstore

import (
	"os"
	"time"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"

	"github.com/planbord/backend/core/msgraph"
)

const (
	serviceName = "planbord"

	accessTokenKey  = "microsoft-access-token"
	refreshTokenKey = "microsoft-refresh-token"
	expiresAtKey    = "microsoft-token-expires-at"
)

type keyringStore struct {
	ring keyring.Keyring
}

var _ msgraph.TokenStore = (*keyringStore)(nil)

func NewKeyringStore() (msgraph.TokenStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/planbord/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("planbord-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening keyring")
	}
	return &keyringStore{ring: ring}, nil
}

func (s *keyringStore) Load() (msgraph.Token, error) {
	var tok msgraph.Token
	var err error

	if tok.AccessToken, err = s.get(accessTokenKey); err != nil {
		return msgraph.Token{}, err
	}
	if tok.RefreshToken, err = s.get(refreshTokenKey); err != nil {
		return msgraph.Token{}, err
	}

	expiresAt, err := s.get(expiresAtKey)
	if err != nil {
		return msgraph.Token{}, err
	}
	if expiresAt != "" {
		// a malformed expiry loads as zero time: the token reads as expired
		if ts, err := time.Parse(time.RFC3339, expiresAt); err == nil {
			tok.ExpiresAt = ts
		}
	}
	return tok, nil
}

func (s *keyringStore) Save(tok msgraph.Token) error {
	expiresAt := ""
	if !tok.ExpiresAt.IsZero() {
		expiresAt = tok.ExpiresAt.UTC().Format(time.RFC3339)
	}

	for key, val := range map[string]string{
		accessTokenKey:  tok.AccessToken,
		refreshTokenKey: tok.RefreshToken,
		expiresAtKey:    expiresAt,
	} {
		if err := s.ring.Set(keyring.Item{Key: key, Data: []byte(val)}); err != nil {
			return errors.Wrapf(err, "setting credential %q", key)
		}
	}
	return nil
}

func (s *keyringStore) Clear() error {
	for _, key := range []string{accessTokenKey, refreshTokenKey, expiresAtKey} {
		err := s.ring.Remove(key)
		// the file backend reports a missing key as a missing file
		if err != nil && err != keyring.ErrKeyNotFound && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "deleting credential %q", key)
		}
	}
	return nil
}

func (s *keyringStore) get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if err == keyring.ErrKeyNotFound || errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", errors.Wrapf(err, "getting credential %q", key)
	}
	return string(item.Data), nil
}
