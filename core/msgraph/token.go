package msgraph

import "time"

// Token is the OAuth2 token record for the connected Microsoft 365 account.
// Treated as a single mutable record; refresh swaps it atomically.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the token can authenticate a Graph call at `now`.
// A token exactly at its expiry instant is expired.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

func (t Token) HasRefreshToken() bool { return t.RefreshToken != "" }

// TokenStore persists the token record between runs.
// Load returns a zero Token (not an error) when nothing is stored; a stored
// record with a malformed expiry loads with a zero ExpiresAt (i.e. expired).
type TokenStore interface {
	Load() (Token, error)
	Save(Token) error
	Clear() error
}
