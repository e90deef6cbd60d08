package models

import "time"

// UserRecord links a capability key to a Trakt account and its sealed token.
type UserRecord struct {
	// UserID is the 40 hex char capability key embedded in feed URLs.
	UserID string `json:"userId"`
	// UserSlug is the Trakt account slug, the stable upstream identity.
	UserSlug  string    `json:"userSlug"`
	Token     []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoredToken is the plaintext OAuth token pair. It only ever lives in memory;
// at rest it is sealed into UserRecord.Token.
type StoredToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ExpiresAt returns the instant the access token stops being valid.
func (t StoredToken) ExpiresAt() time.Time {
	return time.Unix(t.CreatedAt+t.ExpiresIn, 0)
}

// IsStale reports whether the access token must be refreshed before use.
func (t StoredToken) IsStale(now time.Time) bool {
	return now.Unix() >= t.CreatedAt+t.ExpiresIn
}
