package trakt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"traktical/models"
)

const stateTTL = 10 * time.Minute

// ErrInvalidState is returned when the callback state is missing, forged or expired.
var ErrInvalidState = errors.New("invalid oauth state")

// OAuthConfig describes the Trakt application used for the auth-code flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	// StateKey signs the state parameter round-tripped through Trakt.
	StateKey []byte
}

// OAuth runs the authorization-code flow against Trakt.
type OAuth struct {
	config   *oauth2.Config
	stateKey []byte
	now      func() time.Time
}

// NewOAuth builds the flow from cfg.
func NewOAuth(cfg OAuthConfig) *OAuth {
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		stateKey: cfg.StateKey,
		now:      time.Now,
	}
}

// AuthCodeURL returns the Trakt consent URL carrying a freshly signed state.
func (o *OAuth) AuthCodeURL() (string, error) {
	state, err := o.NewState()
	if err != nil {
		return "", err
	}
	return o.config.AuthCodeURL(state), nil
}

// NewState signs a short-lived state token.
func (o *OAuth) NewState() (string, error) {
	now := o.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(o.stateKey)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// VerifyState checks a state returned by Trakt on the callback.
func (o *OAuth) VerifyState(state string) error {
	if state == "" {
		return ErrInvalidState
	}
	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		return o.stateKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(o.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return nil
}

// Exchange trades an authorization code for a token pair.
func (o *OAuth) Exchange(ctx context.Context, code string) (models.StoredToken, error) {
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return models.StoredToken{}, fmt.Errorf("exchange code: %w", err)
	}
	return storedTokenFrom(tok, o.now()), nil
}

// storedTokenFrom prefers Trakt's own created_at/expires_in fields and falls
// back to the parsed expiry.
func storedTokenFrom(tok *oauth2.Token, now time.Time) models.StoredToken {
	out := models.StoredToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		CreatedAt:    now.Unix(),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	if created, ok := numericExtra(tok, "created_at"); ok {
		out.CreatedAt = created
	}
	if expiresIn, ok := numericExtra(tok, "expires_in"); ok {
		out.ExpiresIn = expiresIn
	} else if !tok.Expiry.IsZero() {
		out.ExpiresIn = int64(tok.Expiry.Sub(time.Unix(out.CreatedAt, 0)).Seconds())
	}
	return out
}

func numericExtra(tok *oauth2.Token, key string) (int64, bool) {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// StoredTokenFromResponse converts a refresh response into the stored form.
func StoredTokenFromResponse(resp *TokenResponse) models.StoredToken {
	return models.StoredToken{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		Scope:        resp.Scope,
		CreatedAt:    resp.CreatedAt,
		ExpiresIn:    resp.ExpiresIn,
	}
}
