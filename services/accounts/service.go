package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"traktical/internal/database"
	"traktical/models"
	"traktical/services/trakt"
)

const userIDBytes = 20

var (
	ErrCodeRequired = errors.New("authorization code is required")
	ErrUserNotFound = database.ErrUserNotFound
)

// Store is the persistence the accounts service needs.
type Store interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserRecord, error)
	FindBySlug(ctx context.Context, slug string) (*models.UserRecord, error)
	Insert(ctx context.Context, user *models.UserRecord) error
	UpdateTokenBySlug(ctx context.Context, slug string, token []byte) error
}

// CodeExchanger trades an OAuth authorization code for tokens.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (models.StoredToken, error)
}

// SettingsFetcher resolves the Trakt account behind an access token.
type SettingsFetcher interface {
	GetUserSettings(ctx context.Context, accessToken string) (*trakt.UserSettings, error)
}

// Sealer encrypts tokens at rest.
type Sealer interface {
	SealToken(tok models.StoredToken) ([]byte, error)
}

// Profile is the public identity behind a capability key.
type Profile struct {
	Username string `json:"username"`
	Slug     string `json:"slug"`
}

// Service links Trakt accounts to capability keys.
type Service struct {
	store    Store
	oauth    CodeExchanger
	settings SettingsFetcher
	sealer   Sealer
	log      *slog.Logger
}

// NewService creates an accounts service.
func NewService(store Store, oauth CodeExchanger, settings SettingsFetcher, sealer Sealer) *Service {
	return &Service{
		store:    store,
		oauth:    oauth,
		settings: settings,
		sealer:   sealer,
		log:      slog.Default().With("component", "accounts"),
	}
}

// Link completes an OAuth callback. The first login of a Trakt account mints
// a new capability key; later logins keep the existing key and only replace
// the stored token.
func (s *Service) Link(ctx context.Context, code string) (*models.UserRecord, error) {
	if code == "" {
		return nil, ErrCodeRequired
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetUserSettings(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	slug := settings.User.IDs.Slug

	sealed, err := s.sealer.SealToken(tok)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindBySlug(ctx, slug)
	switch {
	case err == nil:
		return s.relink(ctx, existing, sealed)
	case !errors.Is(err, database.ErrUserNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	userID, err := NewUserID()
	if err != nil {
		return nil, err
	}
	user := &models.UserRecord{UserID: userID, UserSlug: slug, Token: sealed}
	if err := s.store.Insert(ctx, user); err != nil {
		if !errors.Is(err, database.ErrUserExists) {
			return nil, fmt.Errorf("create account: %w", err)
		}
		// A concurrent callback for the same account inserted first.
		existing, findErr := s.store.FindBySlug(ctx, slug)
		if findErr != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
		return s.relink(ctx, existing, sealed)
	}
	s.log.Info("account linked", "user_slug", slug)
	return user, nil
}

// relink keeps the existing capability key and stores the new token.
func (s *Service) relink(ctx context.Context, existing *models.UserRecord, sealed []byte) (*models.UserRecord, error) {
	if err := s.store.UpdateTokenBySlug(ctx, existing.UserSlug, sealed); err != nil {
		return nil, fmt.Errorf("update token: %w", err)
	}
	existing.Token = sealed
	s.log.Info("account relinked", "user_slug", existing.UserSlug)
	return existing, nil
}

// Profile returns the Trakt username and slug for a capability key. accessToken
// must be a fresh token for that user.
func (s *Service) Profile(ctx context.Context, user *models.UserRecord, accessToken string) (Profile, error) {
	settings, err := s.settings.GetUserSettings(ctx, accessToken)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Username: settings.User.Username, Slug: user.UserSlug}, nil
}

// NewUserID returns a fresh 40 hex char capability key.
func NewUserID() (string, error) {
	b := make([]byte, userIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate user id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
