package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"traktical/internal/metrics"
	"traktical/models"
	"traktical/services/trakt"
)

//go:generate mockgen -destination=mocks/mock_tokens.go -package=mocks traktical/services/tokens UserStore,TraktAPI

// UserStore persists user records.
type UserStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserRecord, error)
	FindBySlug(ctx context.Context, slug string) (*models.UserRecord, error)
	Insert(ctx context.Context, user *models.UserRecord) error
	UpdateTokenBySlug(ctx context.Context, slug string, token []byte) error
}

// TraktAPI is the subset of the Trakt client used to refresh tokens.
type TraktAPI interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*trakt.TokenResponse, error)
	GetUserSettings(ctx context.Context, accessToken string) (*trakt.UserSettings, error)
}

// Sealer encrypts tokens at rest.
type Sealer interface {
	SealToken(tok models.StoredToken) ([]byte, error)
	OpenToken(sealed []byte) (models.StoredToken, error)
}

// ErrRefreshFailed wraps any failure while renewing an expired token.
var ErrRefreshFailed = errors.New("token refresh failed")

// Service hands out usable access tokens, refreshing expired ones.
type Service struct {
	store  UserStore
	trakt  TraktAPI
	sealer Sealer
	now    func() time.Time
	log    *slog.Logger
}

// NewService creates a token service.
func NewService(store UserStore, traktAPI TraktAPI, sealer Sealer) *Service {
	return &Service{
		store:  store,
		trakt:  traktAPI,
		sealer: sealer,
		now:    time.Now,
		log:    slog.Default().With("component", "tokens"),
	}
}

// Fresh returns a non-expired token for the capability key userID.
func (s *Service) Fresh(ctx context.Context, userID string) (models.StoredToken, error) {
	user, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return models.StoredToken{}, err
	}
	return s.FreshFor(ctx, user)
}

// FreshFor returns a non-expired token for an already loaded record. A stale
// token is exchanged upstream and the new pair is stored under the account
// slug Trakt reports for it.
func (s *Service) FreshFor(ctx context.Context, user *models.UserRecord) (models.StoredToken, error) {
	tok, err := s.sealer.OpenToken(user.Token)
	if err != nil {
		return models.StoredToken{}, fmt.Errorf("open token for %s: %w", user.UserSlug, err)
	}
	if !tok.IsStale(s.now()) {
		return tok, nil
	}

	refreshed, err := s.refresh(ctx, tok)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		s.log.Warn("token refresh failed", "user_slug", user.UserSlug, "error", err)
		return models.StoredToken{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	return refreshed, nil
}

func (s *Service) refresh(ctx context.Context, old models.StoredToken) (models.StoredToken, error) {
	resp, err := s.trakt.RefreshAccessToken(ctx, old.RefreshToken)
	if err != nil {
		return models.StoredToken{}, err
	}
	tok := trakt.StoredTokenFromResponse(resp)

	settings, err := s.trakt.GetUserSettings(ctx, tok.AccessToken)
	if err != nil {
		return models.StoredToken{}, fmt.Errorf("resolve account: %w", err)
	}
	slug := settings.User.IDs.Slug

	sealed, err := s.sealer.SealToken(tok)
	if err != nil {
		return models.StoredToken{}, err
	}
	if err := s.store.UpdateTokenBySlug(ctx, slug, sealed); err != nil {
		return models.StoredToken{}, fmt.Errorf("store token for %s: %w", slug, err)
	}

	s.log.Info("token refreshed", "user_slug", slug, "expires_at", tok.ExpiresAt().UTC())
	return tok, nil
}
