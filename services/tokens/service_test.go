package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"traktical/internal/database"
	"traktical/internal/encryption"
	"traktical/models"
	"traktical/services/tokens/mocks"
	"traktical/services/trakt"
)

type fixture struct {
	svc    *Service
	store  *mocks.MockUserStore
	trakt  *mocks.MockTraktAPI
	sealer *encryption.Sealer
}

func newFixture(t *testing.T, now int64) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	sealer, err := encryption.NewSealer("test-secret")
	require.NoError(t, err)

	f := &fixture{
		store:  mocks.NewMockUserStore(ctrl),
		trakt:  mocks.NewMockTraktAPI(ctrl),
		sealer: sealer,
	}
	f.svc = NewService(f.store, f.trakt, sealer)
	f.svc.now = func() time.Time { return time.Unix(now, 0) }
	return f
}

func (f *fixture) record(t *testing.T, slug string, tok models.StoredToken) *models.UserRecord {
	t.Helper()
	sealed, err := f.sealer.SealToken(tok)
	require.NoError(t, err)
	return &models.UserRecord{UserID: "key-" + slug, UserSlug: slug, Token: sealed}
}

func settingsFor(slug string) *trakt.UserSettings {
	s := &trakt.UserSettings{}
	s.User.IDs.Slug = slug
	return s
}

var oldToken = models.StoredToken{
	AccessToken:  "old-access",
	RefreshToken: "old-refresh",
	CreatedAt:    1000,
	ExpiresIn:    3600,
}

func TestFresh_UnexpiredTokenMakesNoUpstreamCall(t *testing.T) {
	f := newFixture(t, 4599)
	user := f.record(t, "sean", oldToken)
	f.store.EXPECT().FindByUserID(gomock.Any(), "key-sean").Return(user, nil)

	tok, err := f.svc.Fresh(context.Background(), "key-sean")
	require.NoError(t, err)
	assert.Equal(t, "old-access", tok.AccessToken)
}

func TestFreshFor_ExpiredTokenIsRefreshed(t *testing.T) {
	f := newFixture(t, 4600)
	user := f.record(t, "sean", oldToken)

	var stored []byte
	gomock.InOrder(
		f.trakt.EXPECT().RefreshAccessToken(gomock.Any(), "old-refresh").Return(&trakt.TokenResponse{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			CreatedAt:    4600,
			ExpiresIn:    7776000,
		}, nil),
		f.trakt.EXPECT().GetUserSettings(gomock.Any(), "new-access").Return(settingsFor("sean"), nil),
		f.store.EXPECT().UpdateTokenBySlug(gomock.Any(), "sean", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, token []byte) error {
				stored = token
				return nil
			}),
	)

	tok, err := f.svc.FreshFor(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "new-refresh", tok.RefreshToken)

	persisted, err := f.sealer.OpenToken(stored)
	require.NoError(t, err)
	assert.Equal(t, tok, persisted)
}

func TestFreshFor_UpdatesByUpstreamSlug(t *testing.T) {
	f := newFixture(t, 9000)
	user := f.record(t, "old-slug", oldToken)

	f.trakt.EXPECT().RefreshAccessToken(gomock.Any(), "old-refresh").
		Return(&trakt.TokenResponse{AccessToken: "a", RefreshToken: "r", CreatedAt: 9000, ExpiresIn: 60}, nil)
	f.trakt.EXPECT().GetUserSettings(gomock.Any(), "a").Return(settingsFor("new-slug"), nil)
	f.store.EXPECT().UpdateTokenBySlug(gomock.Any(), "new-slug", gomock.Any()).Return(nil)

	_, err := f.svc.FreshFor(context.Background(), user)
	require.NoError(t, err)
}

func TestFreshFor_RefreshFailure(t *testing.T) {
	f := newFixture(t, 5000)
	user := f.record(t, "sean", oldToken)

	f.trakt.EXPECT().RefreshAccessToken(gomock.Any(), "old-refresh").
		Return(nil, errors.New("invalid_grant"))

	_, err := f.svc.FreshFor(context.Background(), user)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestFreshFor_SettingsFailureDoesNotPersist(t *testing.T) {
	f := newFixture(t, 5000)
	user := f.record(t, "sean", oldToken)

	f.trakt.EXPECT().RefreshAccessToken(gomock.Any(), "old-refresh").
		Return(&trakt.TokenResponse{AccessToken: "a", RefreshToken: "r", CreatedAt: 5000, ExpiresIn: 60}, nil)
	f.trakt.EXPECT().GetUserSettings(gomock.Any(), "a").Return(nil, errors.New("boom"))

	_, err := f.svc.FreshFor(context.Background(), user)
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestFresh_UnknownUser(t *testing.T) {
	f := newFixture(t, 1000)
	f.store.EXPECT().FindByUserID(gomock.Any(), "missing").Return(nil, database.ErrUserNotFound)

	_, err := f.svc.Fresh(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrUserNotFound)
}

func TestFreshFor_UnreadableToken(t *testing.T) {
	f := newFixture(t, 1000)
	user := &models.UserRecord{UserID: "k", UserSlug: "sean", Token: []byte("garbage")}

	_, err := f.svc.FreshFor(context.Background(), user)
	assert.ErrorIs(t, err, encryption.ErrOpen)
}
