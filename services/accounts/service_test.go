package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"traktical/internal/database"
	"traktical/internal/encryption"
	"traktical/models"
	"traktical/services/tokens/mocks"
	"traktical/services/trakt"
)

type fakeExchanger struct {
	tok  models.StoredToken
	err  error
	code string
}

func (f *fakeExchanger) Exchange(_ context.Context, code string) (models.StoredToken, error) {
	f.code = code
	return f.tok, f.err
}

func settings(username, slug string) *trakt.UserSettings {
	s := &trakt.UserSettings{}
	s.User.Username = username
	s.User.IDs.Slug = slug
	return s
}

func setup(t *testing.T) (*Service, *mocks.MockUserStore, *mocks.MockTraktAPI, *fakeExchanger, *encryption.Sealer) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	api := mocks.NewMockTraktAPI(ctrl)
	sealer, err := encryption.NewSealer("secret")
	require.NoError(t, err)
	ex := &fakeExchanger{tok: models.StoredToken{AccessToken: "acc", RefreshToken: "ref", CreatedAt: 1, ExpiresIn: 2}}
	return NewService(store, ex, api, sealer), store, api, ex, sealer
}

var hex40 = regexp.MustCompile(`^[0-9a-f]{40}$`)

func TestNewUserID(t *testing.T) {
	a, err := NewUserID()
	require.NoError(t, err)
	b, err := NewUserID()
	require.NoError(t, err)

	assert.Regexp(t, hex40, a)
	assert.NotEqual(t, a, b)
}

func TestLink_NewAccount(t *testing.T) {
	svc, store, api, ex, sealer := setup(t)

	api.EXPECT().GetUserSettings(gomock.Any(), "acc").Return(settings("Sean", "sean"), nil)
	store.EXPECT().FindBySlug(gomock.Any(), "sean").Return(nil, database.ErrUserNotFound)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	user, err := svc.Link(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "the-code", ex.code)
	assert.Equal(t, "sean", user.UserSlug)
	assert.Regexp(t, hex40, user.UserID)

	tok, err := sealer.OpenToken(user.Token)
	require.NoError(t, err)
	assert.Equal(t, "acc", tok.AccessToken)
}

func TestLink_ExistingAccountKeepsKey(t *testing.T) {
	svc, store, api, _, _ := setup(t)
	existing := &models.UserRecord{UserID: "existing-key", UserSlug: "sean", Token: []byte("old")}

	api.EXPECT().GetUserSettings(gomock.Any(), "acc").Return(settings("Sean", "sean"), nil)
	store.EXPECT().FindBySlug(gomock.Any(), "sean").Return(existing, nil)
	store.EXPECT().UpdateTokenBySlug(gomock.Any(), "sean", gomock.Any()).Return(nil)

	user, err := svc.Link(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "existing-key", user.UserID)
}

func TestLink_LosesInsertRaceKeepsWinnerKey(t *testing.T) {
	svc, store, api, _, sealer := setup(t)
	winner := &models.UserRecord{UserID: "winner-key", UserSlug: "sean", Token: []byte("winner")}

	api.EXPECT().GetUserSettings(gomock.Any(), "acc").Return(settings("Sean", "sean"), nil)
	var persisted []byte
	gomock.InOrder(
		store.EXPECT().FindBySlug(gomock.Any(), "sean").Return(nil, database.ErrUserNotFound),
		store.EXPECT().Insert(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("insert user sean: %w", database.ErrUserExists)),
		store.EXPECT().FindBySlug(gomock.Any(), "sean").Return(winner, nil),
		store.EXPECT().UpdateTokenBySlug(gomock.Any(), "sean", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, token []byte) error {
				persisted = token
				return nil
			}),
	)

	user, err := svc.Link(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "winner-key", user.UserID)

	tok, err := sealer.OpenToken(persisted)
	require.NoError(t, err)
	assert.Equal(t, "acc", tok.AccessToken)
}

func TestLink_InsertFailureOtherThanDuplicate(t *testing.T) {
	svc, store, api, _, _ := setup(t)

	api.EXPECT().GetUserSettings(gomock.Any(), "acc").Return(settings("Sean", "sean"), nil)
	store.EXPECT().FindBySlug(gomock.Any(), "sean").Return(nil, database.ErrUserNotFound)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := svc.Link(context.Background(), "code")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, database.ErrUserExists)
}

func TestLink_RequiresCode(t *testing.T) {
	svc, _, _, _, _ := setup(t)
	_, err := svc.Link(context.Background(), "")
	assert.ErrorIs(t, err, ErrCodeRequired)
}

func TestLink_ExchangeFailure(t *testing.T) {
	svc, _, _, ex, _ := setup(t)
	ex.err = errors.New("invalid_grant")

	_, err := svc.Link(context.Background(), "code")
	assert.Error(t, err)
}

func TestLink_StoreFailure(t *testing.T) {
	svc, store, api, _, _ := setup(t)

	api.EXPECT().GetUserSettings(gomock.Any(), "acc").Return(settings("Sean", "sean"), nil)
	store.EXPECT().FindBySlug(gomock.Any(), "sean").Return(nil, errors.New("disk full"))

	_, err := svc.Link(context.Background(), "code")
	assert.Error(t, err)
}

func TestProfile(t *testing.T) {
	svc, _, api, _, _ := setup(t)
	user := &models.UserRecord{UserID: "k", UserSlug: "sean"}

	api.EXPECT().GetUserSettings(gomock.Any(), "fresh").Return(settings("Sean Name", "sean"), nil)

	p, err := svc.Profile(context.Background(), user, "fresh")
	require.NoError(t, err)
	assert.Equal(t, Profile{Username: "Sean Name", Slug: "sean"}, p)
}
