package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"traktical/api"
	"traktical/internal/database"
	"traktical/models"
	"traktical/services/accounts"
)

type userLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserRecord, error)
}

type freshTokens interface {
	FreshFor(ctx context.Context, user *models.UserRecord) (models.StoredToken, error)
}

type profileSource interface {
	Profile(ctx context.Context, user *models.UserRecord, accessToken string) (accounts.Profile, error)
}

// AccountsHandler exposes the public identity behind a capability key.
type AccountsHandler struct {
	users    userLookup
	tokens   freshTokens
	profiles profileSource
	log      *slog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(users userLookup, tokens freshTokens, profiles profileSource) *AccountsHandler {
	return &AccountsHandler{
		users:    users,
		tokens:   tokens,
		profiles: profiles,
		log:      slog.Default().With("component", "accounts_handler"),
	}
}

// GetUser returns the Trakt username and slug for a key.
// GET /api/user/{id}
func (h *AccountsHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := api.SanitizeKey(mux.Vars(r)["id"])
	if id == "" {
		jsonError(w, "no user id provided", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindByUserID(r.Context(), id)
	if errors.Is(err, database.ErrUserNotFound) {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("user lookup failed", "error", err)
		jsonError(w, "user lookup failed", http.StatusInternalServerError)
		return
	}

	tok, err := h.tokens.FreshFor(r.Context(), user)
	if err != nil {
		h.log.Warn("token unavailable for profile", "user_slug", user.UserSlug, "error", err)
		jsonError(w, "could not refresh Trakt authorization", http.StatusBadGateway)
		return
	}

	profile, err := h.profiles.Profile(r.Context(), user, tok.AccessToken)
	if err != nil {
		h.log.Error("profile fetch failed", "user_slug", user.UserSlug, "error", err)
		jsonError(w, "failed to fetch Trakt profile", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func jsonError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
