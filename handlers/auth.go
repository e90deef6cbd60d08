package handlers

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"traktical/models"
	"traktical/services/accounts"
)

// authFlow is the part of the Trakt OAuth flow the handlers drive.
type authFlow interface {
	AuthCodeURL() (string, error)
	VerifyState(state string) error
}

// accountLinker completes a login and returns the owner of the capability key.
type accountLinker interface {
	Link(ctx context.Context, code string) (*models.UserRecord, error)
}

var authPage = template.Must(template.New("auth").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Trakt iCal</title>
<style>
body { font-family: sans-serif; text-align: center; }
main { display: flex; flex-direction: column; justify-content: center; align-items: center; height: 100%; }
a { display: inline-block; padding: 10px 20px; background-color: #2c3e50; color: #fff; text-decoration: none; border-radius: 5px; }
a:hover { background-color: #34495e; }
</style>
</head>
<body>
<main>
<a href="{{.URL}}">Authorize with Trakt</a>
<p>You will be redirected to Trakt.tv to authorize this app.</p>
<p id="countdown">Redirecting in {{.Seconds}} seconds...</p>
</main>
<script>
(function () {
  var i = {{.Seconds}};
  var target = {{.URL}};
  var interval = setInterval(function () {
    i--;
    if (i <= 0) {
      clearInterval(interval);
      window.location.href = target;
    }
    document.querySelector("#countdown").textContent = "Redirecting in " + i + " seconds...";
  }, 1000);
})();
</script>
</body>
</html>
`))

const authCountdownSeconds = 5

// AuthHandler serves the Trakt login page and the OAuth callback.
type AuthHandler struct {
	oauth    authFlow
	accounts accountLinker
	log      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(oauth authFlow, accountsSvc accountLinker) *AuthHandler {
	return &AuthHandler{
		oauth:    oauth,
		accounts: accountsSvc,
		log:      slog.Default().With("component", "auth"),
	}
}

// Authorize renders a page that forwards the browser to Trakt's consent
// screen after a short countdown.
// GET /auth
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	target, err := h.oauth.AuthCodeURL()
	if err != nil {
		h.log.Error("failed to build authorize url", "error", err)
		jsonError(w, "failed to start authorization", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := struct {
		URL     string
		Seconds int
	}{URL: target, Seconds: authCountdownSeconds}
	if err := authPage.Execute(w, data); err != nil {
		h.log.Error("failed to render auth page", "error", err)
	}
}

// Callback finishes the OAuth flow and sends the user to the landing page
// with their capability key.
// GET /trakt/callback, GET /callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if denied := strings.TrimSpace(q.Get("error")); denied != "" {
		jsonError(w, "authorization denied: "+denied, http.StatusBadRequest)
		return
	}

	if err := h.oauth.VerifyState(q.Get("state")); err != nil {
		h.log.Warn("rejected oauth callback", "error", err)
		jsonError(w, "invalid or expired state", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.Link(r.Context(), strings.TrimSpace(q.Get("code")))
	if err != nil {
		if errors.Is(err, accounts.ErrCodeRequired) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("failed to link trakt account", "error", err)
		jsonError(w, "failed to link Trakt account", http.StatusBadGateway)
		return
	}

	http.Redirect(w, r, "/?key="+url.QueryEscape(user.UserID), http.StatusFound)
}
