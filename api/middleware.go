package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"traktical/internal/auth"
	"traktical/internal/database"
	"traktical/internal/metrics"
	"traktical/models"
)

// UserFinder looks up the owner of a capability key.
type UserFinder interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserRecord, error)
}

// KeyPolicy decides how a request without a usable key is answered.
type KeyPolicy struct {
	Missing http.HandlerFunc
	Unknown http.HandlerFunc
}

const noKeyPage = `<!DOCTYPE html>
<html>
<head>
<title>Trakt iCal</title>
<script>setTimeout(function () { window.location.href = "/auth"; }, 5000);</script>
</head>
<body>No key provided, redirecting to <a href="/auth">/auth</a> in 5 seconds</body>
</html>
`

// RedirectToAuth sends browsers and calendar clients back to the login page.
var RedirectToAuth = KeyPolicy{
	Missing: func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(noKeyPage))
	},
	Unknown: func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/auth", http.StatusFound)
	},
}

// JSONKeyErrors answers with JSON error bodies, for API consumers.
var JSONKeyErrors = KeyPolicy{
	Missing: func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "no key provided", http.StatusBadRequest)
	},
	Unknown: func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "unknown key", http.StatusNotFound)
	},
}

// SanitizeKey strips everything but ASCII letters and digits from a key.
func SanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, key)
}

// UserKeyMiddleware resolves the ?key= capability token into a user record
// stored on the request context.
func UserKeyMiddleware(store UserFinder, policy KeyPolicy) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := SanitizeKey(r.URL.Query().Get("key"))
			if key == "" {
				policy.Missing(w, r)
				return
			}

			user, err := store.FindByUserID(r.Context(), key)
			if errors.Is(err, database.ErrUserNotFound) {
				policy.Unknown(w, r)
				return
			}
			if err != nil {
				slog.Default().Error("user lookup failed", "error", err, "request_id", auth.GetRequestID(r.Context()))
				writeJSONError(w, "user lookup failed", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// RequestLogger tags each request with an id and logs it once it completes.
// The capability key is never logged.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w}
		ctx := context.WithValue(r.Context(), auth.ContextKeyRequestID, requestID)
		next.ServeHTTP(rec, r.WithContext(ctx))

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := routeName(r)
		elapsed := time.Since(start)
		metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())

		slog.Default().Info("request",
			"request_id", requestID,
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"bytes", rec.bytes,
			"days_ago", r.URL.Query().Get("days_ago"),
			"period", r.URL.Query().Get("period"),
			"duration", elapsed,
		)
	})
}

// routeName keeps metric label cardinality bounded by using the mux template.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
