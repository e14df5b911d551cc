package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"coachcrm/internal/application/boards"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const viewerContextKey contextKey = "viewer"

// DemoHeader marks a request from a demo viewer. The demo cookie does the
// same for browser page loads.
const (
	DemoHeader     = "X-Demo-Mode"
	DemoCookieName = "crm_demo"
	TokenCookie    = "crm_token"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization header")
	ErrBadAuthorization     = errors.New("bad auth header")
	ErrMissingSubject       = errors.New("missing sub")
)

// Verifier validates HS256 bearer tokens issued by the hosted auth provider
// and extracts the user ID from the sub claim.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

// NewVerifier returns a verifier for the shared secret. Empty issuer or
// audience skip that check.
// PRE: secret is non-empty
func NewVerifier(secret, issuer, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		now:      time.Now,
	}
}

// UserIDFromAuthHeader extracts the user ID from an "Authorization: Bearer" value.
func (v *Verifier) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", ErrMissingAuthorization
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.Count(token, ".") != 2 {
		return "", ErrBadAuthorization
	}
	return v.UserIDFromToken(token)
}

// UserIDFromToken verifies a raw JWT and returns its subject.
// POST: returned ID is non-empty when err is nil
func (v *Verifier) UserIDFromToken(token string) (string, error) {
	parsed, err := v.parser.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := v.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return "", errors.New("invalid audience")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", errors.New("invalid issuer")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrMissingSubject
	}
	return sub, nil
}

// Auth returns middleware that resolves the viewer of a request and stores it
// in the context. A bearer header wins over the token cookie. With allowDemo
// set, a request carrying the demo header or cookie and no valid token
// becomes a demo viewer. Auth never blocks; use RequireViewer for that.
func Auth(v *Verifier, allowDemo bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if viewer, ok := resolveViewer(r, v, allowDemo); ok {
				r = r.WithContext(ContextWithViewer(r.Context(), viewer))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveViewer(r *http.Request, v *Verifier, allowDemo bool) (boards.Viewer, bool) {
	if v != nil {
		if h := r.Header.Get("Authorization"); h != "" {
			if id, err := v.UserIDFromAuthHeader(h); err == nil {
				return boards.Viewer{UserID: id}, true
			}
		} else if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
			if id, err := v.UserIDFromToken(c.Value); err == nil {
				return boards.Viewer{UserID: id}, true
			}
		}
	}
	if allowDemo && demoRequested(r) {
		return boards.Viewer{DemoMode: true}, true
	}
	return boards.Viewer{}, false
}

func demoRequested(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get(DemoHeader), "true") {
		return true
	}
	c, err := r.Cookie(DemoCookieName)
	return err == nil && c.Value == "1"
}

// RequireViewer blocks requests without a resolved viewer.
// API callers get a 401; page loads are sent to the landing page.
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ViewerFromContext(r.Context()); !ok {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				http.Error(w, "not authenticated", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ViewerFromContext extracts the viewer set by Auth.
func ViewerFromContext(ctx context.Context) (boards.Viewer, bool) {
	v, ok := ctx.Value(viewerContextKey).(boards.Viewer)
	return v, ok
}

// ContextWithViewer returns a context carrying viewer.
func ContextWithViewer(ctx context.Context, viewer boards.Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey, viewer)
}
