package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnauthorized is returned for a missing, malformed, or rejected bearer token.
var ErrUnauthorized = eris.New("api: unauthorized")

// Claims are the bearer token claims accepted by the API.
type Claims struct {
	jwt.RegisteredClaims
}

// ClaimsFrom returns the claims of the authenticated caller, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// Authenticator validates HS256 bearer tokens. An empty secret rejects every
// token.
type Authenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewAuthenticator creates an Authenticator. A non-empty issuer must match
// the token's iss claim.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}
}

// Verify parses and validates a raw token.
func (a *Authenticator) Verify(raw string) (*Claims, error) {
	if len(a.secret) == 0 || raw == "" {
		return nil, ErrUnauthorized
	}
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.Errorf("api: unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, eris.Wrap(ErrUnauthorized, errString(err))
	}
	return claims, nil
}

// Issue signs a token for subject that expires after ttl.
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", eris.New("api: jwt secret is not configured")
	}
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", eris.Wrap(err, "api: sign token")
	}
	return signed, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := a.Verify(raw)
		if err != nil {
			zap.L().Debug("api: token rejected",
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.Error(err),
			)
			WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func errString(err error) string {
	if err == nil {
		return "invalid token"
	}
	return err.Error()
}
