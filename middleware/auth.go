package middleware

import (
	usermodel "articlehub/internal/user/model"
	"articlehub/pkg/logger"
	"articlehub/pkg/response"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserKey contextKey = "user"

// Authenticator resolves the operator from an HMAC-signed bearer token.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// UserFrom returns the authenticated operator, nil for anonymous requests.
func UserFrom(ctx context.Context) *usermodel.User {
	u, _ := ctx.Value(UserKey).(*usermodel.User)
	return u
}

// WithUser stores u as the operator of ctx.
func WithUser(ctx context.Context, u *usermodel.User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

func tokenFrom(r *http.Request) string {
	// Browsers cannot set headers on websocket requests, so the query wins.
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// Authenticate attaches the operator to the request context when a token is
// present. Requests without a token continue anonymously; a bad token is rejected.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFrom(r)
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.Parse(tokenString)
		if err != nil {
			logger.Sugar.Infof("Invalid token: %v", err)
			response.Error(w, response.CodeLogin, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Parse validates tokenString and builds the operator from its sub and role claims.
func (a *Authenticator) Parse(tokenString string) (*usermodel.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("could not parse token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("user id (sub) claim is missing or invalid")
	}

	role := usermodel.RoleUser
	if raw, ok := claims["role"].(string); ok && raw != "" {
		role = usermodel.Role(raw)
	}
	if !usermodel.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	user := &usermodel.User{UUID: sub, Role: role}
	if name, ok := claims["username"].(string); ok {
		user.Username = name
	}
	return user, nil
}

// RequireFeature rejects operators lacking f. It runs after Authenticate.
func RequireFeature(f usermodel.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFrom(r.Context())
			if f != usermodel.FeaturePublic && user == nil {
				response.Error(w, response.CodeLogin, "login required")
				return
			}
			if !user.HasFeature(f) {
				response.Error(w, response.CodeUnauthorized, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
