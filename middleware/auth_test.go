package middleware

import (
	usermodel "articlehub/internal/user/model"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func userToken(t *testing.T, sub, role string) string {
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()}
	if role != "" {
		claims["role"] = role
	}
	return sign(t, claims, jwt.SigningMethodHS256, []byte(testSecret))
}

// echoUser reports which operator reached the handler.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if u := UserFrom(r.Context()); u != nil {
		w.Write([]byte(u.UUID + ":" + string(u.Role)))
		return
	}
	w.Write([]byte("anonymous"))
})

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	handler := auth.Authenticate(echoUser)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "anonymous", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "u1", ""))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "u1:USER", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/ws?token="+userToken(t, "root", "ADMINISTRATOR"), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "root:ADMINISTRATOR", rec.Body.String())
}

func TestAuthenticateRejects(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	handler := auth.Authenticate(echoUser)

	tokens := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": sign(t, jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodHS256, []byte("other")),
		"expired":      sign(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}, jwt.SigningMethodHS256, []byte(testSecret)),
		"no subject":   sign(t, jwt.MapClaims{"role": "USER"}, jwt.SigningMethodHS256, []byte(testSecret)),
		"unknown role": userToken(t, "u1", "GOD"),
		"none alg":     sign(t, jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType),
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"LOGIN"`)
		})
	}
}

func TestRequireFeature(t *testing.T) {
	user := &usermodel.User{UUID: "u1", Role: usermodel.RoleUser}
	admin := &usermodel.User{UUID: "a1", Role: usermodel.RoleAdministrator}

	cases := []struct {
		name    string
		feature usermodel.Feature
		user    *usermodel.User
		status  int
	}{
		{"public anonymous", usermodel.FeaturePublic, nil, http.StatusOK},
		{"mine anonymous", usermodel.FeatureUserMine, nil, http.StatusUnauthorized},
		{"mine user", usermodel.FeatureUserMine, user, http.StatusOK},
		{"manage user", usermodel.FeatureUserManage, user, http.StatusForbidden},
		{"manage admin", usermodel.FeatureUserManage, admin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.user != nil {
				req = req.WithContext(WithUser(req.Context(), tc.user))
			}
			rec := httptest.NewRecorder()
			RequireFeature(tc.feature)(echoUser).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
