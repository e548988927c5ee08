package httputil_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/permissions"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, _ := tenant.TenantID(r.Context())
		httputil.JSON(w, http.StatusOK, map[string]string{
			"tenant": tenantID,
			"actor":  actor.PerformedBy(r.Context(), ""),
		})
	})
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Data
}

func TestAuthenticator_ValidToken(t *testing.T) {
	auth := httputil.NewAuthenticator(&config.JWTConfig{Secret: "s3cret", Issuer: "stockflow", Required: true})
	token, err := auth.Issue(actor.Actor{ID: "u1", Name: "Dana", TenantID: "t1"}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	auth.Middleware(echoIdentity()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "t1", data["tenant"])
	assert.Equal(t, "Dana", data["actor"])
}

func TestAuthenticator_Rejects(t *testing.T) {
	auth := httputil.NewAuthenticator(&config.JWTConfig{Secret: "s3cret", Issuer: "stockflow", Required: true})
	other := httputil.NewAuthenticator(&config.JWTConfig{Secret: "other", Issuer: "stockflow"})

	expired, err := auth.Issue(actor.Actor{ID: "u1", TenantID: "t1"}, -time.Minute)
	require.NoError(t, err)
	forged, err := other.Issue(actor.Actor{ID: "u1", TenantID: "t1"}, time.Minute)
	require.NoError(t, err)
	noTenant, err := auth.Issue(actor.Actor{ID: "u1"}, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", "UNAUTHORIZED"},
		{"expired", "Bearer " + expired, "TOKEN_EXPIRED"},
		{"bad signature", "Bearer " + forged, "TOKEN_INVALID"},
		{"no tenant", "Bearer " + noTenant, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			auth.Middleware(echoIdentity()).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body httputil.Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestAuthenticator_OptionalFallsBackToGatewayHeaders(t *testing.T) {
	auth := httputil.NewAuthenticator(&config.JWTConfig{Secret: "s3cret", Required: false})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/depots", nil)
	req.Header.Set(httputil.HeaderTenantID, "t9")
	rec := httptest.NewRecorder()

	auth.Middleware(echoIdentity()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "t9", data["tenant"])
	assert.Equal(t, actor.SystemName, data["actor"])
}

func TestTenantMiddleware(t *testing.T) {
	t.Run("missing tenant is forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httputil.TenantMiddleware(echoIdentity()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("health bypasses tenant", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httputil.TenantMiddleware(echoIdentity()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("actor header becomes performer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
		req.Header.Set(httputil.HeaderTenantID, "t1")
		req.Header.Set(httputil.HeaderActorName, "Warehouse Bot")
		rec := httptest.NewRecorder()

		httputil.TenantMiddleware(echoIdentity()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Warehouse Bot", decodeData(t, rec)["actor"])
	})
}

func TestRequirePermission(t *testing.T) {
	auth := httputil.NewAuthenticator(&config.JWTConfig{Secret: "s3cret", Issuer: "stockflow", Required: true})
	guarded := auth.Middleware(httputil.RequirePermission(permissions.InventoryStockWrite)(echoIdentity()))

	tests := []struct {
		name string
		role string
		want int
	}{
		{"clerk may move stock", permissions.RoleClerk, http.StatusOK},
		{"viewer may not", permissions.RoleViewer, http.StatusForbidden},
		{"unknown role", "intern", http.StatusForbidden},
		{"unscoped token", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := auth.Issue(actor.Actor{ID: "u1", TenantID: "t1", Role: tt.role}, time.Minute)
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/stock/in", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			guarded.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
