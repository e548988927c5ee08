package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// HeaderIdempotencyKey carries the client key that deduplicates retried movements
const HeaderIdempotencyKey = "Idempotency-Key"

const maxPerPage = 100

// tenantID returns the tenant bound to the request by the auth middleware
func tenantID(r *http.Request) (string, error) {
	id, err := tenant.TenantID(r.Context())
	if err != nil {
		return "", errors.Unauthorized("missing tenant context")
	}
	return id, nil
}

// pagination reads page and per_page, defaulting to the first page of 20
func pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > maxPerPage {
		perPage = 20
	}
	return page, perPage
}

func boolQuery(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func intQuery(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.BadRequest(key + " must be a non-negative integer")
	}
	return n, nil
}

func timeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.BadRequest(key + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}
