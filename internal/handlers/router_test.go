package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterServesHealthEndpoints(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
}

func TestRouterUnknownRouteReturnsJSONError(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalogue", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rr.Body.Bytes(), &body)
	if body.Error != errorNotFoundCode {
		t.Fatalf("expected %s, got %s", errorNotFoundCode, body.Error)
	}
}

func TestRouterUnregisteredGroupReportsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rr.Code)
	}
}

func TestRouterMountsRegistrars(t *testing.T) {
	router := NewRouter(
		WithCheckoutRoutes(NewCheckoutHandlers(nil, &stubCheckoutService{}).Routes),
		WithOrderRoutes(NewOrderHandlers(nil, &stubOrderService{}).Routes),
		WithGuestOrderRoutes(NewGuestOrderHandlers(&stubGuestOrderService{}).Routes),
		WithAdminRoutes(NewAdminHandlers(nil, &stubOrderService{}, &stubInventoryService{}).Routes),
	)

	cases := []struct {
		name   string
		method string
		target string
		uid    string
		want   int
	}{
		{"buyer order list", http.MethodGet, "/api/v1/orders/", "user_1", http.StatusOK},
		{"buyer order detail", http.MethodGet, "/api/v1/orders/ord_001", "user_1", http.StatusOK},
		{"guest lookup beats order wildcard", http.MethodGet, "/api/v1/orders/guest?orderNumber=N&email=e", "", http.StatusOK},
		{"admin stock list", http.MethodGet, "/api/v1/admin/inventory", "staff_1", http.StatusOK},
		{"checkout mounted", http.MethodPost, "/api/v1/checkout/", "user_1", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest(tc.method, tc.target, nil, tc.uid)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}
