package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	bootstrap "github.com/tbeaudouin05/billing-lifecycle/api/bootstrap"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/app"
)

// AccountHeader carries the authenticated account id set by the session layer.
const AccountHeader = "X-Account-Id"

// NewRouter returns the central HTTP router for the API using the grpc-gateway mux.
func NewRouter() http.Handler {
	// Initialize app dependencies (non-fatal if it fails here; handlers re-check).
	if err := bootstrap.Ensure(); err != nil {
		slog.Error("bootstrap ensure failed", "err", err)
	}
	return NewHandler(bootstrap.GetBillingService())
}

// NewHandler maps the billing service onto HTTP routes.
func NewHandler(svc app.Service) http.Handler {
	mux := runtime.NewServeMux(
		runtime.WithIncomingHeaderMatcher(HeaderMatcher),
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{
			MarshalOptions:   protojson.MarshalOptions{EmitUnpopulated: true},
			UnmarshalOptions: protojson.UnmarshalOptions{DiscardUnknown: true},
		}),
	)
	h := handlers{svc: svc, mux: mux}

	routes := []struct {
		method, path string
		fn           runtime.HandlerFunc
	}{
		{http.MethodPost, "/api/v1/payments/subscribe", h.subscribe},
		{http.MethodPost, "/api/v1/payments/verify", h.verify},
		{http.MethodPost, "/api/v1/payments/unsubscribe", h.unsubscribe},
		{http.MethodGet, "/api/v1/payments/subscription", h.subscription},
		{http.MethodGet, "/api/v1/payments", h.listPayments},
		{http.MethodGet, "/api/v1/payments/ledger", h.ledger},
		{http.MethodGet, "/metrics", metricsHandler},
	}
	for _, rt := range routes {
		fn := rt.fn
		if svc == nil && rt.path != "/metrics" {
			fn = h.unavailable
		}
		if err := mux.HandlePath(rt.method, rt.path, fn); err != nil {
			slog.Error("failed to register route", "method", rt.method, "path", rt.path, "err", err)
		}
	}
	return mux
}

// HeaderMatcher forwards the account header alongside the gateway defaults.
func HeaderMatcher(key string) (string, bool) {
	if strings.EqualFold(key, AccountHeader) {
		return strings.ToLower(key), true
	}
	return runtime.DefaultHeaderMatcher(key)
}

// unavailable answers every billing route while the service failed to initialize.
func (h handlers) unavailable(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	_, outbound := runtime.MarshalerForRequest(h.mux, r)
	runtime.HTTPError(r.Context(), h.mux, outbound, w, r, status.Error(codes.Unavailable, "billing service not initialized"))
}

func metricsHandler(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	promhttp.Handler().ServeHTTP(w, r)
}
