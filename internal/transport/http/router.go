// Package httpapi wires the relay's HTTP surface: issuer and verifier
// flows, the webhook callbacks, diagnostics, and the static browser UI.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vcrelay/internal/callback"
	"vcrelay/internal/issuance"
	"vcrelay/internal/platform/config"
	"vcrelay/internal/platform/middleware"
	"vcrelay/internal/presentation"
	"vcrelay/internal/transport/http/shared"
)

// Deps collects everything the router mounts.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Issuer   *issuance.Handler
	Verifier *presentation.Handler
	Callback *callback.Handler
}

// NewRouter builds the full route table.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS)

	deps.Issuer.Register(r)
	deps.Verifier.Register(r)

	// Both flows share one webhook implementation; the request service is
	// handed a per-flow URL at registration time.
	r.Post("/api/issuer/issuance-request-callback", deps.Callback.ServeHTTP)
	r.Post("/api/verifier/presentation-request-callback", deps.Callback.ServeHTTP)

	r.Get("/echo", echoHandler(deps.Config))
	r.Handle("/metrics", promhttp.Handler())

	// Browser UI.
	r.Handle("/*", http.FileServer(http.Dir(deps.Config.PublicDir)))

	return r
}

// echoHandler reflects request metadata and selected config so a deployment
// behind tunnels and proxies can be smoke-tested from a browser.
func echoHandler(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]any{
			"date":              time.Now().UTC().Format(time.RFC3339),
			"api":               "https://" + r.Host + r.URL.String(),
			"Host":              r.Host,
			"x-forwarded-for":   r.Header.Get("x-forwarded-for"),
			"x-original-host":   r.Header.Get("x-original-host"),
			"IssuerAuthority":   cfg.IssuerAuthority,
			"VerifierAuthority": cfg.VerifierAuthority,
			"manifestURL":       cfg.CredentialManifest,
			"clientId":          cfg.ClientID,
		})
	}
}
