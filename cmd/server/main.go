// Command server runs the Verified ID relay: a reference issuer/verifier
// web service that registers issuance and presentation requests with the
// Microsoft Entra Verified ID request service and relays its asynchronous
// callbacks to a polling browser UI.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vcrelay/internal/audit"
	"vcrelay/internal/callback"
	"vcrelay/internal/correlation/store"
	"vcrelay/internal/entra"
	"vcrelay/internal/issuance"
	"vcrelay/internal/platform/config"
	"vcrelay/internal/platform/httpserver"
	"vcrelay/internal/platform/logger"
	"vcrelay/internal/platform/metrics"
	platformredis "vcrelay/internal/platform/redis"
	"vcrelay/internal/presentation"
	httpapi "vcrelay/internal/transport/http"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	correlationStore, cleanup, err := buildStore(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	tokens := entra.NewClientCredentialsProvider(cfg.TenantID, cfg.ClientID, cfg.ClientSecret)
	verifyStartup(ctx, &cfg, tokens, log)

	m := metrics.New()
	client := entra.NewClient(config.RequestServiceHost, tokens, cfg.UpstreamTimeout, entra.WithMetrics(m))

	var auditPub callback.AuditPublisher
	if cfg.KafkaBrokers != "" {
		pub, err := audit.NewPublisher(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, log)
		if err != nil {
			return fmt.Errorf("audit publisher: %w", err)
		}
		defer pub.Close()
		auditPub = pub
	}

	issuanceTemplate, err := entra.LoadIssuanceTemplate(cfg.IssuanceTemplate)
	if err != nil {
		return err
	}
	presentationTemplate, err := entra.LoadPresentationTemplate(cfg.PresentationTemplate)
	if err != nil {
		return err
	}

	var manifest *entra.Manifest
	manifest, err = entra.FetchManifest(ctx, http.DefaultClient, cfg.CredentialManifest)
	if err != nil {
		log.Warn("credential manifest fetch failed", "url", cfg.CredentialManifest, "error", err)
	} else {
		if cfg.IssuerAuthority == "" {
			cfg.IssuerAuthority = manifest.Issuer
		}
		if cfg.VerifierAuthority == "" {
			cfg.VerifierAuthority = manifest.Issuer
		}
		if cfg.IssuerAuthority != manifest.Issuer {
			return fmt.Errorf("issuer authority %s does not match manifest issuer %s", cfg.IssuerAuthority, manifest.Issuer)
		}
	}

	issuerService := issuance.New(issuanceTemplate, client, tokens, correlationStore,
		cfg.IssuerAuthority, cfg.CredentialManifest, cfg.APIKey, m, log)
	verifierService := presentation.New(presentationTemplate, client, tokens, correlationStore,
		cfg.VerifierAuthority, cfg.APIKey, presentation.FaceCheckConfig{
			SourceClaim: cfg.FaceCheckSourceClaim,
			Threshold:   cfg.FaceCheckThreshold,
		}, m, log)
	callbackService := callback.New(correlationStore, callback.NewGate(cfg.APIKey), log, m, auditPub)

	router := httpapi.NewRouter(httpapi.Deps{
		Config:   cfg,
		Logger:   log,
		Issuer:   issuance.NewHandler(issuerService, manifest, log),
		Verifier: presentation.NewHandler(verifierService, log),
		Callback: callback.NewHandler(callbackService, log),
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting vcrelay", "addr", cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildStore picks the correlation store backend: Postgres when a DSN is
// configured, Redis when a URL is, in-memory otherwise.
func buildStore(cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if _, err := db.Exec(store.Schema); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("apply postgres schema: %w", err)
		}
		log.Info("correlation store: postgres")
		return store.NewPostgres(db, cfg.SessionTTL), func() { db.Close() }, nil
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if redisClient != nil {
		log.Info("correlation store: redis")
		return store.NewRedis(redisClient.Client, cfg.SessionTTL), func() { redisClient.Close() }, nil
	}

	log.Info("correlation store: in-memory")
	return store.NewInMemory(cfg.SessionTTL), func() {}, nil
}

// verifyStartup checks once that a token can be acquired and that it
// carries the Verified ID create-request role, so misconfiguration shows up
// in the log before the first user does.
func verifyStartup(ctx context.Context, cfg *config.Config, tokens entra.TokenProvider, log *slog.Logger) {
	accessToken, err := tokens.AccessToken(ctx)
	if err != nil {
		log.Warn("startup token check failed",
			"tenant", cfg.TenantID,
			"client_id", cfg.ClientID,
			"error", err,
		)
		return
	}
	if err := entra.VerifyRoles(accessToken); err != nil {
		log.Warn("startup token check failed", "error", err)
	}
}
