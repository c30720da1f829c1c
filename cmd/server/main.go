package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authcore/internal/audit"
	auditrepo "authcore/internal/audit/repository"
	"authcore/internal/auth"
	"authcore/internal/config"
	"authcore/internal/db"
	"authcore/internal/policy/engine"
	"authcore/internal/principal"
	principalrepo "authcore/internal/principal/repository"
	"authcore/internal/security"
	"authcore/internal/server"
	sessionrepo "authcore/internal/session/repository"
	otelsetup "authcore/internal/telemetry/otel"
	"authcore/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "authcore", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	codec := security.NewCodec(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	policy, err := engine.NewOPAEvaluator(cfg.SessionPolicy)
	if err != nil {
		log.Fatalf("session policy: %v", err)
	}
	if err := policy.HealthCheck(ctx); err != nil {
		log.Fatalf("session policy health: %v", err)
	}

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), server.IPFromContext)
	emitter := otelsetup.NewEventEmitter(providers.LoggerProvider)

	hasher := security.NewHasher(cfg.BcryptCost)
	directory := principal.NewLocalVerifier(principalrepo.NewPostgresRepository(conn), hasher)

	store := sessionrepo.NewPostgresStore(conn)
	tokens := token.NewService(store, codec, directory, policy, auditLogger, emitter, cfg.RefreshTTL())
	authSvc := auth.NewService(directory, tokens, auditLogger)

	api := server.New(authSvc, tokens, store, conn)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
