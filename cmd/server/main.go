// Server exposes the audit history over HTTP and a gRPC health service.
// Audit records are read from the store selected by AUDIT_STORE.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"google.golang.org/grpc/health"

	audithandler "docaudit/internal/audit/handler"
	auditrepo "docaudit/internal/audit/repository"
	"docaudit/internal/config"
	"docaudit/internal/db"
	healthhandler "docaudit/internal/health/handler"
	"docaudit/internal/security"
	"docaudit/internal/server"
	"docaudit/internal/telemetry"
	otelsetup "docaudit/internal/telemetry/otel"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	pingers := map[string]healthhandler.Pinger{
		"mongo": healthhandler.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}),
	}

	repo, pg, err := openRepository(ctx, cfg, client)
	if err != nil {
		log.Fatalf("audit store: %v", err)
	}
	if pg != nil {
		pingers["postgres"] = pg
	}

	var verifier audithandler.TokenVerifier
	if cfg.JWTPublicKey != "" {
		v, err := security.LoadVerifier(cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			log.Fatalf("jwt: %v", err)
		}
		verifier = v
	} else {
		log.Println("server: JWT_PUBLIC_KEY not set; audit API is unauthenticated")
	}

	checks := healthhandler.NewServer(pingers)
	router := audithandler.NewRouter(audithandler.NewHandler(repo, verifier), checks)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthSrv := health.NewServer()
	grpcSrv := server.NewGRPCServer(server.Deps{
		Health:     healthSrv,
		Reflection: cfg.Env != "production",
	})
	go checks.Watch(ctx, healthSrv, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("serve grpc: %v", err)
		}
	}()
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: http shutdown: %v", err)
	}
	healthSrv.Shutdown()
	grpcSrv.GracefulStop()

	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel: shutdown: %v", err)
	}
	if pg != nil {
		_ = pg.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.Printf("mongo: disconnect: %v", err)
	}
	log.Println("servers stopped")
}

// openRepository returns the audit repository selected by cfg.AuditStore, and the
// Postgres pool when one was opened.
func openRepository(ctx context.Context, cfg *config.Config, client *mongo.Client) (auditrepo.Repository, *sql.DB, error) {
	switch cfg.AuditStore {
	case config.AuditStorePostgres:
		conn, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return auditrepo.NewPostgresRepository(conn), conn, nil
	default:
		repo := auditrepo.NewMongoRepository(client.Database(cfg.MongoDatabase).Collection(cfg.AuditCollection))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	}
}
