// Command ecm-server starts the ECM core gRPC server, the local content
// endpoint and the signature expiry sweeper.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/ecm-core/internal/config"
	"github.com/and161185/ecm-core/internal/limiter"
	"github.com/and161185/ecm-core/internal/logger"
	"github.com/and161185/ecm-core/internal/migrate"
	"github.com/and161185/ecm-core/internal/repository/postgres"
	grpcserver "github.com/and161185/ecm-core/internal/server/grpc"
	"github.com/and161185/ecm-core/internal/sweeper"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	// Flags override the environment.
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "gRPC listen address")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN")
	flag.StringVar(&cfg.Storage.Local.Addr, "content-addr", cfg.Storage.Local.Addr, "local content HTTP listen address")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "enable server reflection (dev only)")
	flag.Parse()

	log, err := logger.New(cfg.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	if err := run(cfg, log); err != nil {
		log.Error("server error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.JWTKey == "" {
		return errors.New("missing jwt signing key (ECM_JWT_KEY)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return err
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ext, err := buildExtensions(cfg, log)
	if err != nil {
		return err
	}
	if ext.s3 != nil {
		if err := ext.s3.EnsureBucket(ctx); err != nil {
			return err
		}
	}
	svc, err := buildServices(cfg, db, ext, log)
	if err != nil {
		return err
	}
	sw, err := sweeper.New(svc.Expirer, cfg.SweepSchedule, cfg.SweepTimeout, log.Named("sweeper"))
	if err != nil {
		return err
	}

	var lim limiter.Limiter
	if p := authPolicy(cfg.Auth); p.Enabled() {
		lim = limiter.NewPG(db.Pool, p, nil)
	}
	gs, err := newGRPCServer(cfg, svc, lim, log)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		return gs.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			gs.Stop()
		}
		return nil
	})

	if ext.local != nil {
		hs := &http.Server{
			Addr:              cfg.Storage.Local.Addr,
			Handler:           ext.local.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info("content endpoint listening", zap.String("addr", hs.Addr))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	g.Go(func() error { return sw.Run(gctx) })

	return g.Wait()
}

func authPolicy(c config.AuthConfig) limiter.Policy {
	return limiter.Policy{Window: c.Window, MaxFails: c.MaxFails, BlockFor: c.BlockFor}
}

func newGRPCServer(cfg *config.Config, svc *services, lim limiter.Limiter, log *zap.Logger) (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(log),
			grpcserver.LoggingUnary(log),
			grpcserver.AuthUnary(svc.Tokens, lim, log),
		),
	}
	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		log.Warn("TLS not configured, serving plaintext gRPC")
	}

	s := grpc.NewServer(opts...)
	grpcserver.New(svc.Deps).Register(s)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}
	return s, nil
}
