package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/nyameri/octreport/internal/alerts"
	"github.com/nyameri/octreport/internal/api"
	"github.com/nyameri/octreport/internal/auth"
	"github.com/nyameri/octreport/internal/config"
	"github.com/nyameri/octreport/internal/health"
	"github.com/nyameri/octreport/internal/store"
	"github.com/nyameri/octreport/internal/ws"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis service",
		Long: `Load every configured source, then serve the analyses over the REST API,
the WebSocket stream (/ws/stream), Prometheus /metrics and the gRPC health
service. Local files are reloaded on change and remote sources are polled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(v, "config"); err != nil {
				return err
			}
			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}

			httpLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.HTTPPort))
			if err != nil {
				return fmt.Errorf("listen on HTTP port %d: %w", cfg.Server.HTTPPort, err)
			}
			var grpcLis net.Listener
			if cfg.Server.GRPCPort != 0 {
				grpcLis, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
				if err != nil {
					httpLis.Close()
					return fmt.Errorf("listen on gRPC port %d: %w", cfg.Server.GRPCPort, err)
				}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, httpLis, grpcLis)
		},
	}
	cmd.Flags().String("config", "octreport.yaml", "path to config file")
	return cmd
}

// serve runs the service on the given listeners until ctx is cancelled.
// grpcLis may be nil to disable the gRPC health service.
func serve(ctx context.Context, cfg *config.Config, httpLis, grpcLis net.Listener) error {
	slog.Info("octreport serve starting",
		"http_addr", httpLis.Addr().String(),
		"grpc_enabled", grpcLis != nil,
		"auth_mode", cfg.Server.Auth.Mode,
		"sources", len(cfg.Data.Sources),
	)

	st := store.New()
	alertEngine := alerts.New(cfg.Alerts)
	reporter := health.NewReporter()
	hub := ws.New(st, cfg.Server.BroadcastInterval)

	p, err := newPipeline(cfg, st,
		reporter.Update,
		alertEngine.Evaluate,
		hub.Publish,
	)
	if err != nil {
		return err
	}

	if failed := p.refreshAll(ctx, nil); failed > 0 {
		slog.Warn("octreport serve: some sources failed to load", "failed", failed, "total", len(cfg.Data.Sources))
	}

	go p.checkCerts(ctx)
	go hub.Run(ctx)
	go p.poll(ctx, cfg.Data.PollInterval)
	if cfg.Data.Watch {
		go func() {
			if err := p.watch(ctx); err != nil {
				slog.Error("octreport serve: file watcher stopped", "err", err)
			}
		}()
	}

	authMode, authHeader, authKey := cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key()
	if authMode == "apikey" && authKey == "" {
		slog.Warn("octreport serve: auth mode apikey but key is empty; requests are not checked", "key_env", cfg.Server.Auth.KeyEnv)
	}

	var grpcSrv *grpc.Server
	if grpcLis != nil {
		grpcSrv = grpc.NewServer(
			grpc.ChainUnaryInterceptor(auth.APIKeyInterceptor(authMode, authHeader, authKey)),
			grpc.ChainStreamInterceptor(auth.StreamAPIKeyInterceptor(authMode, authHeader, authKey)),
		)
		reporter.Register(grpcSrv)
		go func() {
			slog.Info("gRPC health service listening", "addr", grpcLis.Addr().String())
			if err := grpcSrv.Serve(grpcLis); err != nil {
				slog.Error("gRPC server stopped", "err", err)
			}
		}()
	}

	apiHandler := api.New(st, api.Options{
		Alerts:       alertEngine,
		ThicknessMap: cfg.ThicknessMap,
		Report:       cfg.Report,
	})
	requireKey := auth.Middleware(authMode, authHeader, authKey)

	mux := http.NewServeMux()
	mux.Handle("/api/", requireKey(apiHandler))
	mux.Handle("/ws/stream", requireKey(hub))
	mux.Handle("/metrics", apiHandler)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("octreport serve shutting down")

	reporter.Shutdown()
	if grpcSrv != nil {
		// Open health Watch streams would block GracefulStop indefinitely.
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			grpcSrv.Stop()
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = httpSrv.Shutdown(shutdownCtx)
	alertEngine.Wait()
	return err
}
