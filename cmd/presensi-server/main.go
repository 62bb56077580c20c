package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hadir-sekolah/presensi/internal/config"
	"github.com/hadir-sekolah/presensi/internal/httpapi"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
	"github.com/hadir-sekolah/presensi/internal/presensi/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.FromEnv()

	host, _ := os.Hostname()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "presensi-server ", log.LstdFlags|log.LUTC),
		cfg.Debug,
		logsvc.RollbarConfig{
			Token:       cfg.RollbarToken,
			Environment: cfg.Env,
			CodeVersion: version,
			ServerHost:  host,
		},
	)

	err := run(cfg, logger)
	if err != nil {
		logger.Errorf("server stopped: %v", err)
	}
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, logger logsvc.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// Services
	registry := service.NewSubjectRegistry(st.subjects)
	settingsSvc := service.NewSettingsService(st.settings)
	attendanceSvc := service.NewAttendanceService(registry, settingsSvc, st.records, st.events, logger)

	if _, err := settingsSvc.Parsed(ctx); err != nil {
		logger.Warnf("stored settings do not parse, submissions will fail until fixed: %v", err)
	}

	pruner := service.NewAuditPruner(st.events, service.PrunerConfig{
		RetentionDays: cfg.AuditRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Attendance: attendanceSvc,
		Settings:   settingsSvc,
		AdminToken: cfg.AdminToken,
		Registry:   reg,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("listening on %s (store=%s, env=%s)", cfg.HTTPAddr, cfg.Store, cfg.Env)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	var (
		grpcServer *grpc.Server
		healthSrv  *health.Server
	)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return errors.Wrapf(err, "listen %s", cfg.GRPCAddr)
		}
		grpcServer = grpc.NewServer()
		healthSrv = health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthSrv)
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

		g.Go(func() error {
			logger.Infof("grpc health on %s", cfg.GRPCAddr)
			return errors.Wrap(grpcServer.Serve(lis), "grpc server")
		})
	}

	pruner.Start(gctx)

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if healthSrv != nil {
			healthSrv.Shutdown()
		}
		err := srv.Shutdown(shutdownCtx)
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		pruner.Stop()
		return errors.Wrap(err, "http shutdown")
	})

	return g.Wait()
}
