package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"lfcore/api/grpcserver"
	"lfcore/infra/kafka"
	"lfcore/infra/store"
	"lfcore/jobs/publisher"
	"lfcore/log"
	"lfcore/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the shared stack and queue over gRPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// ---------------- Metrics ----------------

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := service.NewMetrics(reg)

		// ---------------- Service ----------------

		svc, err := service.NewCollections(coreOptions(cfg.Core), metrics)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(ctx)

		// ---------------- Publisher ----------------

		if sc, ok := sinkConfig(cfg.Publish); ok {
			outbox, err := store.Open(cfg.Store.Dir, nil)
			if err != nil {
				return err
			}
			defer outbox.Close()
			sink, err := kafka.NewSink(sc)
			if err != nil {
				return err
			}
			pub := publisher.New(outbox, sink, cfg.Publish.Interval, int(cfg.Publish.MaxRetry))
			defer pub.Close()
			g.Go(func() error {
				pub.Run(ctx)
				return nil
			})
		}

		// ---------------- gRPC ----------------

		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return errors.Wrapf(err, "listen %s", cfg.Server.GRPCAddr)
		}
		gs := grpc.NewServer()
		grpcserver.Register(gs, grpcserver.NewServer(svc))
		g.Go(func() error {
			log.InfoLog.Printf("lfcore %s serving gRPC on %s (reclaimer=%s)", version, cfg.Server.GRPCAddr, cfg.Core.Reclaimer)
			return gs.Serve(lis)
		})

		// ---------------- HTTP ----------------

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		hs := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.InfoLog.Printf("metrics on %s/metrics", cfg.Server.MetricsAddr)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			log.InfoLog.Printf("shutting down")
			gs.GracefulStop()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})

		return g.Wait()
	},
}
