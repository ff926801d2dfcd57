package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/towerworks/foundation-core/internal/designd"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var httpAddr, grpcAddr string
	var retryDelay time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the design daemon (HTTP runs API and gRPC health)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts, httpAddr, grpcAddr, retryDelay)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", ":50051", "gRPC listen address")
	cmd.Flags().DurationVar(&retryDelay, "callback-retry-delay", 0, "fixed wait between callback retries (exponential backoff when zero)")
	return cmd
}

func serve(cmd *cobra.Command, opts *globalOptions, httpAddr, grpcAddr string, retryDelay time.Duration) error {
	log, err := opts.setupLogger(cmd, "info")
	if err != nil {
		return err
	}
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	executor := designd.NewExecutor(st, log)
	executor.SetCallbackRetryDelay(retryDelay)

	// TODO: Configure gRPC server security (TLS, authentication) before
	// exposing the daemon outside a trusted network.
	grpcServer := designd.NewGRPCServer()
	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
		return err
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           designd.NewHTTPServer(st, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			log.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		log.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", "error", err)
	}
	executor.Shutdown()
	log.Info("shutdown complete")
	return nil
}
