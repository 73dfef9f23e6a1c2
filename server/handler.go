package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/stategraph/observability"
)

// ServiceName is the fully-qualified Connect service name.
const ServiceName = "stategraph.v1.GraphService"

// Procedure paths.
const (
	ListGraphsProcedure    = "/" + ServiceName + "/ListGraphs"
	DescribeGraphProcedure = "/" + ServiceName + "/DescribeGraph"
	RunGraphProcedure      = "/" + ServiceName + "/RunGraph"
	GetRunProcedure        = "/" + ServiceName + "/GetRun"
	ListRunsProcedure      = "/" + ServiceName + "/ListRuns"
)

// Handler mounts every procedure and a /healthz probe.
func (s *Service) Handler(opts ...connect.HandlerOption) http.Handler {
	base := []connect.HandlerOption{connect.WithInterceptors(s.requestInterceptor())}
	if s.cfg.MaxRequestBytes > 0 {
		base = append(base, connect.WithReadMaxBytes(int(s.cfg.MaxRequestBytes)))
	}
	opts = append(base, opts...)

	mux := http.NewServeMux()
	mux.Handle(ListGraphsProcedure, connect.NewUnaryHandler(ListGraphsProcedure, s.ListGraphs, opts...))
	mux.Handle(DescribeGraphProcedure, connect.NewUnaryHandler(DescribeGraphProcedure, s.DescribeGraph, opts...))
	mux.Handle(RunGraphProcedure, connect.NewUnaryHandler(RunGraphProcedure, s.RunGraph, opts...))
	mux.Handle(GetRunProcedure, connect.NewUnaryHandler(GetRunProcedure, s.GetRun, opts...))
	mux.Handle(ListRunsProcedure, connect.NewUnaryHandler(ListRunsProcedure, s.ListRuns, opts...))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Service) requestInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			data := map[string]any{
				"procedure": req.Spec().Procedure,
				"duration":  time.Since(start).String(),
			}
			level := observability.LevelVerbose
			if err != nil {
				level = observability.LevelWarning
				data["code"] = connect.CodeOf(err).String()
				data["error"] = err.Error()
			}
			observability.Emit(ctx, s.observer, EventRequest, level, "server.Handler", data)
			return res, err
		}
	}
}

// Serve listens on the configured address until ctx is cancelled, then
// drains in-flight requests for up to ShutdownTimeout.
func (s *Service) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Service) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	observability.Emit(ctx, s.observer, EventServe, observability.LevelInfo, "server.Serve", map[string]any{
		"addr":   ln.Addr().String(),
		"graphs": len(s.entries()),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout.Std())
	defer cancel()

	observability.Emit(shutdownCtx, s.observer, EventShutdown, observability.LevelInfo, "server.Serve", map[string]any{
		"timeout": s.cfg.ShutdownTimeout.Std().String(),
	})

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
