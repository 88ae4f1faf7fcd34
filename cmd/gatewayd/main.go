// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is gatewayd: a request-filtering security gateway that
// Envoy (or any front proxy speaking the ext_proc protocol) calls out to
// per request. It loads a route table of WASM detection plugins, fans a
// request out to the plugins a route names, fuses their verdicts, and
// tells the proxy whether to forward or block.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"sentryproc/internal/telemetry"
	"sentryproc/pkg/orchestrator"
	"sentryproc/pkg/plugin"
	"sentryproc/pkg/router"
	"sentryproc/pkg/state"
)

func main() {
	grpcAddr := flag.String("grpc", ":9901", "ext_proc gRPC listen address")
	metricsAddr := flag.String("metrics_addr", ":9902", "Prometheus /metrics listen address")
	redisAddr := flag.String("redis_addr", "127.0.0.1:6379", "Redis address backing the remote-state client")
	routesPath := flag.String("routes", "routes.json", "Path to the JSON route table")
	threshold := flag.Float64("threshold", orchestrator.DefaultThreshold, "Restrict-mass cutoff at or above which a request is blocked")
	proxyHops := flag.Int("proxy_hops", 1, "Number of trusted proxy hops reported to plugins")
	devLogs := flag.Bool("dev_logs", false, "Use zap's human-readable development encoder instead of JSON")
	flag.Parse()

	logger, err := newLogger(*devLogs)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	loader, err := plugin.NewLoader(ctx, uint8(*proxyHops))
	if err != nil {
		logger.Fatal("create plugin loader", zap.Error(err))
	}
	defer loader.Close(ctx)

	rt := router.New[*orchestrator.Route]()
	if err := loadRoutes(ctx, *routesPath, loader, rt); err != nil {
		logger.Fatal("load route table", zap.Error(err))
	}

	stateClient := state.New(state.NewRedisBackend(redis.NewClient(&redis.Options{Addr: *redisAddr})), nil)

	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	app := &orchestrator.AppContext{
		Router:    rt,
		State:     stateClient,
		Logger:    logger,
		Metrics:   metrics,
		HTTPDoer:  ctxHTTPClient{http.DefaultClient},
		Threshold: *threshold,
	}
	service := orchestrator.NewService(app)

	metricsServer := &http.Server{Addr: *metricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", *metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", *grpcAddr), zap.Error(err))
	}
	grpcServer := grpc.NewServer(orchestrator.ServerOptions()...)
	orchestrator.RegisterExternalProcessor(grpcServer, service)

	go func() {
		logger.Info("ext_proc gRPC server listening", zap.String("addr", *grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	logger.Info("gateway stopped")
}

// ctxHTTPClient adapts *http.Client onto sandbox.HTTPDoer, attaching ctx to
// the outbound request rather than threading it through a second argument
// http.Client itself doesn't accept.
type ctxHTTPClient struct {
	client *http.Client
}

func (c ctxHTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(ctx))
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadRoutes reads the route table at path, compiles every plugin it names,
// and inserts the resulting routes into rt. A conflicting pattern or a
// plugin load failure is fatal at startup, per spec.
func loadRoutes(ctx context.Context, path string, loader *plugin.Loader, rt *router.Router[*orchestrator.Route]) error {
	configs, err := loadRouteConfigs(path)
	if err != nil {
		return err
	}
	for _, rc := range configs {
		timeout, err := rc.timeout()
		if err != nil {
			return err
		}
		descriptors := make([]*plugin.Descriptor, 0, len(rc.Plugins))
		for _, pc := range rc.Plugins {
			moduleBytes, err := os.ReadFile(pc.WASMPath)
			if err != nil {
				return fmt.Errorf("route %q: read plugin %q: %w", rc.Pattern, pc.ReferenceName, err)
			}
			guestConfig, err := pc.toGuestConfig()
			if err != nil {
				return err
			}
			desc, err := loader.Load(ctx, pc.ReferenceName, moduleBytes, guestConfig, pc.Permissions.toSandbox())
			if err != nil {
				return fmt.Errorf("route %q: %w", rc.Pattern, err)
			}
			descriptors = append(descriptors, desc)
		}
		route := &orchestrator.Route{Pattern: rc.Pattern, Plugins: descriptors, Timeout: timeout}
		if err := rt.Insert(rc.Pattern, route); err != nil {
			return fmt.Errorf("insert route %q: %w", rc.Pattern, err)
		}
	}
	return nil
}
