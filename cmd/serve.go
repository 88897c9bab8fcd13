package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-autonomax/app/auth"
	"github.com/vibast-solutions/ms-go-autonomax/app/controller"
	grpcserver "github.com/vibast-solutions/ms-go-autonomax/app/grpc"
	"github.com/vibast-solutions/ms-go-autonomax/app/metrics"
	"github.com/vibast-solutions/ms-go-autonomax/app/middleware"
	"github.com/vibast-solutions/ms-go-autonomax/app/preparer"
	"github.com/vibast-solutions/ms-go-autonomax/app/repository"
	"github.com/vibast-solutions/ms-go-autonomax/app/service"
	"github.com/vibast-solutions/ms-go-autonomax/config"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the AutonomaX API. Run `migrate up` first.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// httpHandlers groups what setupHTTPServer mounts.
type httpHandlers struct {
	auth     *controller.AuthController
	ops      *controller.OpsController
	health   *controller.HealthController
	admin    *middleware.EchoAdminKeyMiddleware
	bearer   *middleware.EchoBearerMiddleware
	gatherer prometheus.Gatherer
}

// runServe wires dependencies and starts HTTP and gRPC servers.
func runServe(_ *cobra.Command, _ []string) error {
	d := loadDeps()
	defer d.Close()
	cfg, logger := d.cfg, d.logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(cfg)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	if err := d.openStores(ctx); err != nil {
		return err
	}

	if cfg.AdminSecretKey == "" {
		logger.Warn("ADMIN_SECRET_KEY is empty; ops endpoints will answer 500")
	}

	registry := metrics.NewRegistry()
	opsMetrics := metrics.NewOpsLock()
	opsMetrics.Register(registry)

	emailProvider, err := buildEmailProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("build email provider: %w", err)
	}

	opsService := d.opsService(opsMetrics)
	accountService := service.NewAccountService(
		repository.NewUserRepository(d.db, d.dialect),
		auth.NewTokenIssuer(cfg.SecuritySecretKey, cfg.AccessTokenTTL),
		preparer.NewWelcomeChain(cfg.SESSourceEmail),
		emailProvider,
		logger,
	)

	e := setupHTTPServer(cfg, logger, httpHandlers{
		auth:     controller.NewAuthController(accountService, logger),
		ops:      controller.NewOpsController(opsService, logger),
		health:   controller.NewHealthController(d.db),
		admin:    middleware.NewEchoAdminKeyMiddleware(cfg.AdminSecretKey),
		bearer:   middleware.NewEchoBearerMiddleware(accountService),
		gatherer: registry,
	})
	grpcServer := setupGRPCServer(cfg, grpcserver.NewServer(opsService, logger))

	grpcAddr := net.JoinHostPort(cfg.GRPCHost, cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
		logger.Infof("Starting HTTP server on %s", httpAddr)
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Starting gRPC server on %s", lis.Addr())
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP shutdown")
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// setupHTTPServer configures the Echo HTTP server and routes.
func setupHTTPServer(cfg *config.Config, logger logrus.FieldLogger, h httpHandlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, middleware.HeaderAdminKey},
	}))

	e.GET("/healthz", h.health.Live)
	e.GET("/readyz", h.health.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.POST("/auth/register", h.auth.Register)
	api.POST("/auth/login", h.auth.Login)
	api.GET("/me", h.auth.Me, h.bearer.RequireUser)

	ops := api.Group("/ops", h.admin.RequireAdmin)
	ops.POST("/run", h.ops.Run)
	ops.POST("/run/ledger-monitor", h.ops.RunFixed(service.TaskLedgerMonitor))
	ops.POST("/run/shopier-verify", h.ops.RunFixed(service.TaskShopierVerify))
	ops.GET("/locks", h.ops.Locks)

	return e
}

// setupGRPCServer builds the gRPC server with the admin key interceptor.
func setupGRPCServer(cfg *config.Config, opsServer *grpcserver.Server) *grpc.Server {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.AdminKeyInterceptor(cfg.AdminSecretKey)))
	grpcserver.RegisterOpsServiceServer(grpcServer, opsServer)
	return grpcServer
}
