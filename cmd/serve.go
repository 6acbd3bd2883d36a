package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/auth"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/controller"
	paymentgrpc "github.com/vibast-solutions/ms-go-wellness-payments/app/grpc"
	"github.com/vibast-solutions/ms-go-wellness-payments/config"
	"google.golang.org/grpc"
)

const (
	shutdownTimeout       = 10 * time.Second
	healthRefreshInterval = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) API, the gRPC health endpoint and the payment monitors.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app := mustCreateApplication()
	defer app.cleanup()
	cfg := app.cfg

	paymentController := controller.NewPaymentController(app.paymentService, app.reconciler, app.webhookService)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	if cfg.Auth.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is empty, every user request will be rejected")
	}
	userAuth := auth.RequireUser(auth.NewJWTVerifier(cfg.Auth.JWTSecret))

	e := setupHTTPServer(paymentController, userAuth, echoInternalAuthMiddleware, cfg.App.ServiceName)

	healthServer := paymentgrpc.NewServer(app.db)
	grpcSrv, lis := setupGRPCServer(cfg, healthServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	if cfg.Payments.ResumeMonitoring {
		resumed, err := app.reconciler.ResumeMonitoring(context.Background())
		if err != nil {
			logrus.WithError(err).Warn("Failed to resume payment monitors")
		} else {
			logrus.WithField("resumed", resumed).Info("Payment monitors resumed")
		}
	}

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go runHealthRefresh(refreshCtx, healthServer)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	stopRefresh()
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	if err := app.reconciler.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Payment monitors did not stop in time")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	paymentController *controller.PaymentController,
	userAuth echo.MiddlewareFunc,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", paymentController.Health)

	payments := e.Group("/payments")
	payments.POST("/create", paymentController.CreatePayment, userAuth)
	payments.POST("/direct", paymentController.CreateDirectPayment, userAuth)
	payments.POST("/webhook", paymentController.HandleWebhook)
	payments.GET("/status/:paymentId", paymentController.GetPaymentStatus, userAuth)
	payments.PUT("/status/:paymentId", paymentController.UpdatePaymentStatus, internalAuthMiddleware.RequireInternalAccess(appServiceName))

	subscriptions := e.Group("/subscriptions", userAuth)
	subscriptions.GET("/details", paymentController.GetSubscriptionDetails)
	subscriptions.GET("/history", paymentController.GetSubscriptionHistory)

	return e
}

func setupGRPCServer(
	cfg *config.Config,
	healthServer *paymentgrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			paymentgrpc.RecoveryInterceptor(),
			paymentgrpc.ExceptMethods(paymentgrpc.RequestIDInterceptor(), paymentgrpc.HealthMethodPrefix),
			paymentgrpc.LoggingInterceptor(),
			paymentgrpc.ExceptMethods(internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName), paymentgrpc.HealthMethodPrefix),
		),
	)
	healthServer.Register(grpcSrv)
	healthServer.Refresh(context.Background())

	return grpcSrv, lis
}

func runHealthRefresh(ctx context.Context, healthServer *paymentgrpc.Server) {
	ticker := time.NewTicker(healthRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			healthServer.Refresh(ctx)
		}
	}
}
