package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/controller"
	"github.com/rryowa/tubeauth/internal/service"
	"github.com/rryowa/tubeauth/internal/util"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	usersBasePath          = "/api/v1/users"
)

type API struct {
	server          *echo.Echo
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
	cleanupFuncs    []func()
}

// NewAPI builds the echo server and mounts every route. cleanupFuncs run
// after the server has shut down.
func NewAPI(
	c *controller.Controller,
	authService *service.AuthService,
	gatherer prometheus.Gatherer,
	sc *util.ServerConfig,
	l *zap.SugaredLogger,
	cleanupFuncs []func(),
) (*API, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	swagger, err := controller.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI specification: %w", err)
	}
	swagger.Servers = nil

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(l)))

	e.GET("/api/ping", c.CheckServer)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	/* Валидатор сверяет запрос с встроенным OpenAPI документом
	до того, как он попадет в обработчики контроллера.
	*/
	users := e.Group(usersBasePath)
	users.Use(middleware.OapiRequestValidator(swagger))
	controller.RegisterHandlers(users, c, AuthMiddleware(authService))

	timeout := sc.GracefulTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return &API{
		server:          e,
		log:             l,
		gracefulTimeout: timeout,
		cleanupFuncs:    cleanupFuncs,
	}, nil
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.ListenGracefulShutdown(ctx)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Errorf("shutdown: %v", err)
	} else {
		a.log.Info("server shutdown completed")
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}
