package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/timetable/internal/profile"
	timetablemw "github.com/hrygo/timetable/server/middleware"
	apiv1 "github.com/hrygo/timetable/server/router/api/v1"
	"github.com/hrygo/timetable/server/service/timetable"
	"github.com/hrygo/timetable/store"
)

// Server hosts the timetable HTTP API.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer   *echo.Echo
	apiV1Service *apiv1.APIV1Service
	listener     net.Listener
}

// NewServer wires the timetable service and API routes onto a new Echo instance.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(timetablemw.RequestContext(slog.Default()))
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	service, err := timetable.NewServiceFromProfile(store, profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create timetable service")
	}
	cfg := service.Config()
	slog.Info("timetable window",
		"work_start", timetable.FormatClock(cfg.WorkStart),
		"work_end", timetable.FormatClock(cfg.WorkEnd),
		"lunch_start", timetable.FormatClock(cfg.LunchStart),
		"lunch_end", timetable.FormatClock(cfg.LunchEnd),
		"lunch_rule", cfg.LunchRule,
	)

	s.apiV1Service = apiv1.NewAPIV1Service(profile, service)
	s.apiV1Service.RegisterRoutes(echoServer)

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the profile address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.listener = listener

	go func() {
		s.echoServer.Listener = listener
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	slog.Info("timetable server started", "address", listener.Addr().String(), "mode", s.Profile.Mode, "driver", s.Profile.Driver)
	return nil
}

// Shutdown stops accepting requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	s.apiV1Service.Close()
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.String("error", err.Error()))
	}
	slog.Info("timetable stopped properly")
}
