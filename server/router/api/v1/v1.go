package v1

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	pkgerrors "github.com/pkg/errors"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/server/internal/errors"
	"github.com/hrygo/timetable/server/internal/observability"
	timetablemw "github.com/hrygo/timetable/server/middleware"
	"github.com/hrygo/timetable/server/service/timetable"
	"github.com/hrygo/timetable/store"
)

// APIV1Service serves the timetable JSON API.
type APIV1Service struct {
	Profile          *profile.Profile
	TimetableService *timetable.Service

	validate *validator.Validate
	metrics  *observability.Metrics
	limiter  *timetablemw.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, service *timetable.Service) *APIV1Service {
	return &APIV1Service{
		Profile:          profile,
		TimetableService: service,
		validate:         newValidator(),
		metrics:          observability.GlobalMetrics(),
		limiter:          timetablemw.NewRateLimiter(profile.APIRateLimit, 0),
	}
}

// RegisterRoutes mounts the API on the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1/timetable",
		middleware.CORS(),
		timetablemw.RateLimit(s.limiter),
	)

	g.POST("/check", s.handle("check", s.CheckCandidate))
	g.POST("/suggest", s.handle("suggest", s.SuggestSlots))
	g.POST("/precheck", s.handle("precheck", s.PrecheckCandidate))
	g.POST("/precheck/batch", s.handle("precheck_batch", s.PrecheckBatch))
	g.GET("/snapshot", s.handle("snapshot", s.GetSnapshot))
	g.POST("/schedules", s.handle("commit", s.CommitSchedule))
	g.DELETE("/schedules/:id", s.handle("delete", s.DeleteSchedule))
	g.GET("/metrics", s.GetMetrics)
}

// handle records metrics for the operation and renders any returned error.
func (s *APIV1Service) handle(operation string, fn echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if reqCtx, ok := observability.FromContext(c.Request().Context()); ok {
			reqCtx.Operation = operation
		}
		start := time.Now()
		err := fn(c)
		// A rejected candidate is an answer, not a failed request.
		failed := err != nil && !errors.IsCode(err, errors.ErrCodeScheduleConflict)
		s.metrics.RecordRequest(operation, time.Since(start), failed)
		if err != nil {
			return s.writeError(c, err)
		}
		return nil
	}
}

func (s *APIV1Service) writeError(c echo.Context, err error) error {
	apiErr := toAPIError(err)
	logger := observability.LoggerFromContext(c.Request().Context())
	if apiErr.HTTPStatus() >= http.StatusInternalServerError {
		logger.Error("timetable request failed",
			slog.String(observability.LogFieldErrorCode, string(apiErr.Code)),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Debug("timetable request rejected",
			slog.String(observability.LogFieldErrorCode, string(apiErr.Code)),
			slog.String("error", err.Error()),
		)
	}
	return c.JSON(apiErr.HTTPStatus(), apiErr)
}

func toAPIError(err error) *errors.APIError {
	var apiErr *errors.APIError
	if pkgerrors.As(err, &apiErr) {
		return apiErr
	}
	var httpErr *echo.HTTPError
	if pkgerrors.As(err, &httpErr) {
		if httpErr.Code == http.StatusNotFound {
			return errors.NotFound(http.StatusText(httpErr.Code))
		}
		return errors.Wrap(err, errors.ErrCodeInvalidArgument, "malformed request body")
	}
	switch {
	case pkgerrors.Is(err, timetable.ErrInvalidCandidate):
		return errors.Wrap(err, errors.ErrCodeInvalidArgument, err.Error())
	case pkgerrors.Is(err, store.ErrNotFound):
		return errors.NotFound(err.Error())
	case pkgerrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.ErrCodeInternal, "request canceled")
	default:
		return errors.UpstreamUnavailable("schedule backend unavailable", err)
	}
}

// GetMetrics returns the per-operation request counters.
// GET /api/v1/timetable/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	snap := s.metrics.Snapshot()
	return c.JSON(http.StatusOK, map[string]any{
		"request_total":   snap.RequestTotal,
		"request_failed":  snap.RequestFailed,
		"rejected":        snap.Rejected,
		"success_rate":    snap.SuccessRate(),
		"operations":      snap.Operations,
		"tracked_clients": s.limiter.Clients(),
	})
}

// Close releases the per-client rate limit state.
func (s *APIV1Service) Close() {
	s.limiter.Close()
}
