package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/david/bill-finder/internal/auth"
	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/logger"
	"github.com/david/bill-finder/internal/metrics"
	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/saved"
	"github.com/david/bill-finder/internal/search"
	"github.com/david/bill-finder/internal/session"
	"github.com/david/bill-finder/internal/settings"
	"github.com/david/bill-finder/internal/workspace"
)

type Server struct {
	Echo       *echo.Echo
	Workspaces *workspace.Manager
	Details    workspace.Details
	log        *zap.Logger
}

type Options struct {
	JWTSecret string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

func NewServer(mgr *workspace.Manager, details workspace.Details, opts Options, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Echo:       e,
		Workspaces: mgr,
		Details:    details,
		log:        logger.OrNop(log),
	}
	s.routes(opts)
	return s
}

func (s *Server) routes(opts Options) {
	s.Echo.GET("/health", s.handleHealth)
	if opts.Gatherer != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(metrics.Handler(opts.Gatherer)))
	}

	api := s.Echo.Group("/api/v1")
	api.Use(auth.Middleware(opts.JWTSecret))

	api.POST("/search", s.handleSearch)
	api.POST("/search/more", s.handleLoadMore)
	api.GET("/search", s.handleGetSession)
	api.DELETE("/search", s.handleResetSession)

	api.GET("/saved", s.handleListSaved)
	api.POST("/saved", s.handleSaveBill)
	api.GET("/saved/:number", s.handleIsSaved)
	api.DELETE("/saved/:number", s.handleUnsaveBill)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handlePutSettings)

	api.GET("/status", s.handleServiceStatus)
	api.GET("/bills/:number/detail", s.handleBillDetail)
	api.GET("/bills/:number/progression", s.handleBillProgression)
	api.GET("/bills/:number/heatmap", s.handleBillHeatmap)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) workspace(c echo.Context) (*workspace.Workspace, error) {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return s.Workspaces.Get(c.Request().Context(), userID), nil
}

// Search

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Added     []models.Bill   `json:"added"`
	AutoSaved int             `json:"autoSaved"`
	Session   session.Session `json:"session"`
}

func (s *Server) handleSearch(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
	}

	res, err := ws.Session.Search(c.Request().Context(), req.Query)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, searchResponse{Added: nonNil(res.Added), AutoSaved: res.AutoSaved, Session: ws.Session.Snapshot()})
}

func (s *Server) handleLoadMore(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	res, err := ws.Session.LoadMore(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, searchResponse{Added: nonNil(res.Added), AutoSaved: res.AutoSaved, Session: ws.Session.Snapshot()})
}

func (s *Server) handleGetSession(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	snap := ws.Session.Snapshot()
	snap.Bills = nonNil(ws.Session.Sorted(ingest.ParseSortMode(c.QueryParam("sort"))))
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleResetSession(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	ws.Session.Reset()
	return c.NoContent(http.StatusNoContent)
}

// Saved bills

func (s *Server) handleListSaved(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	bills, _ := ws.Saved.ListAll()
	if bills == nil {
		bills = []models.SavedBill{}
	}
	return c.JSON(http.StatusOK, map[string]any{"bills": bills, "count": len(bills)})
}

func (s *Server) handleSaveBill(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	var bill models.Bill
	if err := c.Bind(&bill); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
	}
	if strings.TrimSpace(bill.Number) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Bill number is required"})
	}
	ingest.NormalizeBill(&bill)

	ok, err := ws.Saved.Save(c.Request().Context(), bill)
	if err != nil {
		return s.writeError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"saved": false, "message": "Bill already saved"})
	}
	return c.JSON(http.StatusCreated, map[string]any{"saved": true, "count": ws.Saved.Count()})
}

func (s *Server) handleIsSaved(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"saved": ws.Saved.IsSaved(billParam(c))})
}

func (s *Server) handleUnsaveBill(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	ws.Saved.Remove(c.Request().Context(), billParam(c))
	return c.JSON(http.StatusOK, map[string]string{"status": "unsaved"})
}

// Settings

func (s *Server) handleGetSettings(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws.Settings.Current())
}

func (s *Server) handlePutSettings(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	var next models.UserSettings
	if err := c.Bind(&next); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
	}
	if err := ws.Settings.Save(c.Request().Context(), next); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, ws.Settings.Current())
}

// Auxiliary lookups

func (s *Server) handleServiceStatus(c echo.Context) error {
	if s.Details == nil {
		return c.JSON(http.StatusOK, map[string]any{"healthy": true, "modelsReady": true, "message": "LLM backend"})
	}
	st, err := s.Details.Status(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"healthy": st.Healthy, "modelsReady": st.ModelsReady, "message": st.Message})
}

func (s *Server) handleBillDetail(c echo.Context) error {
	if s.Details == nil {
		return notSupported(c)
	}
	detail, err := s.Details.Detail(c.Request().Context(), billParam(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handleBillProgression(c echo.Context) error {
	if s.Details == nil {
		return notSupported(c)
	}
	events, err := s.Details.Progression(c.Request().Context(), billParam(c))
	if err != nil {
		return s.writeError(c, err)
	}
	if events == nil {
		events = []models.TimelineEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleBillHeatmap(c echo.Context) error {
	if s.Details == nil {
		return notSupported(c)
	}
	hm, err := s.Details.Heatmap(c.Request().Context(), billParam(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, hm)
}

func notSupported(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]string{"error": "Bill lookups require the structured search service"})
}

func billParam(c echo.Context) string {
	raw := c.Param("number")
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}

func nonNil(bills []models.Bill) []models.Bill {
	if bills == nil {
		return []models.Bill{}
	}
	return bills
}

// writeError maps domain errors onto status codes with an {error} body.
func (s *Server) writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var svcErr *search.ServiceError
	switch {
	case errors.Is(err, session.ErrEmptyQuery), errors.Is(err, settings.ErrInvalidSettings), errors.Is(err, saved.ErrMissingNumber):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrStale):
		status = http.StatusConflict
	case errors.Is(err, search.ErrNoResults):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, session.ErrLoadMoreFailed), errors.As(err, &svcErr):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
