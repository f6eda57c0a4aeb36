package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/FlowNice/job-application-agent/internal/model"
	"github.com/FlowNice/job-application-agent/internal/pipeline"
)

const shutdownTimeout = 5 * time.Second

// Server is the operator HTTP API over the lead store.
type Server struct {
	app      *fiber.App
	store    model.LeadStore
	tracker  *pipeline.Tracker
	validate *validator.Validate
	logger   *slog.Logger
}

// NewServer builds the fiber app and registers routes. Every /api route
// requires an HS256 bearer token signed with jwtSecret.
func NewServer(store model.LeadStore, tracker *pipeline.Tracker, jwtSecret string, logger *slog.Logger) *Server {
	s := &Server{
		store:    store,
		tracker:  tracker,
		validate: validator.New(),
		logger:   logger,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "talentflow",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Get("/healthz", s.health)

	api := s.app.Group("/api", requireAuth([]byte(jwtSecret)))
	api.Get("/leads", s.listLeads)
	api.Get("/leads/vacancy/:vacancyID", s.getLeadByVacancy)
	api.Get("/leads/:id", s.getLead)
	api.Patch("/leads/:id/status", s.updateStatus)
	api.Delete("/leads/:id", s.deleteLead)

	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("operator api listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down operator api")
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

// errorHandler maps domain errors to status codes and keeps messages sanitized.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(map[string]string, len(ve))
		for _, f := range ve {
			out[f.Field()] = f.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	var te *model.TransitionError
	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "lead not found"})
	case errors.As(err, &te):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "illegal status transition",
			"from":    string(te.From),
			"to":      string(te.To),
			"allowed": te.From.Next(),
		})
	case errors.Is(err, model.ErrUnknownStatus):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "unknown status",
			"allowed": model.AllStatuses,
		})
	}

	s.logger.Error("api request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal server error"})
}
