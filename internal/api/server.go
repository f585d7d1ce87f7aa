// internal/api/server.go
package api

import (
	"context"

	"career-predictor/internal/common/config"
	"career-predictor/internal/common/logger"
	"career-predictor/internal/common/validation"
	"career-predictor/internal/models"
	"career-predictor/internal/predictor"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the prediction backend served over HTTP.
type Service interface {
	Predict(ctx context.Context, source string, in models.CareerProfile) (*models.PredictionOutput, error)
	PredictBatch(ctx context.Context, source string, ins []models.CareerProfile) (*models.BatchOutput, error)
	Ready(ctx context.Context) error
	Info() predictor.Info
}

type Server struct {
	app          *fiber.App
	service      Service
	validator    *validation.Validator
	config       config.ServerConfig
	maxBatchSize int
	logger       logger.Logger
}

// NewServer builds the fiber app and registers every route.
func NewServer(cfg config.ServerConfig, maxBatchSize int, service Service, log logger.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "career-predictor",
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
		BodyLimit:    cfg.BodyLimit,
	})

	s := &Server{
		app:          app,
		service:      service,
		validator:    validation.MustValidator(models.CareerProfileSchema),
		config:       cfg,
		maxBatchSize: maxBatchSize,
		logger:       log.WithFields(map[string]interface{}{"component": "api"}),
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

func (s *Server) registerMiddleware() {
	s.app.Use(accessLog(s.logger))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.CORSOrigins,
		AllowCredentials: s.config.CORSCredentials,
		AllowMethods: []string{
			fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch,
			fiber.MethodDelete, fiber.MethodHead, fiber.MethodOptions,
		},
		ExposeHeaders: []string{HeaderRequestID},
	}))
	s.app.Use(errorHandler(s.logger))
}

func (s *Server) registerRoutes() {
	s.app.Post("/predict", s.handlePredict)
	if s.config.EnableBatchRoute {
		s.app.Post("/predict/batch", s.handlePredictBatch)
	}
	s.app.Get("/favicon.ico", s.handleFavicon)
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/ready", s.handleReady)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	if s.config.ExposeModelInfo {
		s.app.Get("/model", s.handleModel)
	}
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
