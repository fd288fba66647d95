package config

import (
	"KneeGrader/database/postgres"
	gradingHandler "KneeGrader/internal/api/grading/handler"
	gradingRepository "KneeGrader/internal/api/grading/repository"
	gradingService "KneeGrader/internal/api/grading/service"
	"KneeGrader/internal/middleware"
	"KneeGrader/pkg/redis"
	"KneeGrader/pkg/s3"
	"KneeGrader/pkg/segmenter"
	"KneeGrader/pkg/storage"
	"KneeGrader/pkg/utils"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"time"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	env         *Env
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	redisServer redis.IRedis
	storage     storage.IStorage
	analyzer    gradingService.IAnalyzer
	segmenter   *segmenter.Segmenter
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if server.analyzer == nil {
		return nil, fmt.Errorf("image analyzer is required")
	}
	if server.storage == nil {
		return nil, fmt.Errorf("upload storage is required")
	}

	return server, nil
}

func WithEnv(env *Env) ServerOption {
	return func(s *Server) error {
		s.env = env
		return nil
	}
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithAnalyzer(analyzer gradingService.IAnalyzer) ServerOption {
	return func(s *Server) error {
		s.analyzer = analyzer
		return nil
	}
}

// WithDatabase connects to Postgres when DB_HOST is set. Without it the
// service runs and analysis history is reported as unavailable.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		if s.env == nil || s.env.DBHost == "" {
			if s.log != nil {
				s.log.Info("DB_HOST not set, analysis history disabled")
			}
			return nil
		}

		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithStorage() ServerOption {
	return func(s *Server) error {
		if s.env == nil {
			return fmt.Errorf("environment must be set before storage")
		}

		var (
			st  storage.IStorage
			err error
		)
		switch s.env.StorageDriver {
		case "s3":
			st, err = s3.New(s3.ConfigFromEnv())
		default:
			st, err = storage.NewLocal(s.env.UploadDir)
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize %s storage: %v", s.env.StorageDriver, err)
			}
			return fmt.Errorf("failed to create upload storage: %w", err)
		}

		s.storage = st
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		uploadRate, uploadBurst := rate.Limit(5), 10
		if s.env != nil {
			uploadRate, uploadBurst = rate.Limit(s.env.UploadRate), s.env.UploadBurst
		}
		s.middleware = middleware.New(s.log, uploadRate, uploadBurst)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		var maxBytes int64
		if s.env != nil {
			maxBytes = s.env.UploadMaxBytes
		}
		s.utils = utils.New(maxBytes)
		return nil
	}
}

// WithSegmenter runs the FastSAM startup check. Its result is only logged.
func WithSegmenter() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.env == nil {
			return fmt.Errorf("logger and environment must be set before segmenter")
		}
		s.segmenter = segmenter.Load(s.env.FastSAMModelPath, s.log)
		return nil
	}
}

func (s *Server) RegisterHandler() {
	s.engine.Use(cors.New())
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	var repo gradingRepository.Repository
	if s.db != nil {
		repo = gradingRepository.New(s.db, s.log)
	}

	// Grading
	gradingServices := gradingService.NewGradingService(s.log, s.analyzer, s.storage, repo, s.redisServer, s.utils, s.env.CacheTTL)
	gradingHandlers := gradingHandler.New(s.log, s.validator, s.middleware, gradingServices, s.utils, s.env.ProcessingTimeout)

	s.setupHealthCheck()
	gradingHandlers.StartLegacy(s.engine)
	s.handlers = append(s.handlers, gradingHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	return s.engine.Listen(fmt.Sprintf(":%s", s.env.AppPort))
}

func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)

	if s.db != nil {
		if dbErr := s.db.Close(); dbErr != nil {
			s.log.Errorf("Failed to close database: %v", dbErr)
		}
	}
	if s.redisServer != nil {
		if redisErr := s.redisServer.Close(); redisErr != nil {
			s.log.Errorf("Failed to close redis: %v", redisErr)
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":      "Server is Healthy!",
			"model_loaded": s.segmenter.Loaded(),
		})
	})
}
