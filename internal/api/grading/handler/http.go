package gradingHandler

import (
	gradingService "KneeGrader/internal/api/grading/service"
	"KneeGrader/internal/middleware"
	"KneeGrader/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"time"
)

type GradingHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	gradingService gradingService.IGradingService
	utils          utils.IUtils
	timeout        time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	gs gradingService.IGradingService,
	utils utils.IUtils,
	timeout time.Duration,
) *GradingHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GradingHandler{
		log:            log,
		validator:      validator,
		middleware:     middleware,
		gradingService: gs,
		utils:          utils,
		timeout:        timeout,
	}
}

func (h *GradingHandler) Start(srv fiber.Router) {
	grading := srv.Group("/grading")
	grading.Post("/upload", h.middleware.NewRateLimiter, h.Upload)

	analyses := srv.Group("/analyses")
	analyses.Get("", h.ListAnalyses)
	analyses.Get("/:id", h.GetAnalysis)
}

// StartLegacy mounts the bare POST /upload route browser clients post to.
func (h *GradingHandler) StartLegacy(app fiber.Router) {
	app.Post("/upload", h.middleware.NewRateLimiter, h.Upload)
}
