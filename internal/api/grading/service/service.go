package gradingService

import (
	"KneeGrader/internal/api/grading"
	gradingRepository "KneeGrader/internal/api/grading/repository"
	"KneeGrader/internal/entity"
	"KneeGrader/pkg/jointspace"
	"KneeGrader/pkg/redis"
	"KneeGrader/pkg/storage"
	"KneeGrader/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

// IAnalyzer turns encoded image bytes into the contour shapes of its edge map.
type IAnalyzer interface {
	Analyze(buf []byte) ([]jointspace.Shape, error)
}

type IGradingService interface {
	Grade(ctx context.Context, upload grading.Upload) (*grading.GradeResponse, error)
	GetAnalysis(ctx context.Context, id string) (entity.Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]entity.Analysis, error)
}

type gradingService struct {
	log               *logrus.Logger
	analyzer          IAnalyzer
	storage           storage.IStorage
	gradingRepository gradingRepository.Repository
	cache             redis.IRedis
	utils             utils.IUtils
	cacheTTL          time.Duration
}

// NewGradingService wires the grading pipeline. repo and cache may be nil:
// without a repository nothing is recorded, without a cache every upload
// runs the pipeline.
func NewGradingService(
	log *logrus.Logger,
	analyzer IAnalyzer,
	storage storage.IStorage,
	repo gradingRepository.Repository,
	cache redis.IRedis,
	utils utils.IUtils,
	cacheTTL time.Duration,
) IGradingService {
	return &gradingService{
		log:               log,
		analyzer:          analyzer,
		storage:           storage,
		gradingRepository: repo,
		cache:             cache,
		utils:             utils,
		cacheTTL:          cacheTTL,
	}
}
