package gradingService

import (
	"KneeGrader/internal/api/grading"
	"KneeGrader/internal/entity"
	contextPkg "KneeGrader/pkg/context"
	"KneeGrader/pkg/jointspace"
	"KneeGrader/pkg/log"
	"KneeGrader/pkg/response"
	"errors"
	"golang.org/x/net/context"
	"net/http"
	"time"
)

const (
	cacheKeyPrefix      = "knee:analysis:"
	defaultHistoryLimit = 20
)

func (s *gradingService) Grade(ctx context.Context, upload grading.Upload) (*grading.GradeResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return nil, response.Wrap(http.StatusInternalServerError, "generate analysis id", err)
	}

	fileKey := id + "-" + s.utils.SecureFilename(upload.Filename)
	location, err := s.storage.Save(ctx, fileKey, upload.Data)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"file_key":   fileKey,
			"error":      err.Error(),
		}).Error("Failed to store upload")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, grading.ErrStoreUpload
	}

	s.log.WithFields(log.Fields{
		"request_id": requestID,
		"location":   location,
		"size":       len(upload.Data),
	}).Debug("Upload stored")

	analysis := entity.Analysis{
		ID:           id,
		RequestID:    requestID,
		FileKey:      location,
		OriginalName: upload.Filename,
		SHA256:       s.utils.SHA256Hex(upload.Data),
	}

	// A cache hit skips the pipeline, but the upload is still its own analysis.
	if cached, ok := s.lookupCache(ctx, analysis.SHA256); ok {
		cached.AnalysisID = ""
		if s.record(ctx, withResult(analysis, cached)) {
			cached.AnalysisID = id
		}
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shapes, err := s.analyzer.Analyze(upload.Data)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"file_key":   fileKey,
			"error":      err.Error(),
		}).Warn("Image processing failed")
		return nil, grading.NewProcessingError(err)
	}

	widths := jointspace.Measure(shapes)
	grade := jointspace.Classify(widths)

	s.log.WithFields(log.Fields{
		"request_id": requestID,
		"contours":   len(shapes),
		"widths":     widths,
		"grade":      grade,
	}).Debug("Joint space measured")

	result := &grading.GradeResponse{
		Classification:        grade,
		JointSpaceWidths:      widths,
		InsufficientStructure: widths.Insufficient(),
	}

	if s.record(ctx, withResult(analysis, result)) {
		result.AnalysisID = id
	}

	s.storeCache(ctx, analysis.SHA256, result)

	return result, nil
}

func withResult(analysis entity.Analysis, result *grading.GradeResponse) entity.Analysis {
	analysis.WidthA = result.JointSpaceWidths[0]
	analysis.WidthB = result.JointSpaceWidths[1]
	analysis.Classification = string(result.Classification)
	analysis.InsufficientStructure = result.InsufficientStructure
	analysis.CreatedAt = time.Now().UTC()
	return analysis
}

func (s *gradingService) lookupCache(ctx context.Context, digest string) (*grading.GradeResponse, bool) {
	if s.cache == nil {
		return nil, false
	}

	var cached grading.GradeResponse
	hit, err := s.cache.GetJSON(ctx, cacheKeyPrefix+digest, &cached)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Result cache lookup failed")
		return nil, false
	}
	if !hit {
		return nil, false
	}

	cached.Cached = true
	return &cached, true
}

func (s *gradingService) storeCache(ctx context.Context, digest string, result *grading.GradeResponse) {
	if s.cache == nil {
		return
	}

	if err := s.cache.SetJSON(ctx, cacheKeyPrefix+digest, result, s.cacheTTL); err != nil {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Result cache store failed")
	}
}

// record reports whether the analysis was persisted. A failed insert is
// logged and does not fail the upload.
func (s *gradingService) record(ctx context.Context, analysis entity.Analysis) bool {
	if s.gradingRepository == nil {
		return false
	}

	client, err := s.gradingRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": analysis.RequestID,
			"error":      err.Error(),
		}).Error("Failed to open repository client")
		return false
	}

	if err := client.Analysis.CreateAnalysis(ctx, analysis); err != nil {
		return false
	}
	return true
}

func (s *gradingService) GetAnalysis(ctx context.Context, id string) (entity.Analysis, error) {
	if s.gradingRepository == nil {
		return entity.Analysis{}, grading.ErrHistoryUnavailable
	}

	client, err := s.gradingRepository.NewClient(false)
	if err != nil {
		return entity.Analysis{}, err
	}

	analysis, err := client.Analysis.GetAnalysisByID(ctx, id)
	if err != nil {
		if errors.Is(err, grading.ErrAnalysisNotFound) {
			return entity.Analysis{}, grading.ErrAnalysisNotFound
		}
		return entity.Analysis{}, err
	}

	return analysis, nil
}

func (s *gradingService) ListAnalyses(ctx context.Context, limit int) ([]entity.Analysis, error) {
	if s.gradingRepository == nil {
		return nil, grading.ErrHistoryUnavailable
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	client, err := s.gradingRepository.NewClient(false)
	if err != nil {
		return nil, err
	}

	return client.Analysis.ListRecentAnalyses(ctx, limit)
}
