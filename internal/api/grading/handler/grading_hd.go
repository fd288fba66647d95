package gradingHandler

import (
	"KneeGrader/internal/api/grading"
	"KneeGrader/internal/entity"
	contextPkg "KneeGrader/pkg/context"
	"KneeGrader/pkg/handlerUtil"
	"KneeGrader/pkg/jointspace"
	"KneeGrader/pkg/log"
	"KneeGrader/pkg/utils"
	"errors"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
	"time"
)

func (h *GradingHandler) Upload(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing knee x-ray upload")

	file, err := ctx.FormFile("file")
	if err != nil {
		return errHandler.Handle(ctx, requestID, grading.ErrMissingUpload, ctx.Path(), "form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing file upload")

	if err := h.utils.ValidateUploadFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, uploadError(err), ctx.Path(), "validate_upload_file")
	}

	data, err := h.utils.ReadUploadFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, uploadError(err), ctx.Path(), "read_upload_file")
	}

	result, err := h.gradingService.Grade(c, grading.Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "grade")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":     requestID,
			"path":           ctx.Path(),
			"classification": result.Classification,
			"widths":         result.JointSpaceWidths,
			"cached":         result.Cached,
		}).Info("Knee x-ray graded")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, utils.ErrNoFile):
		return grading.ErrMissingUpload
	case errors.Is(err, utils.ErrFileTooLarge):
		return grading.ErrFileTooLarge
	default:
		return err
	}
}

func (h *GradingHandler) GetAnalysis(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("analysis ID is required"), ctx.Path())
	}

	analysis, err := h.gradingService.GetAnalysis(c, id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_analysis")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, toAnalysisResponse(analysis))
	}
}

func (h *GradingHandler) ListAnalyses(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req grading.ListAnalysesRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	analyses, err := h.gradingService.ListAnalyses(c, req.Limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_analyses")
	}

	response := make([]grading.AnalysisResponse, 0, len(analyses))
	for _, a := range analyses {
		response = append(response, toAnalysisResponse(a))
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
	}
}

func toAnalysisResponse(a entity.Analysis) grading.AnalysisResponse {
	return grading.AnalysisResponse{
		ID:                    a.ID,
		RequestID:             a.RequestID,
		FileKey:               a.FileKey,
		OriginalName:          a.OriginalName,
		SHA256:                a.SHA256,
		Classification:        a.Classification,
		JointSpaceWidths:      jointspace.Widths{a.WidthA, a.WidthB},
		InsufficientStructure: a.InsufficientStructure,
		CreatedAt:             a.CreatedAt.Format(time.RFC3339),
	}
}
