package grading

import (
	"KneeGrader/pkg/jointspace"
	"KneeGrader/pkg/response"
	"errors"
	"net/http"
)

var (
	ErrMissingUpload       = response.NewError(http.StatusBadRequest, "No file uploaded")
	ErrFileTooLarge        = response.NewError(http.StatusRequestEntityTooLarge, "File too large")
	ErrAnalysisNotFound    = response.NewError(http.StatusNotFound, "Analysis not found")
	ErrHistoryUnavailable  = response.NewError(http.StatusServiceUnavailable, "Analysis history is not configured")
	ErrStoreUpload         = response.NewError(http.StatusInternalServerError, "Failed to store upload")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)

// NewProcessingError reports a pipeline failure to the client as
// "Processing failed: <cause>". Undecodable uploads are the client's fault.
func NewProcessingError(cause error) error {
	code := http.StatusInternalServerError
	if errors.Is(cause, jointspace.ErrDecode) {
		code = http.StatusUnprocessableEntity
	}
	return response.Wrap(code, "Processing failed", cause)
}
