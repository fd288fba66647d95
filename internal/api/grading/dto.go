package grading

import "KneeGrader/pkg/jointspace"

type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type GradeResponse struct {
	Classification        jointspace.Grade  `json:"classification"`
	JointSpaceWidths      jointspace.Widths `json:"joint_space_widths"`
	AnalysisID            string            `json:"analysis_id,omitempty"`
	InsufficientStructure bool              `json:"insufficient_structure"`
	Cached                bool              `json:"cached"`
}

type ListAnalysesRequest struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type AnalysisResponse struct {
	ID                    string            `json:"id"`
	RequestID             string            `json:"request_id"`
	FileKey               string            `json:"file_key"`
	OriginalName          string            `json:"original_name"`
	SHA256                string            `json:"sha256"`
	Classification        string            `json:"classification"`
	JointSpaceWidths      jointspace.Widths `json:"joint_space_widths"`
	InsufficientStructure bool              `json:"insufficient_structure"`
	CreatedAt             string            `json:"created_at"`
}
