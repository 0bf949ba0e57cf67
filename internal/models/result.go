package models

// Request and response bodies of the HTTP API. Requests are validated with
// the `validate` tags before they reach the services.

type RubricItemInput struct {
	Title      string   `json:"title" validate:"required,max=300"`
	Conditions string   `json:"conditions"`
	MaxScore   *float64 `json:"max_score,omitempty" validate:"omitempty,gte=0"`
	OrderIndex *int     `json:"order_index,omitempty" validate:"omitempty,gte=0"`
}

type CreateEvaluationRequest struct {
	Title           string            `json:"title" form:"title" validate:"required,max=200"`
	Description     string            `json:"description" form:"description"`
	ExpectedGroups  int               `json:"expected_groups" form:"expected_groups" validate:"gte=0"`
	OwnerID         string            `json:"owner_id" form:"owner_id"`
	RubricTitle     string            `json:"rubric_title" form:"rubric_title" validate:"max=200"`
	RubricSourceRef string            `json:"rubric_source_ref" form:"rubric_source_ref"`
	Items           []RubricItemInput `json:"items" validate:"dive"`
}

type UpdateEvaluationRequest struct {
	Title          *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description    *string `json:"description,omitempty"`
	ExpectedGroups *int    `json:"expected_groups,omitempty" validate:"omitempty,gte=0"`
	Archived       *bool   `json:"archived,omitempty"`
}

type AddRubricRequest struct {
	Title     string            `json:"title" form:"title" validate:"max=200"`
	SourceRef string            `json:"source_ref" form:"source_ref"`
	Items     []RubricItemInput `json:"items" validate:"dive"`
}

type AppendRubricItemsRequest struct {
	Items []RubricItemInput `json:"items" validate:"required,min=1,dive"`
}

type CreateGroupRequest struct {
	Code         string `json:"code" validate:"required,max=50"`
	Name         string `json:"name" validate:"max=200"`
	StudentCount int    `json:"student_count" validate:"gte=0"`
}

type AnalyzeRequest struct {
	Provider string `json:"provider" validate:"required,oneof=gemini openrouter"`
}

type ChunkAnalysisRequest struct {
	DocumentRef  string `json:"document_ref" validate:"required_without=SubmissionID"`
	SubmissionID string `json:"submission_id" validate:"omitempty,uuid"`
	Instruction  string `json:"instruction" validate:"required"`
	ChunkSize    int    `json:"chunk_size" validate:"omitempty,gte=200"`
	Provider     string `json:"provider" validate:"required,oneof=gemini openrouter"`
	Model        string `json:"model"`
}

type DocumentAnalysisRequest struct {
	DocumentRef string `json:"document_ref" validate:"required"`
	Instruction string `json:"instruction" validate:"required"`
	MaxTokens   int    `json:"max_tokens" validate:"omitempty,gte=100"`
	Provider    string `json:"provider" validate:"required,oneof=gemini openrouter"`
	Model       string `json:"model"`
}

type AnalyzeResponse struct {
	AnalysisID     string `json:"analysis_id"`
	Message        string `json:"message"`
	GroupsAnalyzed int    `json:"groups_analyzed"`
	GroupsSkipped  int    `json:"groups_skipped"`
	GroupsFailed   int    `json:"groups_failed"`
}

type ChunkResponse struct {
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	Response    string `json:"response"`
}

type UploadResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	StorageRef   string `json:"storage_ref"`
	ContentType  string `json:"content_type"`
	Status       string `json:"status"`
}

type SimilarGroup struct {
	GroupID string  `json:"group_id"`
	Score   float32 `json:"score"`
	Excerpt string  `json:"excerpt"`
	Chunk   int     `json:"chunk_index"`
}

type AnalysisResponse struct {
	ID              string           `json:"id"`
	EvaluationID    string           `json:"evaluation_id"`
	Engine          string           `json:"engine"`
	State           string           `json:"state"`
	Notes           string           `json:"notes,omitempty"`
	StartedAt       string           `json:"started_at"`
	EndedAt         *string          `json:"ended_at,omitempty"`
	Results         []AnalysisResult `json:"results"`
	Recommendations []Recommendation `json:"recommendations"`
}
