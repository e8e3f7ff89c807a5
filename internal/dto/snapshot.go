package dto

import "github.com/childlang-lab/cdi-api/internal/models"

// SearchRequest captures POST /snapshots/search payloads.
type SearchRequest struct {
	Filters        []models.Filter `json:"filters" binding:"required,dive"`
	IncludeDeleted bool            `json:"include_deleted,omitempty"`
}

// DeleteRequest captures POST /snapshots/delete payloads.
type DeleteRequest struct {
	Filters []models.Filter `json:"filters" binding:"required,min=1,dive"`
	Hard    bool            `json:"hard,omitempty"`
}

// RestoreRequest captures POST /snapshots/restore payloads.
type RestoreRequest struct {
	Filters []models.Filter `json:"filters" binding:"required,min=1,dive"`
}

// AffectedResponse reports rows touched by a destructive operation.
type AffectedResponse struct {
	Affected  int                       `json:"affected"`
	Snapshots []models.SnapshotMetadata `json:"snapshots"`
}

// ChildPatchRequest captures PUT /children/{childId} payloads. Nil fields
// leave the stored value untouched.
type ChildPatchRequest struct {
	Gender        *int     `json:"gender,omitempty"`
	Birthday      *string  `json:"birthday,omitempty"`
	HardOfHearing *int     `json:"hard_of_hearing,omitempty"`
	Languages     []string `json:"languages,omitempty"`
}

// IngestResponse summarizes one upload attempt.
type IngestResponse struct {
	Accepted     int    `json:"accepted"`
	HadError     bool   `json:"had_error"`
	ErrorMessage string `json:"error_message,omitempty"`
}
