package dto

import "github.com/childlang-lab/cdi-api/internal/models"

// SaveFormatRequest captures PUT /formats/cdi/{name} payloads.
type SaveFormatRequest struct {
	HumanName string                  `json:"human_name" binding:"required"`
	Filename  string                  `json:"filename" binding:"required"`
	Details   models.CDIFormatDetails `json:"details" binding:"required"`
}

// SavePresentationRequest captures PUT /formats/presentation/{name}.
type SavePresentationRequest struct {
	HumanName string            `json:"human_name" binding:"required"`
	Filename  string            `json:"filename" binding:"required"`
	Details   map[string]string `json:"details" binding:"required"`
}

// SavePercentileTableRequest captures PUT /formats/percentile/{name}.
// Body holds the raw CSV lookup table.
type SavePercentileTableRequest struct {
	HumanName string `json:"human_name" binding:"required"`
	Filename  string `json:"filename" binding:"required"`
	Body      string `json:"body" binding:"required"`
}
