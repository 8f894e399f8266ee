package model

import (
	"fmt"
	"time"
)

// Stage identifies a step of the creation pipeline
type Stage string

const (
	StageExpand        Stage = "expand"
	StageAnalyze       Stage = "analyze"
	StageGenerateImage Stage = "generate_image"
	StageGenerateModel Stage = "generate_model"
	StageTag           Stage = "tag"
	StagePersist       Stage = "persist"
	StageIndex         Stage = "index"
)

// GenerateRequest is the input of a pipeline run
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Attachments []string `json:"attachments,omitempty"`
}

// StageTiming is the measured duration of one pipeline stage
type StageTiming struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Warning is a non-fatal problem surfaced alongside an otherwise usable result
type Warning struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

const (
	ResponseStatusSuccess = "success"
	ResponseStatusError   = "error"
)

// Response is the request/response surface consumed by the API layer
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Details ResponseDetails `json:"details"`
}

type ResponseDetails struct {
	RequestID      RequestID  `json:"request_id,omitempty"`
	CreationID     CreationID `json:"creation_id,omitempty"`
	Prompt         string     `json:"prompt"`
	ExpandedPrompt string     `json:"expanded_prompt"`
	ImagePath      string     `json:"image_path,omitempty"`
	ModelPath      string     `json:"model_path,omitempty"`
	ProcessingTime string     `json:"processing_time"`
	Stage          Stage      `json:"stage,omitempty"`
	Warnings       []Warning  `json:"warnings,omitempty"`
}

// FormatProcessingTime renders a duration the way the response surface reports it
func FormatProcessingTime(d time.Duration) string {
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}
