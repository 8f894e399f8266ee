package creation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/kiln/pkg/model"
)

// outcome is the result of one pipeline stage
type outcome[T any] struct {
	value T
	err   error
}

func (o outcome[T]) ok() bool {
	return o.err == nil
}

// runStage runs fn and records its timing in res
func runStage[T any](ctx context.Context, res *Result, stage model.Stage, fn func(context.Context) (T, error)) outcome[T] {
	started := time.Now()
	v, err := fn(ctx)

	timing := model.StageTiming{Stage: stage, Duration: time.Since(started)}
	if err != nil {
		timing.Error = err.Error()
	}
	res.Timings = append(res.Timings, timing)

	return outcome[T]{value: v, err: err}
}

// Result is the outcome of one pipeline run. Record is nil when the run failed.
type Result struct {
	RequestID      model.RequestID
	UserID         string
	Prompt         string
	ExpandedPrompt string
	Status         model.Status
	Record         *model.CreationRecord

	// Set when Status is failed
	FailedStage model.Stage
	Err         error

	// Set when Status is partial_image_only
	ModelErr error

	Warnings       []model.Warning
	Timings        []model.StageTiming
	ProcessingTime time.Duration
}

func (r *Result) warn(stage model.Stage, err error) {
	r.Warnings = append(r.Warnings, model.Warning{Stage: stage, Message: err.Error()})
}

// Response converts the result into the request/response surface
func (r *Result) Response() *model.Response {
	resp := &model.Response{
		Details: model.ResponseDetails{
			RequestID:      r.RequestID,
			Prompt:         r.Prompt,
			ExpandedPrompt: r.ExpandedPrompt,
			ProcessingTime: model.FormatProcessingTime(r.ProcessingTime),
			Warnings:       r.Warnings,
		},
	}
	if r.Record != nil {
		resp.Details.CreationID = r.Record.ID
		resp.Details.ImagePath = r.Record.ImagePath
		resp.Details.ModelPath = r.Record.ModelPath
	}

	switch r.Status {
	case model.StatusComplete:
		resp.Status = model.ResponseStatusSuccess
		resp.Message = "Created image and 3D model"

	case model.StatusPartialImageOnly:
		resp.Status = model.ResponseStatusSuccess
		resp.Message = "Created image, but 3D model generation failed"
		if r.ModelErr != nil {
			resp.Message += ": " + r.ModelErr.Error()
		}

	default:
		resp.Status = model.ResponseStatusError
		resp.Details.Stage = r.FailedStage
		resp.Message = fmt.Sprintf("Generation failed at stage %s", r.FailedStage)
		if r.Err != nil {
			resp.Message += ": " + r.Err.Error()
		}
	}

	if len(r.Warnings) > 0 && resp.Status == model.ResponseStatusSuccess {
		stages := make([]string, 0, len(r.Warnings))
		for _, w := range r.Warnings {
			stages = append(stages, string(w.Stage))
		}
		resp.Message += fmt.Sprintf(" (warnings at %s)", strings.Join(stages, ", "))
	}

	return resp
}
