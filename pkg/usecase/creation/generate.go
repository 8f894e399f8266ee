package creation

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/service/expander"
	"github.com/m-mizutani/kiln/pkg/service/vector"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
)

// Generate runs the pipeline for one prompt. The short-term session of userID
// is updated as stages complete.
//
// The returned error is only set for requests that cannot start. Generation
// failures are reported through Result.Status: an image failure yields failed
// with nothing persisted, a 3D failure yields partial_image_only. Persistence
// and indexing failures become warnings.
func (uc *UseCase) Generate(ctx context.Context, userID string, req model.GenerateRequest) (*Result, error) {
	started := time.Now()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, goerr.Wrap(model.ErrEmptyPrompt, "cannot generate", goerr.V("user_id", userID))
	}
	if userID == "" {
		return nil, goerr.New("user id is empty")
	}

	rid := model.NewRequestID()
	logger := logging.From(ctx).With("request_id", rid, "user_id", userID)
	ctx = logging.With(ctx, logger)

	res := &Result{
		RequestID:      rid,
		UserID:         userID,
		Prompt:         prompt,
		ExpandedPrompt: prompt,
	}
	defer func() {
		res.ProcessingTime = time.Since(started)
	}()

	session := &model.SessionContext{
		RequestID:   rid,
		Prompt:      prompt,
		Attachments: slices.Clone(req.Attachments),
		Stage:       model.StageExpand,
	}

	expanded := runStage(ctx, res, model.StageExpand, func(ctx context.Context) (string, error) {
		return uc.expander.Expand(ctx, prompt)
	})
	if expanded.ok() && strings.TrimSpace(expanded.value) != "" {
		res.ExpandedPrompt = strings.TrimSpace(expanded.value)
	} else if expanded.err != nil && !errors.Is(expanded.err, expander.ErrDisabled) {
		logger.Warn("prompt expansion failed, using raw prompt", "error", expanded.err)
		res.warn(model.StageExpand, expanded.err)
	}

	analysis := runStage(ctx, res, model.StageAnalyze, func(ctx context.Context) (*model.Elements, error) {
		return uc.expander.Analyze(ctx, prompt)
	})
	if !analysis.ok() {
		logger.Debug("prompt analysis unavailable", "error", analysis.err)
	}

	session.ExpandedPrompt = res.ExpandedPrompt
	session.Analysis = analysis.value
	session.Stage = model.StageGenerateImage
	uc.memory.StoreShortTerm(ctx, userID, session)

	image := runStage(ctx, res, model.StageGenerateImage, func(ctx context.Context) (*artifact, error) {
		return uc.generateImage(ctx, rid, res.ExpandedPrompt)
	})
	if !image.ok() {
		logger.Error("image generation failed", "error", image.err)
		res.Status = model.StatusFailed
		res.FailedStage = model.StageGenerateImage
		res.Err = image.err

		session.Status = model.StatusFailed
		uc.memory.StoreShortTerm(ctx, userID, session)
		return res, nil
	}
	session.ImagePath = image.value.path
	session.Stage = model.StageGenerateModel
	uc.memory.StoreShortTerm(ctx, userID, session)

	res.Status = model.StatusComplete
	modelPath := ""
	mesh := runStage(ctx, res, model.StageGenerateModel, func(ctx context.Context) (*artifact, error) {
		return uc.generateModel(ctx, rid, image.value.data)
	})
	if mesh.ok() {
		modelPath = mesh.value.path
	} else {
		logger.Warn("3D generation failed, keeping image only", "error", mesh.err)
		res.Status = model.StatusPartialImageOnly
		res.ModelErr = mesh.err
	}

	tagging := runStage(ctx, res, model.StageTag, func(ctx context.Context) (*model.Tagging, error) {
		return uc.tag(ctx, prompt, res.ExpandedPrompt, analysis.value)
	})
	if !tagging.ok() {
		logger.Warn("tagging policy failed, keeping heuristic tags", "error", tagging.err)
	}

	record := &model.CreationRecord{
		ID:             model.NewCreationID(),
		RequestID:      rid,
		UserID:         userID,
		Prompt:         prompt,
		ExpandedPrompt: res.ExpandedPrompt,
		ImagePath:      image.value.path,
		ModelPath:      modelPath,
		Analysis:       analysis.value,
		Status:         res.Status,
		ProcessingTime: time.Since(started),
		CreatedAt:      time.Now(),
	}
	tagging.value.Apply(record)
	res.Record = record

	persisted := runStage(ctx, res, model.StagePersist, func(ctx context.Context) (model.CreationID, error) {
		return uc.memory.StoreLongTerm(ctx, record)
	})
	if persisted.ok() {
		indexed := runStage(ctx, res, model.StageIndex, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, uc.index.Add(ctx, vector.EntryFromRecord(record))
		})
		if !indexed.ok() {
			logger.Warn("failed to index creation", "error", indexed.err, "creation_id", record.ID)
			res.warn(model.StageIndex, indexed.err)
		}
	} else {
		logger.Error("failed to persist creation", "error", persisted.err, "creation_id", record.ID)
		res.warn(model.StagePersist, persisted.err)
	}

	session.CreationID = record.ID
	session.ModelPath = modelPath
	session.Status = res.Status
	session.Stage = ""
	uc.memory.StoreShortTerm(ctx, userID, session)

	logger.Info("creation finished",
		"status", res.Status,
		"creation_id", record.ID,
		"elapsed", time.Since(started).String())

	return res, nil
}

// tag never fails to produce a tagging. A policy error is returned together
// with the heuristic result.
func (uc *UseCase) tag(ctx context.Context, prompt, expanded string, elements *model.Elements) (*model.Tagging, error) {
	base := uc.tagger.Analyze(prompt, expanded, elements)
	if base == nil {
		base = &model.Tagging{}
	}
	if uc.policy == nil {
		return base, nil
	}

	adjusted, err := uc.policy.Apply(ctx, prompt, expanded, base)
	if err != nil {
		return base, err
	}
	if adjusted == nil {
		return base, nil
	}
	return adjusted, nil
}
