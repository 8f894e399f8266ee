package model

import "github.com/m-mizutani/goerr/v2"

var (
	// Remote capability invocation
	ErrCapabilityUnavailable = goerr.New("capability unavailable")
	ErrSchemaInvalid         = goerr.New("capability schema invalid")
	ErrInvalidInput          = goerr.New("input rejected by capability schema")
	ErrResponseUnparseable   = goerr.New("capability response unparseable")
	ErrResourceResolution    = goerr.New("failed to resolve output resource")
	ErrRemoteExecution       = goerr.New("remote execution failed")

	// Memory store
	ErrPersistence = goerr.New("persistence failed")
	ErrNotFound    = goerr.New("not found")

	// Vector index; never fatal for a pipeline run
	ErrEmbedding = goerr.New("embedding failed")

	ErrEmptyPrompt = goerr.New("prompt is empty")
)
