package model

import (
	"slices"
	"time"
)

// SessionContext is the short-term memory of a session. It lives for the
// process lifetime only and is overwritten by every request for the same key.
type SessionContext struct {
	RequestID      RequestID
	Prompt         string
	ExpandedPrompt string
	Analysis       *Elements
	Attachments    []string
	CreationID     CreationID
	ImagePath      string
	ModelPath      string
	Status         Status
	Stage          Stage
	UpdatedAt      time.Time
}

// Copy returns a deep copy of the session context
func (s *SessionContext) Copy() *SessionContext {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Attachments = slices.Clone(s.Attachments)
	if s.Analysis != nil {
		a := *s.Analysis
		a.Colors = slices.Clone(s.Analysis.Colors)
		dup.Analysis = &a
	}
	return &dup
}
