package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type CreationID string

// NewCreationID generates a new unique CreationID
func NewCreationID() CreationID {
	return CreationID(uuid.New().String())
}

func (id CreationID) String() string {
	return string(id)
}

type RequestID string

// NewRequestID generates a new unique RequestID
func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

func (id RequestID) String() string {
	return string(id)
}

type Status string

const (
	StatusComplete         Status = "complete"
	StatusPartialImageOnly Status = "partial_image_only"
	StatusFailed           Status = "failed"
)

// Validate checks if the status is valid
func (s Status) Validate() error {
	switch s {
	case StatusComplete, StatusPartialImageOnly, StatusFailed:
		return nil
	default:
		return goerr.New("invalid status", goerr.V("status", s))
	}
}

// CreationRecord is the durable unit of memory: one end-to-end pipeline output.
type CreationRecord struct {
	ID             CreationID `json:"id" firestore:"ID"`
	RequestID      RequestID  `json:"request_id" firestore:"RequestID"`
	UserID         string     `json:"user_id" firestore:"UserID"`
	Prompt         string     `json:"prompt" firestore:"Prompt"`
	ExpandedPrompt string     `json:"expanded_prompt" firestore:"ExpandedPrompt"`

	// Empty when the corresponding stage failed
	ImagePath string `json:"image_path,omitempty" firestore:"ImagePath"`
	ModelPath string `json:"model_path,omitempty" firestore:"ModelPath"`

	Tags            []string  `json:"tags" firestore:"Tags"`
	Categories      []string  `json:"categories" firestore:"Categories"`
	PrimaryCategory string    `json:"primary_category,omitempty" firestore:"PrimaryCategory"`
	Styles          []string  `json:"styles,omitempty" firestore:"Styles"`
	Colors          []string  `json:"colors,omitempty" firestore:"Colors"`
	Moods           []string  `json:"moods,omitempty" firestore:"Moods"`
	Analysis        *Elements `json:"analysis,omitempty" firestore:"Analysis"`

	Status         Status        `json:"status" firestore:"Status"`
	ProcessingTime time.Duration `json:"processing_time" firestore:"ProcessingTime"`
	CreatedAt      time.Time     `json:"created_at" firestore:"CreatedAt"`
}

// Validate checks the structural invariants of a record
func (r *CreationRecord) Validate() error {
	if r.ID == "" {
		return goerr.New("creation id is empty")
	}
	if r.UserID == "" {
		return goerr.New("user id is empty", goerr.V("id", r.ID))
	}
	if err := r.Status.Validate(); err != nil {
		return err
	}
	if r.ModelPath != "" && r.ImagePath == "" {
		return goerr.New("model path requires an image path", goerr.V("id", r.ID))
	}
	return nil
}

// Copy returns a deep copy so that callers cannot mutate stored state
func (r *CreationRecord) Copy() *CreationRecord {
	if r == nil {
		return nil
	}
	dup := *r
	dup.Tags = slices.Clone(r.Tags)
	dup.Categories = slices.Clone(r.Categories)
	dup.Styles = slices.Clone(r.Styles)
	dup.Colors = slices.Clone(r.Colors)
	dup.Moods = slices.Clone(r.Moods)
	if r.Analysis != nil {
		a := *r.Analysis
		a.Colors = slices.Clone(r.Analysis.Colors)
		dup.Analysis = &a
	}
	return &dup
}

// HasTag reports whether the record carries the tag
func (r *CreationRecord) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// InCategory reports whether the record belongs to the category
func (r *CreationRecord) InCategory(category string) bool {
	return r.PrimaryCategory == category || slices.Contains(r.Categories, category)
}

// IndexText is the text embedded for similarity search
func (r *CreationRecord) IndexText() string {
	if r.ExpandedPrompt == "" || r.ExpandedPrompt == r.Prompt {
		return r.Prompt
	}
	return r.Prompt + " " + r.ExpandedPrompt
}

// Elements is the structured analysis of a prompt produced by the language model
type Elements struct {
	Subject string   `json:"subject" firestore:"Subject"`
	Style   string   `json:"style" firestore:"Style"`
	Mood    string   `json:"mood" firestore:"Mood"`
	Colors  []string `json:"colors" firestore:"Colors"`
	Setting string   `json:"setting" firestore:"Setting"`
}

// Tagging is the result of heuristic tagging
type Tagging struct {
	Tags            []string `json:"tags"`
	Categories      []string `json:"categories"`
	PrimaryCategory string   `json:"primary_category"`
	Styles          []string `json:"styles"`
	Colors          []string `json:"colors"`
	Moods           []string `json:"moods"`
}

// Apply copies the tagging result into the record
func (t *Tagging) Apply(r *CreationRecord) {
	if t == nil {
		return
	}
	r.Tags = slices.Clone(t.Tags)
	r.Categories = slices.Clone(t.Categories)
	r.PrimaryCategory = t.PrimaryCategory
	r.Styles = slices.Clone(t.Styles)
	r.Colors = slices.Clone(t.Colors)
	r.Moods = slices.Clone(t.Moods)
}
