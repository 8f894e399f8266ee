package model

import (
	"slices"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Manifest describes a remote generative app
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// CapabilityDescriptor is resolved once per remote app id and cached until
// explicitly invalidated.
type CapabilityDescriptor struct {
	AppID      string
	Endpoint   string
	Manifest   Manifest
	Input      *jsonschema.Schema
	Output     *jsonschema.Schema
	ResolvedAt time.Time
}

// ResourceFields returns the output properties whose values are references
// to remote resources rather than inline data.
func (d *CapabilityDescriptor) ResourceFields() []string {
	if d == nil || d.Output == nil {
		return nil
	}
	var fields []string
	for name, prop := range d.Output.Properties {
		if prop != nil && prop.Format == "resource" {
			fields = append(fields, name)
		}
	}
	slices.Sort(fields)
	return fields
}
