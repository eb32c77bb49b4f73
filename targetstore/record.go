package targetstore

import (
	"fmt"
	"net/url"
	"time"

	"github.com/c360/flowdeploy/deploy"
	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
)

// TargetRecord is a stored remote target with optimistic-concurrency
// metadata. Records are keyed by the target's ID.
type TargetRecord struct {
	Target nifi.RemoteTarget `json:"target"`

	// Version for optimistic concurrency control
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the record before it is written.
func (r *TargetRecord) Validate() error {
	if r.Target.ID == "" {
		return errors.WrapInvalid(fmt.Errorf("target ID cannot be empty"),
			"targetstore", "Validate", "target validation")
	}
	if r.Target.Name == "" {
		return errors.WrapInvalid(fmt.Errorf("target name cannot be empty"),
			"targetstore", "Validate", "target validation")
	}
	if r.Target.BaseURL == "" {
		return errors.WrapInvalid(fmt.Errorf("target base URL cannot be empty"),
			"targetstore", "Validate", "target validation")
	}
	parsed, err := url.Parse(r.Target.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.WrapInvalid(fmt.Errorf("target base URL %q is not absolute", r.Target.BaseURL),
			"targetstore", "Validate", "target validation")
	}
	for i, level := range r.Target.Hierarchy {
		if level == "" {
			return errors.WrapInvalid(fmt.Errorf("hierarchy level %d is empty", i),
				"targetstore", "Validate", "target validation")
		}
	}
	return nil
}

// TemplateRecord is a stored flow template with optimistic-concurrency
// metadata. Records are keyed by the template's name.
type TemplateRecord struct {
	Template deploy.FlowTemplate `json:"template"`

	// Version for optimistic concurrency control
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the record before it is written.
func (r *TemplateRecord) Validate() error {
	if r.Template.Name == "" {
		return errors.WrapInvalid(fmt.Errorf("template name cannot be empty"),
			"targetstore", "Validate", "template validation")
	}
	if r.Template.RegistryClientID == "" || r.Template.BucketID == "" || r.Template.FlowID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("template %q needs registry, bucket, and flow ids", r.Template.Name),
			"targetstore", "Validate", "template validation")
	}
	if r.Template.Version != nil && *r.Template.Version < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("template %q pins version %d, versions start at 1", r.Template.Name, *r.Template.Version),
			"targetstore", "Validate", "template validation")
	}
	return nil
}
