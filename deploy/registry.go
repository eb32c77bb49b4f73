package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
)

// TemplateSource resolves a named flow template to its registry
// coordinates. Storage of templates lives outside the engine.
type TemplateSource interface {
	GetTemplate(ctx context.Context, name string) (*FlowTemplate, error)
}

// RegistryResolver turns a FlowSelector into a pinned FlowReference.
type RegistryResolver struct {
	api       nifi.RegistryAPI
	templates TemplateSource
	logger    *slog.Logger
}

// NewRegistryResolver creates a registry resolver. templates may be nil when
// only explicit references are used.
func NewRegistryResolver(api nifi.RegistryAPI, templates TemplateSource, logger *slog.Logger) *RegistryResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistryResolver{api: api, templates: templates, logger: logger}
}

// Resolve produces a FlowReference from either a named template or explicit
// identifiers.
//
// Binary import/export is only supported on native registries, so git-type
// registry clients fail fast with ErrRegistryUnsupported before any import
// is attempted. When no explicit version is requested, the flow's snapshot
// metadata is fetched and the highest version selected; versions are
// monotonically increasing integers per flow, so ties are impossible.
func (r *RegistryResolver) Resolve(ctx context.Context, session *nifi.RemoteSession, selector FlowSelector) (*nifi.FlowReference, error) {
	ref := nifi.FlowReference{
		RegistryClientID: selector.RegistryClientID,
		BucketID:         selector.BucketID,
		FlowID:           selector.FlowID,
		Version:          selector.Version,
	}

	if selector.Template != "" {
		if r.templates == nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("no template source configured for template %q", selector.Template),
				"RegistryResolver", "Resolve", "template lookup")
		}
		template, err := r.templates.GetTemplate(ctx, selector.Template)
		if err != nil {
			return nil, errors.Wrap(err, "RegistryResolver", "Resolve", "template lookup")
		}
		ref.RegistryClientID = template.RegistryClientID
		ref.BucketID = template.BucketID
		ref.FlowID = template.FlowID
		if ref.Version == nil {
			ref.Version = template.Version
		}
	}

	if ref.RegistryClientID == "" || ref.BucketID == "" || ref.FlowID == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("incomplete flow reference: registry=%q bucket=%q flow=%q",
				ref.RegistryClientID, ref.BucketID, ref.FlowID),
			"RegistryResolver", "Resolve", "reference validation")
	}

	client, err := r.api.GetRegistryClient(ctx, session, ref.RegistryClientID)
	if err != nil {
		return nil, errors.WrapTransient(err, "RegistryResolver", "Resolve", "get registry client")
	}
	if !client.Kind.SupportsBinaryTransfer() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("registry %s (%s): %w", client.Name, client.Kind, errors.ErrRegistryUnsupported),
			"RegistryResolver", "Resolve", "registry type check")
	}

	if ref.Version == nil {
		latest, err := r.api.LatestVersion(ctx, session, ref.RegistryClientID, ref.BucketID, ref.FlowID)
		if err != nil {
			return nil, errors.Wrap(err, "RegistryResolver", "Resolve", "fetch latest version")
		}
		ref.Version = &latest
		r.logger.Debug("Resolved flow to latest version",
			"flow_id", ref.FlowID, "version", latest)
	}

	return &ref, nil
}
