package targetstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/flowdeploy/deploy"
	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
)

// Bucket names
const (
	targetsBucket   = "flowdeploy_targets"
	templatesBucket = "flowdeploy_templates"
)

// Store provides persistence for remote targets and flow templates using
// NATS KV. It satisfies both lookups the deployment engine needs:
// deploy.TargetSource and deploy.TemplateSource.
type Store struct {
	targets   jetstream.KeyValue
	templates jetstream.KeyValue
}

// NewStore creates the KV buckets if needed and returns a store over them.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	if js == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("jetstream context cannot be nil"),
			"targetstore", "NewStore", "argument validation")
	}

	targets, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      targetsBucket,
		Description: "Remote NiFi instance targets",
		History:     10, // Keep last 10 revisions for history/recovery
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "targetstore", "NewStore", "create targets bucket")
	}

	templates, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      templatesBucket,
		Description: "Named flow templates pointing at registry flows",
		History:     10,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "targetstore", "NewStore", "create templates bucket")
	}

	return &Store{targets: targets, templates: templates}, nil
}

// CreateTarget stores a new target record. The key must not already exist.
func (s *Store) CreateTarget(ctx context.Context, record *TargetRecord) error {
	if record == nil {
		return errors.WrapInvalid(fmt.Errorf("record cannot be nil"),
			"targetstore", "CreateTarget", "argument validation")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	record.Version = 1
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapFatal(err, "targetstore", "CreateTarget", "marshal record")
	}

	if _, err := s.targets.Create(ctx, record.Target.ID, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return errors.WrapInvalid(errors.ErrAlreadyExists,
				"targetstore", "CreateTarget", fmt.Sprintf("target %s", record.Target.ID))
		}
		return errors.WrapTransient(err, "targetstore", "CreateTarget", "create in KV")
	}
	return nil
}

// GetTargetRecord retrieves a target record by id.
func (s *Store) GetTargetRecord(ctx context.Context, id string) (*TargetRecord, error) {
	if id == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("target ID cannot be empty"),
			"targetstore", "GetTargetRecord", "argument validation")
	}

	entry, err := s.targets.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.WrapInvalid(errors.ErrTargetNotFound,
				"targetstore", "GetTargetRecord", fmt.Sprintf("target %s", id))
		}
		return nil, errors.WrapTransient(err, "targetstore", "GetTargetRecord", "get from KV")
	}

	var record TargetRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, errors.WrapFatal(err, "targetstore", "GetTargetRecord", "unmarshal record")
	}
	return &record, nil
}

// GetTarget implements deploy.TargetSource.
func (s *Store) GetTarget(ctx context.Context, id string) (*nifi.RemoteTarget, error) {
	record, err := s.GetTargetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return &record.Target, nil
}

// UpdateTarget updates an existing target with optimistic concurrency
// control: the record's Version must match the stored one.
func (s *Store) UpdateTarget(ctx context.Context, record *TargetRecord) error {
	if record == nil {
		return errors.WrapInvalid(fmt.Errorf("record cannot be nil"),
			"targetstore", "UpdateTarget", "argument validation")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	current, err := s.GetTargetRecord(ctx, record.Target.ID)
	if err != nil {
		return err
	}
	if current.Version != record.Version {
		return errors.WrapInvalid(
			fmt.Errorf("version mismatch: expected %d, got %d", current.Version, record.Version),
			"targetstore", "UpdateTarget", "conflict: target was modified concurrently")
	}

	record.Version++
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = time.Now()

	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapFatal(err, "targetstore", "UpdateTarget", "marshal record")
	}
	if _, err := s.targets.Put(ctx, record.Target.ID, data); err != nil {
		return errors.WrapTransient(err, "targetstore", "UpdateTarget", "put to KV")
	}
	return nil
}

// DeleteTarget removes a target by id.
func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	if id == "" {
		return errors.WrapInvalid(fmt.Errorf("target ID cannot be empty"),
			"targetstore", "DeleteTarget", "argument validation")
	}
	if err := s.targets.Delete(ctx, id); err != nil {
		return errors.WrapTransient(err, "targetstore", "DeleteTarget", "delete from KV")
	}
	return nil
}

// ListTargets retrieves all target records.
func (s *Store) ListTargets(ctx context.Context) ([]*TargetRecord, error) {
	keys, err := s.targets.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "targetstore", "ListTargets", "list KV keys")
	}

	records := make([]*TargetRecord, 0, len(keys))
	for _, key := range keys {
		record, err := s.GetTargetRecord(ctx, key)
		if err != nil {
			return nil, errors.WrapTransient(err, "targetstore", "ListTargets",
				fmt.Sprintf("get target %s", key))
		}
		records = append(records, record)
	}
	return records, nil
}

// CreateTemplate stores a new template record. The name must not already
// exist.
func (s *Store) CreateTemplate(ctx context.Context, record *TemplateRecord) error {
	if record == nil {
		return errors.WrapInvalid(fmt.Errorf("record cannot be nil"),
			"targetstore", "CreateTemplate", "argument validation")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	record.Version = 1
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapFatal(err, "targetstore", "CreateTemplate", "marshal record")
	}

	if _, err := s.templates.Create(ctx, record.Template.Name, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return errors.WrapInvalid(errors.ErrAlreadyExists,
				"targetstore", "CreateTemplate", fmt.Sprintf("template %s", record.Template.Name))
		}
		return errors.WrapTransient(err, "targetstore", "CreateTemplate", "create in KV")
	}
	return nil
}

// GetTemplateRecord retrieves a template record by name.
func (s *Store) GetTemplateRecord(ctx context.Context, name string) (*TemplateRecord, error) {
	if name == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("template name cannot be empty"),
			"targetstore", "GetTemplateRecord", "argument validation")
	}

	entry, err := s.templates.Get(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.WrapInvalid(errors.ErrKeyNotFound,
				"targetstore", "GetTemplateRecord", fmt.Sprintf("template %s", name))
		}
		return nil, errors.WrapTransient(err, "targetstore", "GetTemplateRecord", "get from KV")
	}

	var record TemplateRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, errors.WrapFatal(err, "targetstore", "GetTemplateRecord", "unmarshal record")
	}
	return &record, nil
}

// GetTemplate implements deploy.TemplateSource.
func (s *Store) GetTemplate(ctx context.Context, name string) (*deploy.FlowTemplate, error) {
	record, err := s.GetTemplateRecord(ctx, name)
	if err != nil {
		return nil, err
	}
	return &record.Template, nil
}

// UpdateTemplate updates an existing template with optimistic concurrency
// control.
func (s *Store) UpdateTemplate(ctx context.Context, record *TemplateRecord) error {
	if record == nil {
		return errors.WrapInvalid(fmt.Errorf("record cannot be nil"),
			"targetstore", "UpdateTemplate", "argument validation")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	current, err := s.GetTemplateRecord(ctx, record.Template.Name)
	if err != nil {
		return err
	}
	if current.Version != record.Version {
		return errors.WrapInvalid(
			fmt.Errorf("version mismatch: expected %d, got %d", current.Version, record.Version),
			"targetstore", "UpdateTemplate", "conflict: template was modified concurrently")
	}

	record.Version++
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = time.Now()

	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapFatal(err, "targetstore", "UpdateTemplate", "marshal record")
	}
	if _, err := s.templates.Put(ctx, record.Template.Name, data); err != nil {
		return errors.WrapTransient(err, "targetstore", "UpdateTemplate", "put to KV")
	}
	return nil
}

// DeleteTemplate removes a template by name.
func (s *Store) DeleteTemplate(ctx context.Context, name string) error {
	if name == "" {
		return errors.WrapInvalid(fmt.Errorf("template name cannot be empty"),
			"targetstore", "DeleteTemplate", "argument validation")
	}
	if err := s.templates.Delete(ctx, name); err != nil {
		return errors.WrapTransient(err, "targetstore", "DeleteTemplate", "delete from KV")
	}
	return nil
}

// ListTemplates retrieves all template records.
func (s *Store) ListTemplates(ctx context.Context) ([]*TemplateRecord, error) {
	keys, err := s.templates.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "targetstore", "ListTemplates", "list KV keys")
	}

	records := make([]*TemplateRecord, 0, len(keys))
	for _, key := range keys {
		record, err := s.GetTemplateRecord(ctx, key)
		if err != nil {
			return nil, errors.WrapTransient(err, "targetstore", "ListTemplates",
				fmt.Sprintf("get template %s", key))
		}
		records = append(records, record)
	}
	return records, nil
}

var (
	_ deploy.TargetSource   = (*Store)(nil)
	_ deploy.TemplateSource = (*Store)(nil)
)
