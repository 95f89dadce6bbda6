package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/craftboard/platform/internal/domain"
)

// Registry defines object type resolution and per-organization schema
// customization.
type Registry interface {
	ResolveObjectType(ctx context.Context, objectType string) (*domain.ObjectDefinition, error)
	ListObjectTypes(ctx context.Context) ([]domain.ObjectDefinition, error)
	CreateObjectType(ctx context.Context, def *domain.ObjectDefinition) (*domain.ObjectDefinition, error)
	GetMergedSchema(ctx context.Context, rc domain.RequestContext, objectType string) (*domain.MergedSchema, error)
	AddCustomProperty(ctx context.Context, rc domain.RequestContext, objectType string, prop domain.PropertyDefinition) error
	OverrideProperty(ctx context.Context, rc domain.RequestContext, objectType, propertyName string, override domain.PropertyOverride) error
	MigrateSchema(ctx context.Context, rc domain.RequestContext, objectType string, newVersion int, description, changes, rollbackData string) error
	ListMigrations(ctx context.Context, rc domain.RequestContext, objectType string) ([]domain.PropertyMigration, error)
}

// SQLiteRegistry implements Registry backed by SQLite, with process-wide
// caches for definitions and merged schemas. Object types are effectively
// static, so both caches live until an overlay or definition write
// invalidates them.
type SQLiteRegistry struct {
	db *sql.DB

	mu      sync.RWMutex
	defs    map[string]*domain.ObjectDefinition // keyed by objectType
	schemas map[string]*domain.MergedSchema     // keyed by orgID + "\x00" + objectType
}

// NewSQLiteRegistry creates a new SQLiteRegistry.
func NewSQLiteRegistry(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{
		db:      db,
		defs:    make(map[string]*domain.ObjectDefinition),
		schemas: make(map[string]*domain.MergedSchema),
	}
}

func schemaCacheKey(orgID, objectType string) string {
	return orgID + "\x00" + objectType
}

// ResolveObjectType resolves an object type name to its definition, including
// base properties. Inactive and unknown types are NotFound.
func (s *SQLiteRegistry) ResolveObjectType(ctx context.Context, objectType string) (*domain.ObjectDefinition, error) {
	s.mu.RLock()
	if def, ok := s.defs[objectType]; ok {
		s.mu.RUnlock()
		return def, nil
	}
	s.mu.RUnlock()

	def, err := s.loadDefinition(ctx, objectType)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.defs[objectType] = def
	s.mu.Unlock()
	return def, nil
}

func (s *SQLiteRegistry) loadDefinition(ctx context.Context, objectType string) (*domain.ObjectDefinition, error) {
	var def domain.ObjectDefinition
	var pdp sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, object_type, label_singular, label_plural, primary_display_property, is_custom, active, created_at, updated_at
		 FROM object_definitions WHERE (object_type = ? OR id = ?) AND active = TRUE`,
		objectType, objectType,
	).Scan(&def.ID, &def.ObjectType, &def.LabelSingular, &def.LabelPlural, &pdp,
		&def.IsCustom, &def.Active, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewError(domain.KindNotFound, "object type %q not found", objectType)
		}
		return nil, domain.WrapStorage("resolve object type", err)
	}
	def.PrimaryDisplayProperty = pdp.String

	def.Properties, err = s.loadBaseProperties(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *SQLiteRegistry) loadBaseProperties(ctx context.Context, defID string) (map[string]domain.PropertyDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type, label, required, default_value, validation, options, reference_type
		 FROM property_definitions WHERE object_definition_id = ?`,
		defID,
	)
	if err != nil {
		return nil, domain.WrapStorage("load base properties", err)
	}
	defer func() { _ = rows.Close() }()

	props := make(map[string]domain.PropertyDefinition)
	for rows.Next() {
		var p domain.PropertyDefinition
		var typ string
		var def, validation, options, ref sql.NullString
		if err := rows.Scan(&p.Name, &typ, &p.Label, &p.Required, &def, &validation, &options, &ref); err != nil {
			return nil, domain.WrapStorage("scan property definition", err)
		}
		p.Type = domain.PropertyType(typ)
		p.Default = def.String
		p.Validation = validation.String
		p.Reference = ref.String
		if options.Valid && options.String != "" {
			p.Options = strings.Split(options.String, ";")
		}
		props[p.Name] = p
	}
	return props, rows.Err()
}

// ListObjectTypes returns all active definitions (without base properties).
func (s *SQLiteRegistry) ListObjectTypes(ctx context.Context) ([]domain.ObjectDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, object_type, label_singular, label_plural, primary_display_property, is_custom, active, created_at, updated_at
		 FROM object_definitions WHERE active = TRUE ORDER BY object_type`,
	)
	if err != nil {
		return nil, domain.WrapStorage("list object types", err)
	}
	defer func() { _ = rows.Close() }()

	var defs []domain.ObjectDefinition
	for rows.Next() {
		var def domain.ObjectDefinition
		var pdp sql.NullString
		if err := rows.Scan(&def.ID, &def.ObjectType, &def.LabelSingular, &def.LabelPlural, &pdp,
			&def.IsCustom, &def.Active, &def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, domain.WrapStorage("scan object definition", err)
		}
		def.PrimaryDisplayProperty = pdp.String
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// CreateObjectType inserts a new definition with its base properties.
// Object type names collide as DuplicateDefinition.
func (s *SQLiteRegistry) CreateObjectType(ctx context.Context, def *domain.ObjectDefinition) (*domain.ObjectDefinition, error) {
	for name, p := range def.Properties {
		if !domain.ValidPropertyType(p.Type) {
			return nil, domain.NewError(domain.KindSchemaViolation, "property %q has unknown type %q", name, p.Type)
		}
	}

	ts := now()
	def.ID = uuid.NewString()
	def.Active = true
	def.CreatedAt = ts
	def.UpdatedAt = ts

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapStorage("create object type", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO object_definitions (id, object_type, label_singular, label_plural, primary_display_property, is_custom, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, TRUE, ?, ?)`,
		def.ID, def.ObjectType, def.LabelSingular, def.LabelPlural,
		nullable(def.PrimaryDisplayProperty), def.IsCustom, ts, ts,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, domain.NewError(domain.KindDuplicateDefinition, "object type %q already exists", def.ObjectType)
		}
		return nil, domain.WrapStorage("create object type", err)
	}

	for name, p := range def.Properties {
		if err := insertBaseProperty(ctx, tx, def.ID, name, p, ts); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.WrapStorage("create object type", err)
	}

	s.mu.Lock()
	s.defs[def.ObjectType] = def
	s.mu.Unlock()
	return def, nil
}

func insertBaseProperty(ctx context.Context, q dbtx, defID, name string, p domain.PropertyDefinition, ts string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO property_definitions (object_definition_id, name, type, label, required, default_value, validation, options, reference_type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		defID, name, string(p.Type), p.Label, p.Required,
		nullable(p.Default), nullable(p.Validation),
		nullable(strings.Join(p.Options, ";")), nullable(p.Reference), ts, ts,
	)
	if err != nil {
		return domain.WrapStorage("insert property definition", err)
	}
	return nil
}

// GetMergedSchema computes the base property map overlaid with the
// organization's customizations: per-property overrides first, then custom
// property additions, then hidden property removals. A missing overlay row is
// created with empty overlays, so the operation is idempotent.
func (s *SQLiteRegistry) GetMergedSchema(ctx context.Context, rc domain.RequestContext, objectType string) (*domain.MergedSchema, error) {
	key := schemaCacheKey(rc.OrganizationID, objectType)
	s.mu.RLock()
	if merged, ok := s.schemas[key]; ok {
		s.mu.RUnlock()
		return merged, nil
	}
	s.mu.RUnlock()

	def, err := s.ResolveObjectType(ctx, objectType)
	if err != nil {
		return nil, err
	}

	overlay, err := s.loadOrCreateOverlay(ctx, rc.OrganizationID, def.ID)
	if err != nil {
		return nil, err
	}

	merged := &domain.MergedSchema{
		ObjectDefinition: def,
		Properties:       make(map[string]domain.PropertyDefinition, len(def.Properties)),
		SchemaVersion:    overlay.SchemaVersion,
	}
	for name, p := range def.Properties {
		merged.Properties[name] = p
	}
	for name, ov := range overlay.PropertyOverrides {
		base, ok := merged.Properties[name]
		if !ok {
			continue
		}
		if ov.Label != nil {
			base.Label = *ov.Label
		}
		if ov.Required != nil {
			base.Required = *ov.Required
		}
		if ov.Default != nil {
			base.Default = *ov.Default
		}
		if len(ov.Options) > 0 {
			base.Options = ov.Options
		}
		merged.Properties[name] = base
	}
	for name, p := range overlay.CustomProperties {
		merged.Properties[name] = p
	}
	for _, name := range overlay.HiddenProperties {
		delete(merged.Properties, name)
	}

	s.mu.Lock()
	s.schemas[key] = merged
	s.mu.Unlock()
	return merged, nil
}

// loadOrCreateOverlay fetches the overlay row for (org, definition), creating
// an empty one on first access. INSERT OR IGNORE keeps the invariant of
// exactly one overlay per pair under concurrent first reads.
func (s *SQLiteRegistry) loadOrCreateOverlay(ctx context.Context, orgID, defID string) (*domain.OrganizationObjectSchema, error) {
	ts := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO organization_object_schemas (organization_id, object_definition_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		orgID, defID, ts, ts,
	); err != nil {
		return nil, domain.WrapStorage("create schema overlay", err)
	}

	overlay := &domain.OrganizationObjectSchema{
		OrganizationID:     orgID,
		ObjectDefinitionID: defID,
	}
	var custom, hidden, overrides string
	err := s.db.QueryRowContext(ctx,
		`SELECT custom_properties, hidden_properties, property_overrides, schema_version, created_at, updated_at
		 FROM organization_object_schemas WHERE organization_id = ? AND object_definition_id = ?`,
		orgID, defID,
	).Scan(&custom, &hidden, &overrides, &overlay.SchemaVersion, &overlay.CreatedAt, &overlay.UpdatedAt)
	if err != nil {
		return nil, domain.WrapStorage("load schema overlay", err)
	}

	if err := json.Unmarshal([]byte(custom), &overlay.CustomProperties); err != nil {
		return nil, domain.WrapStorage("decode custom properties", err)
	}
	if err := json.Unmarshal([]byte(hidden), &overlay.HiddenProperties); err != nil {
		return nil, domain.WrapStorage("decode hidden properties", err)
	}
	if err := json.Unmarshal([]byte(overrides), &overlay.PropertyOverrides); err != nil {
		return nil, domain.WrapStorage("decode property overrides", err)
	}
	return overlay, nil
}

// AddCustomProperty adds an organization-local property to the overlay.
func (s *SQLiteRegistry) AddCustomProperty(ctx context.Context, rc domain.RequestContext, objectType string, prop domain.PropertyDefinition) error {
	if !domain.ValidPropertyType(prop.Type) {
		return domain.NewError(domain.KindSchemaViolation, "property %q has unknown type %q", prop.Name, prop.Type)
	}
	if prop.Name == "" {
		return domain.NewError(domain.KindSchemaViolation, "custom property needs a name")
	}

	def, err := s.ResolveObjectType(ctx, objectType)
	if err != nil {
		return err
	}
	overlay, err := s.loadOrCreateOverlay(ctx, rc.OrganizationID, def.ID)
	if err != nil {
		return err
	}
	if _, exists := def.Properties[prop.Name]; exists {
		return domain.NewError(domain.KindDuplicateDefinition, "property %q already defined on %q", prop.Name, objectType)
	}
	if _, exists := overlay.CustomProperties[prop.Name]; exists {
		return domain.NewError(domain.KindDuplicateDefinition, "custom property %q already exists", prop.Name)
	}

	if overlay.CustomProperties == nil {
		overlay.CustomProperties = make(map[string]domain.PropertyDefinition)
	}
	overlay.CustomProperties[prop.Name] = prop
	return s.writeOverlay(ctx, rc, def, overlay)
}

// OverrideProperty patches a base property for one organization. An override
// with Hidden set moves the property to the hidden set instead.
func (s *SQLiteRegistry) OverrideProperty(ctx context.Context, rc domain.RequestContext, objectType, propertyName string, override domain.PropertyOverride) error {
	def, err := s.ResolveObjectType(ctx, objectType)
	if err != nil {
		return err
	}
	if _, ok := def.Properties[propertyName]; !ok {
		return domain.NewError(domain.KindNotFound, "property %q not defined on %q", propertyName, objectType)
	}
	overlay, err := s.loadOrCreateOverlay(ctx, rc.OrganizationID, def.ID)
	if err != nil {
		return err
	}

	if override.Hidden {
		for _, h := range overlay.HiddenProperties {
			if h == propertyName {
				return s.writeOverlay(ctx, rc, def, overlay) // already hidden
			}
		}
		overlay.HiddenProperties = append(overlay.HiddenProperties, propertyName)
	} else {
		if overlay.PropertyOverrides == nil {
			overlay.PropertyOverrides = make(map[string]domain.PropertyOverride)
		}
		overlay.PropertyOverrides[propertyName] = override
	}
	return s.writeOverlay(ctx, rc, def, overlay)
}

func (s *SQLiteRegistry) writeOverlay(ctx context.Context, rc domain.RequestContext, def *domain.ObjectDefinition, overlay *domain.OrganizationObjectSchema) error {
	custom := overlay.CustomProperties
	if custom == nil {
		custom = map[string]domain.PropertyDefinition{}
	}
	hidden := overlay.HiddenProperties
	if hidden == nil {
		hidden = []string{}
	}
	overrides := overlay.PropertyOverrides
	if overrides == nil {
		overrides = map[string]domain.PropertyOverride{}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE organization_object_schemas
		 SET custom_properties = ?, hidden_properties = ?, property_overrides = ?, updated_at = ?
		 WHERE organization_id = ? AND object_definition_id = ?`,
		mustJSON(custom), mustJSON(hidden), mustJSON(overrides), now(),
		rc.OrganizationID, def.ID,
	)
	if err != nil {
		return domain.WrapStorage("write schema overlay", err)
	}

	s.invalidateSchema(rc.OrganizationID, def.ObjectType)
	return nil
}

// MigrateSchema appends a migration record and bumps the overlay's schema
// version. History is append-only; nothing is rewritten.
func (s *SQLiteRegistry) MigrateSchema(ctx context.Context, rc domain.RequestContext, objectType string, newVersion int, description, changes, rollbackData string) error {
	def, err := s.ResolveObjectType(ctx, objectType)
	if err != nil {
		return err
	}
	overlay, err := s.loadOrCreateOverlay(ctx, rc.OrganizationID, def.ID)
	if err != nil {
		return err
	}
	if newVersion <= overlay.SchemaVersion {
		return domain.NewError(domain.KindConflict, "schema version must increase (current %d, got %d)", overlay.SchemaVersion, newVersion)
	}

	ts := now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStorage("migrate schema", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO property_migrations (organization_id, object_definition_id, version, description, changes, rollback_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rc.OrganizationID, def.ID, newVersion, description,
		nullable(changes), nullable(rollbackData), ts,
	); err != nil {
		return domain.WrapStorage("append schema migration", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE organization_object_schemas SET schema_version = ?, updated_at = ?
		 WHERE organization_id = ? AND object_definition_id = ?`,
		newVersion, ts, rc.OrganizationID, def.ID,
	); err != nil {
		return domain.WrapStorage("bump schema version", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapStorage("migrate schema", err)
	}

	s.invalidateSchema(rc.OrganizationID, def.ObjectType)
	return nil
}

// ListMigrations returns the append-only migration log, oldest first.
func (s *SQLiteRegistry) ListMigrations(ctx context.Context, rc domain.RequestContext, objectType string) ([]domain.PropertyMigration, error) {
	def, err := s.ResolveObjectType(ctx, objectType)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, description, changes, rollback_data, created_at
		 FROM property_migrations WHERE organization_id = ? AND object_definition_id = ?
		 ORDER BY version ASC`,
		rc.OrganizationID, def.ID,
	)
	if err != nil {
		return nil, domain.WrapStorage("list schema migrations", err)
	}
	defer func() { _ = rows.Close() }()

	var migrations []domain.PropertyMigration
	for rows.Next() {
		m := domain.PropertyMigration{OrganizationID: rc.OrganizationID, ObjectDefinitionID: def.ID}
		var id int64
		var changes, rollback sql.NullString
		if err := rows.Scan(&id, &m.Version, &m.Description, &changes, &rollback, &m.CreatedAt); err != nil {
			return nil, domain.WrapStorage("scan schema migration", err)
		}
		m.ID = strconv.FormatInt(id, 10)
		m.Changes = changes.String
		m.RollbackData = rollback.String
		migrations = append(migrations, m)
	}
	return migrations, rows.Err()
}

func (s *SQLiteRegistry) invalidateSchema(orgID, objectType string) {
	s.mu.Lock()
	delete(s.schemas, schemaCacheKey(orgID, objectType))
	s.mu.Unlock()
}
