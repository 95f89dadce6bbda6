package store

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/craftboard/platform/internal/domain"
)

// RecordStore defines generic create/read/update/archive over property-bag
// records of a given object type.
type RecordStore interface {
	Create(ctx context.Context, rc domain.RequestContext, objectType string, properties map[string]string) (*domain.Record, error)
	Get(ctx context.Context, rc domain.RequestContext, id string, opts domain.GetOpts) (*domain.Record, error)
	Update(ctx context.Context, rc domain.RequestContext, id string, properties map[string]string) (*domain.Record, error)
	Archive(ctx context.Context, rc domain.RequestContext, id string) error
	Unarchive(ctx context.Context, rc domain.RequestContext, id string) error
	BatchCreate(ctx context.Context, rc domain.RequestContext, objectType string, inputs []domain.CreateInput) (*domain.BatchResult, error)
	BatchUpdate(ctx context.Context, rc domain.RequestContext, inputs []domain.UpdateInput) (*domain.BatchResult, error)
}

// SQLiteRecordStore implements RecordStore backed by SQLite.
type SQLiteRecordStore struct {
	db           *sql.DB
	registry     Registry
	audit        AuditStore
	associations *SQLiteAssociationStore
	pipelines    *SQLitePipelineStore
}

// NewSQLiteRecordStore creates a new SQLiteRecordStore.
func NewSQLiteRecordStore(db *sql.DB, registry Registry, audit AuditStore, associations *SQLiteAssociationStore, pipelines *SQLitePipelineStore) *SQLiteRecordStore {
	return &SQLiteRecordStore{
		db:           db,
		registry:     registry,
		audit:        audit,
		associations: associations,
		pipelines:    pipelines,
	}
}

// displayNameCandidates are tried in order when the definition has no
// primary display property.
var displayNameCandidates = []string{"name", "title", "email", "domain"}

// Create validates properties against the merged schema, derives display
// name and search vector, inserts the record, and emits a created audit
// entry plus per-property history. If the object type has a default pipeline
// the record enters its first stage.
func (s *SQLiteRecordStore) Create(ctx context.Context, rc domain.RequestContext, objectType string, properties map[string]string) (*domain.Record, error) {
	merged, err := s.registry.GetMergedSchema(ctx, rc, objectType)
	if err != nil {
		return nil, err
	}

	props := applyDefaults(merged, properties)
	if err := validateProperties(merged, props, true); err != nil {
		return nil, err
	}

	ts := now()
	def := merged.ObjectDefinition

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapStorage("create record", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO records (object_definition_id, organization_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		def.ID, rc.OrganizationID, ts, ts,
	)
	if err != nil {
		return nil, domain.WrapStorage("insert record", err)
	}
	idInt, err := res.LastInsertId()
	if err != nil {
		return nil, domain.WrapStorage("last insert id", err)
	}
	id := strconv.FormatInt(idInt, 10)

	for name, value := range props {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO record_properties (record_id, name, value, updated_at) VALUES (?, ?, ?, ?)`,
			idInt, name, value, ts,
		); err != nil {
			return nil, domain.WrapStorage("insert record property", err)
		}
	}

	displayName := deriveDisplayName(def, props, id)
	searchVector := deriveSearchVector(props)
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET display_name = ?, search_vector = ? WHERE id = ?`,
		displayName, searchVector, idInt,
	); err != nil {
		return nil, domain.WrapStorage("update derived fields", err)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityRecord,
		EntityID:       id,
		Action:         domain.ActionCreated,
		ChangedFields:  sortedKeys(props),
		NewValues:      mustJSON(props),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return nil, err
	}
	for name, value := range props {
		if err := s.audit.AppendPropertyHistory(ctx, tx, &domain.PropertyHistory{
			OrganizationID: rc.OrganizationID,
			RecordID:       id,
			PropertyName:   name,
			NewValue:       value,
			ActorID:        rc.UserID,
			Source:         rc.Source,
			ChangedAt:      ts,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.WrapStorage("create record", err)
	}

	record := &domain.Record{
		ID:                 id,
		ObjectDefinitionID: def.ID,
		OrganizationID:     rc.OrganizationID,
		Properties:         props,
		DisplayName:        displayName,
		SearchVector:       searchVector,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}

	if err := s.pipelines.EnterDefaultPipeline(ctx, rc, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Get retrieves a single record, scoped strictly to the caller's
// organization. Cross-tenant ids are NotFound.
func (s *SQLiteRecordStore) Get(ctx context.Context, rc domain.RequestContext, id string, opts domain.GetOpts) (*domain.Record, error) {
	record, err := s.load(ctx, s.db, rc, id)
	if err != nil {
		return nil, err
	}

	if len(opts.Properties) > 0 {
		filtered := make(map[string]string, len(opts.Properties))
		for _, name := range opts.Properties {
			if v, ok := record.Properties[name]; ok {
				filtered[name] = v
			}
		}
		record.Properties = filtered
	}

	if opts.Associations {
		record.Associations, err = s.associations.GetAssociations(ctx, rc, id, domain.DirectionFrom, "")
		if err != nil {
			return nil, err
		}
	}
	return record, nil
}

func (s *SQLiteRecordStore) load(ctx context.Context, q dbtx, rc domain.RequestContext, id string) (*domain.Record, error) {
	var record domain.Record
	var archivedAt sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, object_definition_id, organization_id, display_name, search_vector, archived, archived_at, created_at, updated_at
		 FROM records WHERE id = ? AND organization_id = ?`,
		id, rc.OrganizationID,
	).Scan(&record.ID, &record.ObjectDefinitionID, &record.OrganizationID,
		&record.DisplayName, &record.SearchVector, &record.Archived, &archivedAt,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, domain.NewError(domain.KindNotFound, "record %s not found", id)
	}
	record.ID = id
	record.ArchivedAt = archivedAt.String

	record.Properties, err = loadRecordProperties(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func loadRecordProperties(ctx context.Context, q dbtx, id string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, value FROM record_properties WHERE record_id = ?`, id,
	)
	if err != nil {
		return nil, domain.WrapStorage("load record properties", err)
	}
	defer func() { _ = rows.Close() }()

	props := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, domain.WrapStorage("scan record property", err)
		}
		props[name] = value.String
	}
	return props, rows.Err()
}

// Update merges the given properties into the record (partial update),
// re-validating only the supplied keys, and emits an updated audit entry with
// a before/after diff restricted to the keys that actually changed.
func (s *SQLiteRecordStore) Update(ctx context.Context, rc domain.RequestContext, id string, properties map[string]string) (*domain.Record, error) {
	record, err := s.load(ctx, s.db, rc, id)
	if err != nil {
		return nil, err
	}
	if record.Archived {
		return nil, domain.NewError(domain.KindConflict, "record %s is archived", id)
	}

	def, err := s.definitionByID(ctx, record.ObjectDefinitionID)
	if err != nil {
		return nil, err
	}
	merged, err := s.registry.GetMergedSchema(ctx, rc, def.ObjectType)
	if err != nil {
		return nil, err
	}
	if err := validateProperties(merged, properties, false); err != nil {
		return nil, err
	}

	previous := make(map[string]string)
	next := make(map[string]string)
	for name, value := range properties {
		if old, ok := record.Properties[name]; !ok || old != value {
			if ok {
				previous[name] = old
			}
			next[name] = value
		}
	}
	if len(next) == 0 {
		return record, nil
	}

	ts := now()
	for name, value := range properties {
		record.Properties[name] = value
	}
	displayName := deriveDisplayName(merged.ObjectDefinition, record.Properties, id)
	searchVector := deriveSearchVector(record.Properties)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapStorage("update record", err)
	}
	defer func() { _ = tx.Rollback() }()

	for name, value := range next {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO record_properties (record_id, name, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(record_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			id, name, value, ts,
		); err != nil {
			return nil, domain.WrapStorage("upsert record property", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET display_name = ?, search_vector = ?, updated_at = ? WHERE id = ?`,
		displayName, searchVector, ts, id,
	); err != nil {
		return nil, domain.WrapStorage("update derived fields", err)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityRecord,
		EntityID:       id,
		Action:         domain.ActionUpdated,
		ChangedFields:  sortedKeys(next),
		PreviousValues: mustJSON(previous),
		NewValues:      mustJSON(next),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return nil, err
	}
	for name, value := range next {
		if err := s.audit.AppendPropertyHistory(ctx, tx, &domain.PropertyHistory{
			OrganizationID: rc.OrganizationID,
			RecordID:       id,
			PropertyName:   name,
			PreviousValue:  previous[name],
			NewValue:       value,
			ActorID:        rc.UserID,
			Source:         rc.Source,
			ChangedAt:      ts,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.WrapStorage("update record", err)
	}

	record.DisplayName = displayName
	record.SearchVector = searchVector
	record.UpdatedAt = ts
	return record, nil
}

// Archive soft-deletes a record. Association edges are end-dated per each
// association type's cascade policy; history stays addressable.
func (s *SQLiteRecordStore) Archive(ctx context.Context, rc domain.RequestContext, id string) error {
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStorage("archive record", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE records SET archived = TRUE, archived_at = ?, updated_at = ? WHERE id = ? AND organization_id = ? AND archived = FALSE`,
		ts, ts, id, rc.OrganizationID,
	)
	if err != nil {
		return domain.WrapStorage("archive record", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewError(domain.KindNotFound, "record %s not found", id)
	}

	if err := s.associations.cascadeOnArchive(ctx, tx, rc, id, ts); err != nil {
		return err
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityRecord,
		EntityID:       id,
		Action:         domain.ActionArchived,
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapStorage("archive record", err)
	}
	return nil
}

// Unarchive restores an archived record.
func (s *SQLiteRecordStore) Unarchive(ctx context.Context, rc domain.RequestContext, id string) error {
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStorage("unarchive record", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE records SET archived = FALSE, archived_at = NULL, updated_at = ? WHERE id = ? AND organization_id = ? AND archived = TRUE`,
		ts, id, rc.OrganizationID,
	)
	if err != nil {
		return domain.WrapStorage("unarchive record", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewError(domain.KindNotFound, "record %s not found", id)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityRecord,
		EntityID:       id,
		Action:         domain.ActionUnarchived,
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapStorage("unarchive record", err)
	}
	return nil
}

// BatchCreate creates multiple records, isolating per-item failures. There is
// no implicit rollback across the batch; callers needing all-or-nothing wrap
// the call themselves. One bulk operation row records the aggregate outcome,
// with the created ids as rollback data.
func (s *SQLiteRecordStore) BatchCreate(ctx context.Context, rc domain.RequestContext, objectType string, inputs []domain.CreateInput) (*domain.BatchResult, error) {
	result := &domain.BatchResult{
		OperationID: uuid.NewString(),
		StartedAt:   now(),
	}

	var createdIDs []string
	for i, input := range inputs {
		record, err := s.Create(ctx, rc, objectType, input.Properties)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, domain.BatchError{
				Index:   i,
				Kind:    string(domain.KindOf(err)),
				Message: err.Error(),
			})
			continue
		}
		result.Success++
		result.Results = append(result.Results, record)
		createdIDs = append(createdIDs, record.ID)
	}
	result.CompletedAt = now()

	if err := s.audit.RecordBulkOperation(ctx, &domain.BulkOperationLog{
		ID:             result.OperationID,
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityRecord,
		Action:         "batch_create",
		SuccessCount:   result.Success,
		FailureCount:   result.Failed,
		Errors:         mustJSON(result.Errors),
		RollbackData:   mustJSON(createdIDs),
		ActorID:        rc.UserID,
		StartedAt:      result.StartedAt,
		CompletedAt:    result.CompletedAt,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// BatchUpdate updates multiple records, isolating per-item failures. Rollback
// data captures the previous values of every changed record.
func (s *SQLiteRecordStore) BatchUpdate(ctx context.Context, rc domain.RequestContext, inputs []domain.UpdateInput) (*domain.BatchResult, error) {
	result := &domain.BatchResult{
		OperationID: uuid.NewString(),
		StartedAt:   now(),
	}

	rollback := make(map[string]map[string]string)
	for i, input := range inputs {
		before, err := s.load(ctx, s.db, rc, input.ID)
		if err == nil {
			prior := make(map[string]string, len(input.Properties))
			for name := range input.Properties {
				prior[name] = before.Properties[name]
			}
			rollback[input.ID] = prior
		}

		record, err := s.Update(ctx, rc, input.ID, input.Properties)
		if err != nil {
			delete(rollback, input.ID)
			result.Failed++
			result.Errors = append(result.Errors, domain.BatchError{
				Index:    i,
				RecordID: input.ID,
				Kind:     string(domain.KindOf(err)),
				Message:  err.Error(),
			})
			continue
		}
		result.Success++
		result.Results = append(result.Results, record)
	}
	result.CompletedAt = now()

	if err := s.audit.RecordBulkOperation(ctx, &domain.BulkOperationLog{
		ID:             result.OperationID,
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityRecord,
		Action:         "batch_update",
		SuccessCount:   result.Success,
		FailureCount:   result.Failed,
		Errors:         mustJSON(result.Errors),
		RollbackData:   mustJSON(rollback),
		ActorID:        rc.UserID,
		StartedAt:      result.StartedAt,
		CompletedAt:    result.CompletedAt,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLiteRecordStore) definitionByID(ctx context.Context, defID string) (*domain.ObjectDefinition, error) {
	var objectType string
	err := s.db.QueryRowContext(ctx,
		`SELECT object_type FROM object_definitions WHERE id = ?`, defID,
	).Scan(&objectType)
	if err != nil {
		return nil, domain.NewError(domain.KindNotFound, "object definition %s not found", defID)
	}
	return s.registry.ResolveObjectType(ctx, objectType)
}

// applyDefaults fills in schema defaults for keys the caller did not supply.
func applyDefaults(merged *domain.MergedSchema, properties map[string]string) map[string]string {
	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	for name, def := range merged.Properties {
		if def.Default == "" || def.Type == domain.PropCalculated {
			continue
		}
		if _, ok := props[name]; !ok {
			props[name] = def.Default
		}
	}
	return props
}

// validateProperties checks the supplied keys against the merged schema.
// Unknown keys and writes to calculated properties are schema violations;
// on create, required keys must be present and non-empty.
func validateProperties(merged *domain.MergedSchema, properties map[string]string, isCreate bool) error {
	for name, value := range properties {
		def, ok := merged.Properties[name]
		if !ok {
			return domain.NewError(domain.KindSchemaViolation, "property %q is not defined in the schema", name)
		}
		if def.Type == domain.PropCalculated {
			return domain.NewError(domain.KindSchemaViolation, "property %q is calculated and read-only", name)
		}
		if err := checkPropertyValue(def, value); err != nil {
			return err
		}
	}

	if isCreate {
		for name, def := range merged.Properties {
			if !def.Required {
				continue
			}
			if v, ok := properties[name]; !ok || v == "" {
				return domain.NewError(domain.KindRequiredPropertyMissing, "required property %q is missing", name)
			}
		}
	}
	return nil
}

func checkPropertyValue(def domain.PropertyDefinition, value string) error {
	if value == "" {
		return nil
	}
	switch def.Type {
	case domain.PropNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return domain.NewError(domain.KindSchemaViolation, "property %q expects a number, got %q", def.Name, value)
		}
	case domain.PropBoolean:
		if value != "true" && value != "false" {
			return domain.NewError(domain.KindSchemaViolation, "property %q expects true or false, got %q", def.Name, value)
		}
	case domain.PropDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return domain.NewError(domain.KindSchemaViolation, "property %q expects a YYYY-MM-DD date, got %q", def.Name, value)
		}
	case domain.PropDateTime:
		if _, err := time.Parse(timestampLayout, value); err != nil {
			if _, err := time.Parse(time.RFC3339, value); err != nil {
				return domain.NewError(domain.KindSchemaViolation, "property %q expects a timestamp, got %q", def.Name, value)
			}
		}
	case domain.PropEnumeration:
		if !optionAllowed(def.Options, value) {
			return domain.NewError(domain.KindSchemaViolation, "property %q value %q is not an allowed option", def.Name, value)
		}
	case domain.PropMultiSelect:
		for _, v := range strings.Split(value, ";") {
			if v != "" && !optionAllowed(def.Options, v) {
				return domain.NewError(domain.KindSchemaViolation, "property %q value %q is not an allowed option", def.Name, v)
			}
		}
	}
	return nil
}

func optionAllowed(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

// deriveDisplayName picks the primary display property if configured, then
// the first of the conventional name properties, then a type+id fallback.
func deriveDisplayName(def *domain.ObjectDefinition, props map[string]string, id string) string {
	if def.PrimaryDisplayProperty != "" {
		if v := props[def.PrimaryDisplayProperty]; v != "" {
			return v
		}
	}
	for _, name := range displayNameCandidates {
		if v := props[name]; v != "" {
			return v
		}
	}
	return def.LabelSingular + " " + id
}

// deriveSearchVector lower-cases and concatenates every property value, in
// key order so the vector is stable for identical property bags.
func deriveSearchVector(props map[string]string) string {
	keys := sortedKeys(props)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := props[k]; v != "" {
			parts = append(parts, strings.ToLower(v))
		}
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
