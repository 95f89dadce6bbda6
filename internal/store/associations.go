package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/craftboard/platform/internal/domain"
)

// AssociationStore defines the typed relationship graph between records.
type AssociationStore interface {
	DefineType(ctx context.Context, rc domain.RequestContext, at *domain.AssociationType) (*domain.AssociationType, error)
	GetType(ctx context.Context, typeID string) (*domain.AssociationType, error)
	ListTypes(ctx context.Context) ([]*domain.AssociationType, error)
	Associate(ctx context.Context, rc domain.RequestContext, typeID, fromID, toID string, properties map[string]string) (*domain.Association, error)
	Dissociate(ctx context.Context, rc domain.RequestContext, typeID, fromID, toID string) error
	GetAssociations(ctx context.Context, rc domain.RequestContext, recordID string, direction domain.AssociationDirection, typeID string) ([]domain.AssociationView, error)
	SetOrganizationLabel(ctx context.Context, rc domain.RequestContext, typeID, label, inverseLabel string) error
}

// SQLiteAssociationStore implements AssociationStore backed by SQLite.
type SQLiteAssociationStore struct {
	db    *sql.DB
	audit AuditStore
}

// NewSQLiteAssociationStore creates a new SQLiteAssociationStore.
func NewSQLiteAssociationStore(db *sql.DB, audit AuditStore) *SQLiteAssociationStore {
	return &SQLiteAssociationStore{db: db, audit: audit}
}

// DefineType registers a new association type. The (from, to, name) triple is
// unique; explicit max bounds must cover the min bounds.
func (s *SQLiteAssociationStore) DefineType(ctx context.Context, rc domain.RequestContext, at *domain.AssociationType) (*domain.AssociationType, error) {
	if !domain.ValidCardinality(at.Cardinality) {
		return nil, domain.NewError(domain.KindSchemaViolation, "unknown cardinality %q", at.Cardinality)
	}
	if at.FromMin < 0 || at.ToMin < 0 {
		return nil, domain.NewError(domain.KindSchemaViolation, "association bounds cannot be negative")
	}
	if at.FromMax > 0 && at.FromMax < at.FromMin {
		return nil, domain.NewError(domain.KindSchemaViolation, "from_max %d is below from_min %d", at.FromMax, at.FromMin)
	}
	if at.ToMax > 0 && at.ToMax < at.ToMin {
		return nil, domain.NewError(domain.KindSchemaViolation, "to_max %d is below to_min %d", at.ToMax, at.ToMin)
	}
	if at.CascadeDelete == "" {
		at.CascadeDelete = domain.CascadeNone
	}

	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO association_types
		 (from_object_type_id, to_object_type_id, name, label, inverse_label, cardinality,
		  from_min, from_max, to_min, to_max, cascade_delete, is_system, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		at.FromObjectTypeID, at.ToObjectTypeID, at.Name, at.Label, at.InverseLabel,
		string(at.Cardinality), at.FromMin, at.FromMax, at.ToMin, at.ToMax,
		string(at.CascadeDelete), at.IsSystemType, ts,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, domain.NewError(domain.KindDuplicateDefinition,
				"association type %q between %s and %s already exists", at.Name, at.FromObjectTypeID, at.ToObjectTypeID)
		}
		return nil, domain.WrapStorage("define association type", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, domain.WrapStorage("define association type", err)
	}
	at.ID = formatID(id)
	at.CreatedAt = ts

	if err := s.audit.Append(ctx, s.db, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityAssociationType,
		EntityID:       at.ID,
		Action:         domain.ActionDefined,
		NewValues:      mustJSON(at),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return nil, err
	}
	return at, nil
}

// GetType fetches one association type by id.
func (s *SQLiteAssociationStore) GetType(ctx context.Context, typeID string) (*domain.AssociationType, error) {
	return scanAssociationType(s.db.QueryRowContext(ctx,
		`SELECT id, from_object_type_id, to_object_type_id, name, label, inverse_label,
		        cardinality, from_min, from_max, to_min, to_max, cascade_delete, is_system, created_at
		 FROM association_types WHERE id = ?`, typeID))
}

// ListTypes returns every registered association type.
func (s *SQLiteAssociationStore) ListTypes(ctx context.Context) ([]*domain.AssociationType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_object_type_id, to_object_type_id, name, label, inverse_label,
		        cardinality, from_min, from_max, to_min, to_max, cascade_delete, is_system, created_at
		 FROM association_types ORDER BY id`)
	if err != nil {
		return nil, domain.WrapStorage("list association types", err)
	}
	defer func() { _ = rows.Close() }()

	var types []*domain.AssociationType
	for rows.Next() {
		at, err := scanAssociationType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, at)
	}
	return types, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssociationType(row rowScanner) (*domain.AssociationType, error) {
	var at domain.AssociationType
	var inverse sql.NullString
	err := row.Scan(&at.ID, &at.FromObjectTypeID, &at.ToObjectTypeID, &at.Name,
		&at.Label, &inverse, &at.Cardinality, &at.FromMin, &at.FromMax,
		&at.ToMin, &at.ToMax, &at.CascadeDelete, &at.IsSystemType, &at.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewError(domain.KindNotFound, "association type not found")
		}
		return nil, domain.WrapStorage("scan association type", err)
	}
	at.InverseLabel = inverse.String
	return &at, nil
}

// Associate creates an active edge of the given type between two records.
// Both endpoints must belong to the caller's organization and match the
// type's declared object types. Re-associating an end-dated pair reactivates
// the same row; an already active pair is returned unchanged. Cardinality
// caps count only active edges.
func (s *SQLiteAssociationStore) Associate(ctx context.Context, rc domain.RequestContext, typeID, fromID, toID string, properties map[string]string) (*domain.Association, error) {
	at, err := s.GetType(ctx, typeID)
	if err != nil {
		return nil, err
	}

	fromDef, err := recordBelongsTo(ctx, s.db, rc, fromID)
	if err != nil {
		return nil, err
	}
	toDef, err := recordBelongsTo(ctx, s.db, rc, toID)
	if err != nil {
		return nil, err
	}
	if fromDef != at.FromObjectTypeID || toDef != at.ToObjectTypeID {
		return nil, domain.NewError(domain.KindSchemaViolation,
			"association type %q does not connect these object types", at.Name)
	}

	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapStorage("associate", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Idempotency: an existing row for this exact pair is either still active
	// (no-op) or end-dated (reactivated in place).
	var existingID string
	var endDate sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT id, end_date FROM associations WHERE type_id = ? AND from_record_id = ? AND to_record_id = ?`,
		typeID, fromID, toID,
	).Scan(&existingID, &endDate)
	switch {
	case err == nil && !endDate.Valid:
		return s.loadEdge(ctx, tx, existingID)
	case err == nil:
		if err := s.checkCardinality(ctx, tx, at, fromID, toID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE associations SET end_date = NULL, start_date = ?, properties = ? WHERE id = ?`,
			ts, mustJSON(properties), existingID,
		); err != nil {
			return nil, domain.WrapStorage("reactivate association", err)
		}
	case err == sql.ErrNoRows:
		if err := s.checkCardinality(ctx, tx, at, fromID, toID); err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO associations (type_id, from_record_id, to_record_id, organization_id, properties, start_date, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			typeID, fromID, toID, rc.OrganizationID, mustJSON(properties), ts, ts,
		)
		if err != nil {
			return nil, domain.WrapStorage("insert association", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, domain.WrapStorage("insert association", err)
		}
		existingID = formatID(id)
	default:
		return nil, domain.WrapStorage("look up association", err)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityAssociation,
		EntityID:       existingID,
		Action:         domain.ActionAssociated,
		NewValues:      mustJSON(map[string]string{"typeId": typeID, "fromRecordId": fromID, "toRecordId": toID}),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return nil, err
	}

	edge, err := s.loadEdge(ctx, tx, existingID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.WrapStorage("associate", err)
	}
	return edge, nil
}

// checkCardinality enforces the type's effective caps, counting only active
// edges. The cardinality enum implies caps that explicit bounds may tighten.
func (s *SQLiteAssociationStore) checkCardinality(ctx context.Context, q dbtx, at *domain.AssociationType, fromID, toID string) error {
	capFrom, capTo := effectiveCaps(at)

	if capFrom > 0 {
		var n int
		if err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM associations WHERE type_id = ? AND from_record_id = ? AND end_date IS NULL`,
			at.ID, fromID,
		).Scan(&n); err != nil {
			return domain.WrapStorage("count associations", err)
		}
		if n >= capFrom {
			return domain.NewError(domain.KindCardinalityViolation,
				"record %s already has %d active %q associations (limit %d)", fromID, n, at.Name, capFrom)
		}
	}
	if capTo > 0 {
		var n int
		if err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM associations WHERE type_id = ? AND to_record_id = ? AND end_date IS NULL`,
			at.ID, toID,
		).Scan(&n); err != nil {
			return domain.WrapStorage("count associations", err)
		}
		if n >= capTo {
			return domain.NewError(domain.KindCardinalityViolation,
				"record %s already has %d active %q associations (limit %d)", toID, n, at.Name, capTo)
		}
	}
	return nil
}

// effectiveCaps resolves the per-endpoint edge caps: the cardinality enum
// sets implicit caps of one, and explicit max bounds tighten further.
func effectiveCaps(at *domain.AssociationType) (capFrom, capTo int) {
	capFrom, capTo = at.FromMax, at.ToMax
	switch at.Cardinality {
	case domain.OneToOne:
		capFrom, capTo = tighten(capFrom, 1), tighten(capTo, 1)
	case domain.OneToMany:
		// Each "to" record belongs to at most one "from" record.
		capTo = tighten(capTo, 1)
	case domain.ManyToOne:
		capFrom = tighten(capFrom, 1)
	}
	return capFrom, capTo
}

func tighten(current, limit int) int {
	if current == 0 || current > limit {
		return limit
	}
	return current
}

func (s *SQLiteAssociationStore) loadEdge(ctx context.Context, q dbtx, id string) (*domain.Association, error) {
	var a domain.Association
	var propsJSON string
	var endDate sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, type_id, from_record_id, to_record_id, organization_id, properties, start_date, end_date, created_at
		 FROM associations WHERE id = ?`, id,
	).Scan(&a.ID, &a.TypeID, &a.FromRecordID, &a.ToRecordID, &a.OrganizationID,
		&propsJSON, &a.StartDate, &endDate, &a.CreatedAt)
	if err != nil {
		return nil, domain.WrapStorage("load association", err)
	}
	a.EndDate = endDate.String
	if propsJSON != "" && propsJSON != "{}" {
		_ = json.Unmarshal([]byte(propsJSON), &a.Properties)
	}
	return &a, nil
}

// Dissociate end-dates the active edge between two records. The row stays
// for history. A pair with no active edge is NotFound.
func (s *SQLiteAssociationStore) Dissociate(ctx context.Context, rc domain.RequestContext, typeID, fromID, toID string) error {
	if _, err := recordBelongsTo(ctx, s.db, rc, fromID); err != nil {
		return err
	}
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStorage("dissociate", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM associations WHERE type_id = ? AND from_record_id = ? AND to_record_id = ? AND end_date IS NULL`,
		typeID, fromID, toID,
	).Scan(&id)
	if err != nil {
		return domain.NewError(domain.KindNotFound, "no active association between %s and %s", fromID, toID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE associations SET end_date = ? WHERE id = ?`, ts, id,
	); err != nil {
		return domain.WrapStorage("end-date association", err)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityAssociation,
		EntityID:       id,
		Action:         domain.ActionDissociated,
		NewValues:      mustJSON(map[string]string{"typeId": typeID, "fromRecordId": fromID, "toRecordId": toID}),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapStorage("dissociate", err)
	}
	return nil
}

// GetAssociations returns the active edges touching a record from one
// direction, with the counterpart record resolved and the display label
// taken from the organization's override when one exists.
func (s *SQLiteAssociationStore) GetAssociations(ctx context.Context, rc domain.RequestContext, recordID string, direction domain.AssociationDirection, typeID string) ([]domain.AssociationView, error) {
	if _, err := recordBelongsTo(ctx, s.db, rc, recordID); err != nil {
		return nil, err
	}

	self, other, labelCol := "from_record_id", "to_record_id", "label"
	if direction == domain.DirectionTo {
		self, other, labelCol = "to_record_id", "from_record_id", "inverse_label"
	}

	// The counterpart record is joined into the same query: the pool runs a
	// single connection, so a nested query while rows are open would block on
	// itself.
	query := `SELECT a.type_id, t.name,
	                 COALESCE(NULLIF(ol.` + labelCol + `, ''), NULLIF(t.` + labelCol + `, ''), t.label),
	                 a.properties, a.start_date,
	                 r.id, r.object_definition_id, r.organization_id, r.display_name, r.archived, r.created_at, r.updated_at
	          FROM associations a
	          JOIN association_types t ON t.id = a.type_id
	          JOIN records r ON r.id = a.` + other + ` AND r.organization_id = a.organization_id
	          LEFT JOIN organization_association_labels ol
	            ON ol.association_type_id = a.type_id AND ol.organization_id = a.organization_id
	          WHERE a.` + self + ` = ? AND a.organization_id = ? AND a.end_date IS NULL`
	args := []any{recordID, rc.OrganizationID}
	if typeID != "" {
		query += ` AND a.type_id = ?`
		args = append(args, typeID)
	}
	query += ` ORDER BY a.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapStorage("list associations", err)
	}
	defer func() { _ = rows.Close() }()

	var views []domain.AssociationView
	for rows.Next() {
		var v domain.AssociationView
		var r domain.Record
		var propsJSON string
		if err := rows.Scan(&v.TypeID, &v.TypeName, &v.Label, &propsJSON, &v.StartDate,
			&r.ID, &r.ObjectDefinitionID, &r.OrganizationID, &r.DisplayName, &r.Archived, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, domain.WrapStorage("scan association", err)
		}
		if propsJSON != "" && propsJSON != "{}" {
			_ = json.Unmarshal([]byte(propsJSON), &v.Properties)
		}
		v.Counterpart = &r
		views = append(views, v)
	}
	return views, rows.Err()
}

// SetOrganizationLabel overrides a system association type's display label
// for the caller's organization only.
func (s *SQLiteAssociationStore) SetOrganizationLabel(ctx context.Context, rc domain.RequestContext, typeID, label, inverseLabel string) error {
	if _, err := s.GetType(ctx, typeID); err != nil {
		return err
	}
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStorage("set association label", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO organization_association_labels (organization_id, association_type_id, label, inverse_label)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(organization_id, association_type_id) DO UPDATE SET label = excluded.label, inverse_label = excluded.inverse_label`,
		rc.OrganizationID, typeID, label, inverseLabel,
	); err != nil {
		return domain.WrapStorage("set association label", err)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityAssociationType,
		EntityID:       typeID,
		Action:         domain.ActionUpdated,
		NewValues:      mustJSON(map[string]string{"label": label, "inverseLabel": inverseLabel}),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapStorage("set association label", err)
	}
	return nil
}

// cascadeOnArchive end-dates edges touching an archived record when the
// association type's cascade policy names the archived endpoint. Runs inside
// the caller's archive transaction.
func (s *SQLiteAssociationStore) cascadeOnArchive(ctx context.Context, tx *sql.Tx, rc domain.RequestContext, recordID, ts string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE associations SET end_date = ?
		 WHERE end_date IS NULL AND organization_id = ?
		   AND from_record_id = ?
		   AND type_id IN (SELECT id FROM association_types WHERE cascade_delete IN ('from', 'both'))`,
		ts, rc.OrganizationID, recordID,
	); err != nil {
		return domain.WrapStorage("cascade associations", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE associations SET end_date = ?
		 WHERE end_date IS NULL AND organization_id = ?
		   AND to_record_id = ?
		   AND type_id IN (SELECT id FROM association_types WHERE cascade_delete IN ('to', 'both'))`,
		ts, rc.OrganizationID, recordID,
	); err != nil {
		return domain.WrapStorage("cascade associations", err)
	}
	return nil
}
