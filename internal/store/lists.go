package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/craftboard/platform/internal/domain"
)

// ListStore defines manual and dynamic record lists.
type ListStore interface {
	Create(ctx context.Context, rc domain.RequestContext, l *domain.List) (*domain.List, error)
	Get(ctx context.Context, rc domain.RequestContext, id string) (*domain.List, error)
	Archive(ctx context.Context, rc domain.RequestContext, id string) error
	AddMembers(ctx context.Context, rc domain.RequestContext, listID string, recordIDs []string) (*domain.BatchResult, error)
	RemoveMembers(ctx context.Context, rc domain.RequestContext, listID string, recordIDs []string) (*domain.BatchResult, error)
	SetPinned(ctx context.Context, rc domain.RequestContext, listID, recordID string, pinned bool) error
	SetExcluded(ctx context.Context, rc domain.RequestContext, listID, recordID string, excluded bool) error
	GetMemberships(ctx context.Context, rc domain.RequestContext, listID, after string, limit int) (*domain.MembershipPage, error)
	RefreshDynamic(ctx context.Context, rc domain.RequestContext, listID string) (int, error)
}

// SQLiteListStore implements ListStore backed by SQLite.
type SQLiteListStore struct {
	db       *sql.DB
	audit    AuditStore
	counters CounterStore
	search   SearchStore
}

// NewSQLiteListStore creates a new SQLiteListStore.
func NewSQLiteListStore(db *sql.DB, audit AuditStore, counters CounterStore, search SearchStore) *SQLiteListStore {
	return &SQLiteListStore{db: db, audit: audit, counters: counters, search: search}
}

// Create inserts a list. List names are unique per organization. A DYNAMIC
// list must carry a filter branch; its initial membership comes from an
// immediate refresh.
func (s *SQLiteListStore) Create(ctx context.Context, rc domain.RequestContext, l *domain.List) (*domain.List, error) {
	switch l.ProcessingType {
	case domain.ListManual, domain.ListDynamic:
	default:
		return nil, domain.NewError(domain.KindSchemaViolation, "unknown list processing type %q", l.ProcessingType)
	}
	if l.ProcessingType == domain.ListDynamic && len(l.FilterBranch) == 0 {
		return nil, domain.NewError(domain.KindSchemaViolation, "a dynamic list needs a filter branch")
	}

	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lists (organization_id, name, object_definition_id, processing_type, filter_branch, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rc.OrganizationID, l.Name, l.ObjectDefinitionID, l.ProcessingType, nullable(string(l.FilterBranch)), ts, ts,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, domain.NewError(domain.KindDuplicateDefinition, "list %q already exists", l.Name)
		}
		return nil, domain.WrapStorage("insert list", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, domain.WrapStorage("insert list", err)
	}
	l.ID = formatID(id)
	l.OrganizationID = rc.OrganizationID
	l.CreatedAt = ts
	l.UpdatedAt = ts

	if err := s.audit.Append(ctx, s.db, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityList,
		EntityID:       l.ID,
		Action:         domain.ActionDefined,
		NewValues:      mustJSON(l),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return nil, err
	}

	if l.ProcessingType == domain.ListDynamic {
		if _, err := s.RefreshDynamic(ctx, rc, l.ID); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, rc, l.ID)
}

// Get fetches a list by id, scoped to the caller's organization.
func (s *SQLiteListStore) Get(ctx context.Context, rc domain.RequestContext, id string) (*domain.List, error) {
	var l domain.List
	var branch sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, object_definition_id, processing_type, filter_branch, member_count, archived, created_at, updated_at
		 FROM lists WHERE id = ? AND organization_id = ?`,
		id, rc.OrganizationID,
	).Scan(&l.ID, &l.OrganizationID, &l.Name, &l.ObjectDefinitionID, &l.ProcessingType,
		&branch, &l.MemberCount, &l.Archived, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, domain.NewError(domain.KindNotFound, "list %s not found", id)
	}
	if branch.Valid {
		l.FilterBranch = json.RawMessage(branch.String)
	}
	return &l, nil
}

// Archive soft-deletes a list. Membership rows stay for history.
func (s *SQLiteListStore) Archive(ctx context.Context, rc domain.RequestContext, id string) error {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE lists SET archived = TRUE, updated_at = ? WHERE id = ? AND organization_id = ? AND archived = FALSE`,
		ts, id, rc.OrganizationID,
	)
	if err != nil {
		return domain.WrapStorage("archive list", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewError(domain.KindNotFound, "list %s not found", id)
	}

	return s.audit.Append(ctx, s.db, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityList,
		EntityID:       id,
		Action:         domain.ActionArchived,
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	})
}

// AddMembers adds records to a MANUAL list, isolating per-record failures.
// Records already in the list are counted as skipped. Dynamic lists reject
// direct membership writes; pin the record instead.
func (s *SQLiteListStore) AddMembers(ctx context.Context, rc domain.RequestContext, listID string, recordIDs []string) (*domain.BatchResult, error) {
	l, err := s.mutableList(ctx, rc, listID)
	if err != nil {
		return nil, err
	}

	result := &domain.BatchResult{OperationID: uuid.NewString(), StartedAt: now()}
	ts := result.StartedAt
	for i, recordID := range recordIDs {
		defID, err := recordBelongsTo(ctx, s.db, rc, recordID)
		if err == nil && defID != l.ObjectDefinitionID {
			err = domain.NewError(domain.KindSchemaViolation, "record %s is not a %s", recordID, l.ObjectDefinitionID)
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, domain.BatchError{
				Index: i, RecordID: recordID, Kind: string(domain.KindOf(err)), Message: err.Error(),
			})
			continue
		}

		// The membership write and its audit entry commit together; a failed
		// audit write must not leave an untracked member behind.
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, domain.WrapStorage("add list member", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO list_memberships (list_id, record_id, added_at) VALUES (?, ?, ?)`,
			listID, recordID, ts,
		)
		if err != nil {
			_ = tx.Rollback()
			result.Failed++
			result.Errors = append(result.Errors, domain.BatchError{
				Index: i, RecordID: recordID, Kind: string(domain.KindStorageError), Message: err.Error(),
			})
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			_ = tx.Rollback()
			result.Skipped++
			continue
		}

		if err := s.audit.Append(ctx, tx, &domain.AuditLog{
			OrganizationID: rc.OrganizationID,
			EntityType:     domain.EntityList,
			EntityID:       listID,
			Action:         domain.ActionMemberAdded,
			NewValues:      mustJSON(map[string]string{"recordId": recordID}),
			ActorID:        rc.UserID,
			Source:         rc.Source,
			CreatedAt:      ts,
		}); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, domain.WrapStorage("add list member", err)
		}
		result.Success++
	}
	result.CompletedAt = now()

	if err := s.audit.RecordBulkOperation(ctx, &domain.BulkOperationLog{
		ID:             result.OperationID,
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityList,
		Action:         "add_members",
		SuccessCount:   result.Success,
		FailureCount:   result.Failed,
		SkippedCount:   result.Skipped,
		Errors:         mustJSON(result.Errors),
		ActorID:        rc.UserID,
		StartedAt:      result.StartedAt,
		CompletedAt:    result.CompletedAt,
	}); err != nil {
		return nil, err
	}

	s.recount(ctx, listID)
	return result, nil
}

// RemoveMembers removes records from a MANUAL list. Records not in the list
// are counted as skipped.
func (s *SQLiteListStore) RemoveMembers(ctx context.Context, rc domain.RequestContext, listID string, recordIDs []string) (*domain.BatchResult, error) {
	if _, err := s.mutableList(ctx, rc, listID); err != nil {
		return nil, err
	}

	result := &domain.BatchResult{OperationID: uuid.NewString(), StartedAt: now()}
	ts := result.StartedAt
	for i, recordID := range recordIDs {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, domain.WrapStorage("remove list member", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM list_memberships WHERE list_id = ? AND record_id = ?`,
			listID, recordID,
		)
		if err != nil {
			_ = tx.Rollback()
			result.Failed++
			result.Errors = append(result.Errors, domain.BatchError{
				Index: i, RecordID: recordID, Kind: string(domain.KindStorageError), Message: err.Error(),
			})
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			_ = tx.Rollback()
			result.Skipped++
			continue
		}

		if err := s.audit.Append(ctx, tx, &domain.AuditLog{
			OrganizationID: rc.OrganizationID,
			EntityType:     domain.EntityList,
			EntityID:       listID,
			Action:         domain.ActionMemberRemoved,
			PreviousValues: mustJSON(map[string]string{"recordId": recordID}),
			ActorID:        rc.UserID,
			Source:         rc.Source,
			CreatedAt:      ts,
		}); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, domain.WrapStorage("remove list member", err)
		}
		result.Success++
	}
	result.CompletedAt = now()

	if err := s.audit.RecordBulkOperation(ctx, &domain.BulkOperationLog{
		ID:             result.OperationID,
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityList,
		Action:         "remove_members",
		SuccessCount:   result.Success,
		FailureCount:   result.Failed,
		SkippedCount:   result.Skipped,
		Errors:         mustJSON(result.Errors),
		ActorID:        rc.UserID,
		StartedAt:      result.StartedAt,
		CompletedAt:    result.CompletedAt,
	}); err != nil {
		return nil, err
	}

	s.recount(ctx, listID)
	return result, nil
}

// mutableList loads a list and rejects membership writes on DYNAMIC lists.
func (s *SQLiteListStore) mutableList(ctx context.Context, rc domain.RequestContext, listID string) (*domain.List, error) {
	l, err := s.Get(ctx, rc, listID)
	if err != nil {
		return nil, err
	}
	if l.Archived {
		return nil, domain.NewError(domain.KindConflict, "list %s is archived", listID)
	}
	if l.ProcessingType == domain.ListDynamic {
		return nil, domain.NewError(domain.KindConflict, "list %s is dynamic; pin or exclude records instead", listID)
	}
	return l, nil
}

// SetPinned pins a record into a dynamic list so refreshes keep it even when
// it no longer matches the filter. Pinning inserts the membership if absent.
func (s *SQLiteListStore) SetPinned(ctx context.Context, rc domain.RequestContext, listID, recordID string, pinned bool) error {
	return s.setOverride(ctx, rc, listID, recordID, "pinned", pinned)
}

// SetExcluded excludes a record from a dynamic list so refreshes never count
// it even when it matches the filter.
func (s *SQLiteListStore) SetExcluded(ctx context.Context, rc domain.RequestContext, listID, recordID string, excluded bool) error {
	return s.setOverride(ctx, rc, listID, recordID, "excluded", excluded)
}

func (s *SQLiteListStore) setOverride(ctx context.Context, rc domain.RequestContext, listID, recordID, column string, value bool) error {
	l, err := s.Get(ctx, rc, listID)
	if err != nil {
		return err
	}
	if l.Archived {
		return domain.NewError(domain.KindConflict, "list %s is archived", listID)
	}
	if _, err := recordBelongsTo(ctx, s.db, rc, recordID); err != nil {
		return err
	}

	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStorage("set membership override", err)
	}
	defer func() { _ = tx.Rollback() }()

	// column is one of the two fixed override names, never caller input.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO list_memberships (list_id, record_id, added_at, `+column+`) VALUES (?, ?, ?, ?)
		 ON CONFLICT(list_id, record_id) DO UPDATE SET `+column+` = excluded.`+column,
		listID, recordID, ts, value,
	); err != nil {
		return domain.WrapStorage("set membership override", err)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityList,
		EntityID:       listID,
		Action:         domain.ActionUpdated,
		NewValues:      mustJSON(map[string]any{"recordId": recordID, column: value}),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapStorage("set membership override", err)
	}

	s.recount(ctx, listID)
	return nil
}

// GetMemberships pages through a list's members by record id, newest first.
func (s *SQLiteListStore) GetMemberships(ctx context.Context, rc domain.RequestContext, listID, after string, limit int) (*domain.MembershipPage, error) {
	if _, err := s.Get(ctx, rc, listID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := `SELECT list_id, record_id, added_at, pinned, excluded FROM list_memberships WHERE list_id = ? AND excluded = FALSE`
	args := []any{listID}
	if after != "" {
		cursor, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			return nil, domain.NewError(domain.KindSchemaViolation, "invalid after cursor %q", after)
		}
		query += ` AND record_id < ?`
		args = append(args, cursor)
	}
	query += ` ORDER BY record_id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapStorage("list memberships", err)
	}
	defer func() { _ = rows.Close() }()

	page := &domain.MembershipPage{}
	for rows.Next() {
		var m domain.ListMembership
		if err := rows.Scan(&m.ListID, &m.RecordID, &m.AddedAt, &m.Pinned, &m.Excluded); err != nil {
			return nil, domain.WrapStorage("scan membership", err)
		}
		page.Results = append(page.Results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorage("list memberships", err)
	}

	if len(page.Results) > limit {
		page.Results = page.Results[:limit]
		page.HasMore = true
		page.After = page.Results[len(page.Results)-1].RecordID
	}
	return page, nil
}

// RefreshDynamic re-evaluates a dynamic list's filter branch against the
// record store and reconciles the membership rows. Pinned members survive
// falling out of the filter; excluded members never return. Returns the
// resulting member count.
func (s *SQLiteListStore) RefreshDynamic(ctx context.Context, rc domain.RequestContext, listID string) (int, error) {
	l, err := s.Get(ctx, rc, listID)
	if err != nil {
		return 0, err
	}
	if l.ProcessingType != domain.ListDynamic {
		return 0, domain.NewError(domain.KindConflict, "list %s is not dynamic", listID)
	}

	var req domain.SearchRequest
	if err := json.Unmarshal(l.FilterBranch, &req.FilterGroups); err != nil {
		return 0, domain.NewError(domain.KindSchemaViolation, "list %s has a malformed filter branch", listID)
	}

	matched, err := s.search.SearchIDs(ctx, rc, l.ObjectDefinitionID, &req)
	if err != nil {
		return 0, err
	}
	inFilter := make(map[string]bool, len(matched))
	for _, id := range matched {
		inFilter[id] = true
	}

	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.WrapStorage("refresh dynamic list", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT record_id, pinned, excluded FROM list_memberships WHERE list_id = ?`, listID,
	)
	if err != nil {
		return 0, domain.WrapStorage("load memberships", err)
	}
	existing := make(map[string]domain.ListMembership)
	for rows.Next() {
		var m domain.ListMembership
		if err := rows.Scan(&m.RecordID, &m.Pinned, &m.Excluded); err != nil {
			_ = rows.Close()
			return 0, domain.WrapStorage("scan membership", err)
		}
		existing[m.RecordID] = m
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, domain.WrapStorage("load memberships", err)
	}

	for id := range inFilter {
		if _, ok := existing[id]; !ok {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO list_memberships (list_id, record_id, added_at) VALUES (?, ?, ?)`,
				listID, id, ts,
			); err != nil {
				return 0, domain.WrapStorage("insert membership", err)
			}
		}
	}
	for id, m := range existing {
		if !inFilter[id] && !m.Pinned && !m.Excluded {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM list_memberships WHERE list_id = ? AND record_id = ?`,
				listID, id,
			); err != nil {
				return 0, domain.WrapStorage("delete membership", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.WrapStorage("refresh dynamic list", err)
	}

	count, err := s.counters.RecountList(ctx, listID)
	if err != nil {
		slog.Error("list recount failed", "list_id", listID, "error", err)
	}
	return count, nil
}

func (s *SQLiteListStore) recount(ctx context.Context, listID string) {
	if _, err := s.counters.RecountList(ctx, listID); err != nil {
		slog.Error("list recount failed", "list_id", listID, "error", err)
	}
}
