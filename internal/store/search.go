package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/craftboard/platform/internal/domain"
)

// SearchStore defines filtered, paginated record search.
type SearchStore interface {
	Search(ctx context.Context, rc domain.RequestContext, objectType string, req *domain.SearchRequest) (*domain.SearchResult, error)
	SearchIDs(ctx context.Context, rc domain.RequestContext, objectDefinitionID string, req *domain.SearchRequest) ([]string, error)
}

// SQLiteSearchStore implements SearchStore backed by SQLite.
type SQLiteSearchStore struct {
	db *sql.DB
}

// NewSQLiteSearchStore creates a new SQLiteSearchStore.
func NewSQLiteSearchStore(db *sql.DB) *SQLiteSearchStore {
	return &SQLiteSearchStore{db: db}
}

const (
	maxFilterGroups    = 5
	maxFiltersPerGroup = 6
	maxSearchLimit     = 100
	defaultSearchLimit = 10
)

// Search executes a record search with filters, an optional substring query,
// one sort, and id-cursor pagination. Results are newest first; the cursor is
// the last record id of the previous page, so a concurrent insert never
// shifts rows between pages.
func (s *SQLiteSearchStore) Search(ctx context.Context, rc domain.RequestContext, objectType string, req *domain.SearchRequest) (*domain.SearchResult, error) {
	var defID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM object_definitions WHERE object_type = ? AND active = TRUE`, objectType,
	).Scan(&defID)
	if err != nil {
		return nil, domain.NewError(domain.KindNotFound, "object type %q not found", objectType)
	}

	ids, total, paging, err := s.search(ctx, rc, defID, req)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.Record, 0, len(ids))
	for _, id := range ids {
		var r domain.Record
		var archivedAt sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT id, object_definition_id, organization_id, display_name, archived, archived_at, created_at, updated_at
			 FROM records WHERE id = ?`, id,
		).Scan(&r.ID, &r.ObjectDefinitionID, &r.OrganizationID, &r.DisplayName,
			&r.Archived, &archivedAt, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			continue
		}
		r.ArchivedAt = archivedAt.String

		r.Properties, err = s.pageProperties(ctx, id, req.Properties)
		if err != nil {
			return nil, err
		}
		results = append(results, &r)
	}

	return &domain.SearchResult{Total: total, Results: results, Paging: paging}, nil
}

// SearchIDs runs the same search but returns only matching record ids. Used
// by dynamic list refresh, which needs the full match set rather than a page.
func (s *SQLiteSearchStore) SearchIDs(ctx context.Context, rc domain.RequestContext, objectDefinitionID string, req *domain.SearchRequest) ([]string, error) {
	if err := validateSearchRequest(req); err != nil {
		return nil, err
	}

	fromClause, whereClause, args, _, err := buildSearchClauses(rc, objectDefinitionID, req)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT r.id"+fromClause+whereClause+" ORDER BY r.id DESC", args...)
	if err != nil {
		return nil, domain.WrapStorage("search ids", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.WrapStorage("scan search id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteSearchStore) search(ctx context.Context, rc domain.RequestContext, defID string, req *domain.SearchRequest) (ids []string, total int, paging *domain.SearchPaging, err error) {
	if err := validateSearchRequest(req); err != nil {
		return nil, 0, nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	fromClause, whereClause, baseArgs, sortExpr, err := buildSearchClauses(rc, defID, req)
	if err != nil {
		return nil, 0, nil, err
	}

	countSQL := "SELECT COUNT(DISTINCT r.id)" + fromClause + whereClause
	if err := s.db.QueryRowContext(ctx, countSQL, baseArgs...).Scan(&total); err != nil {
		return nil, 0, nil, domain.WrapStorage("search count", err)
	}

	selectSQL := "SELECT DISTINCT r.id" + fromClause + whereClause
	args := make([]any, len(baseArgs))
	copy(args, baseArgs)

	if req.After != "" {
		after, convErr := strconv.ParseInt(req.After, 10, 64)
		if convErr != nil {
			return nil, 0, nil, domain.NewError(domain.KindSchemaViolation, "invalid after cursor %q", req.After)
		}
		selectSQL += " AND r.id < ?"
		args = append(args, after)
	}

	if sortExpr != "" && len(req.Sorts) > 0 {
		direction := "ASC"
		if strings.EqualFold(req.Sorts[0].Direction, "DESCENDING") {
			direction = "DESC"
		}
		selectSQL += fmt.Sprintf(" ORDER BY %s %s, r.id DESC", sortExpr, direction)
	} else {
		selectSQL += " ORDER BY r.id DESC"
	}
	selectSQL += " LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return nil, 0, nil, domain.WrapStorage("search query", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, 0, nil, domain.WrapStorage("scan search result", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, nil, domain.WrapStorage("search rows", err)
	}

	if len(ids) > limit {
		ids = ids[:limit]
		paging = &domain.SearchPaging{
			Next: domain.SearchPagingNext{After: ids[len(ids)-1]},
		}
	}
	return ids, total, paging, nil
}

func (s *SQLiteSearchStore) pageProperties(ctx context.Context, recordID string, props []string) (map[string]string, error) {
	var rows *sql.Rows
	var err error

	if len(props) == 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT name, value FROM record_properties WHERE record_id = ?`, recordID,
		)
	} else {
		placeholders := make([]string, len(props))
		args := make([]any, 0, len(props)+1)
		args = append(args, recordID)
		for i, p := range props {
			placeholders[i] = "?"
			args = append(args, p)
		}
		rows, err = s.db.QueryContext(ctx,
			`SELECT name, value FROM record_properties WHERE record_id = ? AND name IN (`+strings.Join(placeholders, ",")+`)`,
			args...,
		)
	}
	if err != nil {
		return nil, domain.WrapStorage("load search properties", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, domain.WrapStorage("scan search property", err)
		}
		result[name] = value.String
	}
	return result, rows.Err()
}

func validateSearchRequest(req *domain.SearchRequest) error {
	if req.Limit > maxSearchLimit {
		return domain.NewError(domain.KindSchemaViolation, "limit must be less than or equal to %d", maxSearchLimit)
	}
	if len(req.FilterGroups) > maxFilterGroups {
		return domain.NewError(domain.KindSchemaViolation, "maximum of %d filter groups allowed", maxFilterGroups)
	}
	if len(req.Sorts) > 1 {
		return domain.NewError(domain.KindSchemaViolation, "only one sort is supported")
	}
	for i, group := range req.FilterGroups {
		if len(group.Filters) > maxFiltersPerGroup {
			return domain.NewError(domain.KindSchemaViolation, "maximum of %d filters per group allowed (group %d)", maxFiltersPerGroup, i)
		}
		for _, f := range group.Filters {
			if f.PropertyName == "" {
				return domain.NewError(domain.KindSchemaViolation, "filter propertyName is required")
			}
			if !isValidOperator(f.Operator) {
				return domain.NewError(domain.KindSchemaViolation, "invalid operator: %s", f.Operator)
			}
		}
	}
	return nil
}

func isValidOperator(op string) bool {
	switch op {
	case "EQ", "NEQ", "LT", "LTE", "GT", "GTE",
		"BETWEEN", "IN", "NOT_IN",
		"HAS_PROPERTY", "NOT_HAS_PROPERTY",
		"CONTAINS_TOKEN", "NOT_CONTAINS_TOKEN":
		return true
	}
	return false
}

// buildSearchClauses builds the FROM and WHERE portions of the search query,
// returning them along with the ordered args and the sort column expression
// (if any).
func buildSearchClauses(rc domain.RequestContext, defID string, req *domain.SearchRequest) (fromClause, whereClause string, args []any, sortExpr string, err error) {
	var fromSB strings.Builder
	var whereSB strings.Builder
	filterIdx := 0

	fromSB.WriteString(" FROM records r")

	// LEFT JOIN per filter property, so absent properties are still
	// addressable by HAS_PROPERTY and negations.
	for _, group := range req.FilterGroups {
		for _, f := range group.Filters {
			alias := fmt.Sprintf("rp_f%d", filterIdx)
			fmt.Fprintf(&fromSB, " LEFT JOIN record_properties %s ON %s.record_id = r.id AND %s.name = ?",
				alias, alias, alias)
			args = append(args, f.PropertyName)
			filterIdx++
		}
	}

	// createdAt lives on the records table itself; every other sort key is a
	// property value reached through its own join.
	if len(req.Sorts) > 0 {
		if req.Sorts[0].PropertyName == "createdAt" {
			sortExpr = "r.created_at"
		} else {
			alias := fmt.Sprintf("rp_s%d", filterIdx)
			fmt.Fprintf(&fromSB, " LEFT JOIN record_properties %s ON %s.record_id = r.id AND %s.name = ?",
				alias, alias, alias)
			args = append(args, req.Sorts[0].PropertyName)
			sortExpr = alias + ".value"
		}
	}

	whereSB.WriteString(" WHERE r.object_definition_id = ? AND r.organization_id = ? AND r.archived = FALSE")
	args = append(args, defID, rc.OrganizationID)

	if len(req.FilterGroups) > 0 {
		filterIdx = 0
		var groupClauses []string
		for _, group := range req.FilterGroups {
			var filterClauses []string
			for i := range group.Filters {
				alias := fmt.Sprintf("rp_f%d", filterIdx)
				clause, filterArgs, buildErr := buildFilterClause(alias, &group.Filters[i])
				if buildErr != nil {
					err = buildErr
					return
				}
				filterClauses = append(filterClauses, clause)
				args = append(args, filterArgs...)
				filterIdx++
			}
			groupClauses = append(groupClauses, "("+strings.Join(filterClauses, " AND ")+")")
		}
		whereSB.WriteString(" AND (")
		whereSB.WriteString(strings.Join(groupClauses, " OR "))
		whereSB.WriteString(")")
	}

	// The free-text query matches against the precomputed search vector.
	if req.Query != "" {
		whereSB.WriteString(" AND r.search_vector LIKE ?")
		args = append(args, "%"+strings.ToLower(req.Query)+"%")
	}

	fromClause = fromSB.String()
	whereClause = whereSB.String()
	return
}

func buildFilterClause(alias string, f *domain.Filter) (clause string, args []any, err error) {
	switch f.Operator {
	case "EQ":
		return fmt.Sprintf("%s.value = ?", alias), []any{f.Value}, nil
	case "NEQ":
		return fmt.Sprintf("(%s.value IS NULL OR %s.value != ?)", alias, alias), []any{f.Value}, nil
	case "LT":
		return fmt.Sprintf("%s.value < ?", alias), []any{f.Value}, nil
	case "LTE":
		return fmt.Sprintf("%s.value <= ?", alias), []any{f.Value}, nil
	case "GT":
		return fmt.Sprintf("%s.value > ?", alias), []any{f.Value}, nil
	case "GTE":
		return fmt.Sprintf("%s.value >= ?", alias), []any{f.Value}, nil
	case "BETWEEN":
		return fmt.Sprintf("%s.value BETWEEN ? AND ?", alias), []any{f.Value, f.HighValue}, nil
	case "IN":
		if len(f.Values) == 0 {
			return "1=0", nil, nil
		}
		placeholders := make([]string, len(f.Values))
		fArgs := make([]any, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = "?"
			fArgs[i] = v
		}
		return fmt.Sprintf("%s.value IN (%s)", alias, strings.Join(placeholders, ",")), fArgs, nil
	case "NOT_IN":
		if len(f.Values) == 0 {
			return "1=1", nil, nil
		}
		placeholders := make([]string, len(f.Values))
		fArgs := make([]any, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = "?"
			fArgs[i] = v
		}
		return fmt.Sprintf("(%s.value IS NULL OR %s.value NOT IN (%s))", alias, alias, strings.Join(placeholders, ",")), fArgs, nil
	case "HAS_PROPERTY":
		return fmt.Sprintf("%s.value IS NOT NULL", alias), nil, nil
	case "NOT_HAS_PROPERTY":
		return fmt.Sprintf("%s.value IS NULL", alias), nil, nil
	case "CONTAINS_TOKEN":
		return fmt.Sprintf("%s.value LIKE ?", alias), []any{"%" + f.Value + "%"}, nil
	case "NOT_CONTAINS_TOKEN":
		return fmt.Sprintf("(%s.value IS NULL OR %s.value NOT LIKE ?)", alias, alias), []any{"%" + f.Value + "%"}, nil
	default:
		return "", nil, domain.NewError(domain.KindSchemaViolation, "unsupported operator: %s", f.Operator)
	}
}
