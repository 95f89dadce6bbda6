package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Standard object definition ids. Definitions are platform-level; every
// organization sees the same base schema and customizes it through overlays.
const (
	ClientTypeID  = "0-1"
	CompanyTypeID = "0-2"
	DealTypeID    = "0-3"
	TaskTypeID    = "0-4"
)

type definitionDef struct {
	id             string
	objectType     string
	singular       string
	plural         string
	displayProp    string
	baseProperties []propertyDef
}

type propertyDef struct {
	name     string
	typ      string
	label    string
	required bool
	dflt     string
	options  []string
}

var standardDefinitions = []definitionDef{
	{
		id: ClientTypeID, objectType: "client", singular: "Client", plural: "Clients",
		displayProp: "name",
		baseProperties: []propertyDef{
			{name: "name", typ: "string", label: "Name", required: true},
			{name: "email", typ: "string", label: "Email"},
			{name: "phone", typ: "string", label: "Phone"},
			{name: "lifecycle_stage", typ: "enumeration", label: "Lifecycle Stage", dflt: "lead",
				options: []string{"lead", "opportunity", "customer", "former"}},
		},
	},
	{
		id: CompanyTypeID, objectType: "company", singular: "Company", plural: "Companies",
		displayProp: "name",
		baseProperties: []propertyDef{
			{name: "name", typ: "string", label: "Name", required: true},
			{name: "domain", typ: "string", label: "Domain"},
			{name: "industry", typ: "enumeration", label: "Industry",
				options: []string{"technology", "finance", "healthcare", "retail", "other"}},
			{name: "employee_count", typ: "number", label: "Employee Count"},
		},
	},
	{
		id: DealTypeID, objectType: "deal", singular: "Deal", plural: "Deals",
		displayProp: "title",
		baseProperties: []propertyDef{
			{name: "title", typ: "string", label: "Title", required: true},
			{name: "amount", typ: "number", label: "Amount"},
			{name: "close_date", typ: "date", label: "Close Date"},
			{name: "deal_source", typ: "enumeration", label: "Deal Source",
				options: []string{"inbound", "outbound", "referral", "partner"}},
		},
	},
	{
		id: TaskTypeID, objectType: "task", singular: "Task", plural: "Tasks",
		displayProp: "title",
		baseProperties: []propertyDef{
			{name: "title", typ: "string", label: "Title", required: true},
			{name: "due_date", typ: "date", label: "Due Date"},
			{name: "completed", typ: "boolean", label: "Completed", dflt: "false"},
			{name: "priority", typ: "enumeration", label: "Priority", dflt: "medium",
				options: []string{"low", "medium", "high"}},
		},
	},
}

// ObjectDefinitions inserts the standard object definitions and their base
// properties.
func ObjectDefinitions(ctx context.Context, db *sql.DB) error {
	ts := now()
	for _, def := range standardDefinitions {
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO object_definitions
			 (id, object_type, label_singular, label_plural, primary_display_property, is_custom, active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, FALSE, TRUE, ?, ?)`,
			def.id, def.objectType, def.singular, def.plural, def.displayProp, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("insert definition %s: %w", def.objectType, err)
		}

		for _, p := range def.baseProperties {
			var options any
			if len(p.options) > 0 {
				options = strings.Join(p.options, ";")
			}
			_, err := db.ExecContext(ctx,
				`INSERT OR IGNORE INTO property_definitions
				 (object_definition_id, name, type, label, required, default_value, options, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?)`,
				def.id, p.name, p.typ, p.label, p.required, p.dflt, options, ts, ts,
			)
			if err != nil {
				return fmt.Errorf("insert property %s.%s: %w", def.objectType, p.name, err)
			}
		}
	}
	return nil
}
