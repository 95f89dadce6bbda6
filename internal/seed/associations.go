package seed

import (
	"context"
	"database/sql"
	"fmt"
)

type associationTypeDef struct {
	fromTypeID  string
	toTypeID    string
	name        string
	label       string
	inverse     string
	cardinality string
	cascade     string
}

// systemAssociationTypes are the relationship shapes every organization gets.
var systemAssociationTypes = []associationTypeDef{
	{fromTypeID: ClientTypeID, toTypeID: CompanyTypeID, name: "client_to_company",
		label: "Works at", inverse: "Employs", cardinality: "many-to-one", cascade: "none"},
	{fromTypeID: DealTypeID, toTypeID: ClientTypeID, name: "deal_to_client",
		label: "Deal contact", inverse: "Client deals", cardinality: "many-to-many", cascade: "none"},
	{fromTypeID: DealTypeID, toTypeID: CompanyTypeID, name: "deal_to_company",
		label: "Deal company", inverse: "Company deals", cardinality: "many-to-one", cascade: "none"},
	{fromTypeID: TaskTypeID, toTypeID: ClientTypeID, name: "task_to_client",
		label: "Task for", inverse: "Client tasks", cardinality: "many-to-one", cascade: "to"},
	{fromTypeID: TaskTypeID, toTypeID: DealTypeID, name: "task_to_deal",
		label: "Task on deal", inverse: "Deal tasks", cardinality: "many-to-one", cascade: "to"},
}

// AssociationTypes inserts the system association types.
func AssociationTypes(ctx context.Context, db *sql.DB) error {
	ts := now()
	for _, at := range systemAssociationTypes {
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO association_types
			 (from_object_type_id, to_object_type_id, name, label, inverse_label, cardinality, cascade_delete, is_system, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, TRUE, ?)`,
			at.fromTypeID, at.toTypeID, at.name, at.label, at.inverse, at.cardinality, at.cascade, ts,
		)
		if err != nil {
			return fmt.Errorf("insert association type %s: %w", at.name, err)
		}
	}
	return nil
}
