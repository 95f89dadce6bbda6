package domain

// PropertyType is the closed enumeration of property value types.
type PropertyType string

const (
	PropString      PropertyType = "string"
	PropNumber      PropertyType = "number"
	PropBoolean     PropertyType = "boolean"
	PropDate        PropertyType = "date"
	PropDateTime    PropertyType = "datetime"
	PropEnumeration PropertyType = "enumeration"
	PropMultiSelect PropertyType = "multi_select"
	PropReference   PropertyType = "reference"
	PropJSON        PropertyType = "json"
	PropCalculated  PropertyType = "calculated"
)

// ValidPropertyType reports whether t is a member of the enumeration.
func ValidPropertyType(t PropertyType) bool {
	switch t {
	case PropString, PropNumber, PropBoolean, PropDate, PropDateTime,
		PropEnumeration, PropMultiSelect, PropReference, PropJSON, PropCalculated:
		return true
	}
	return false
}

// PropertyDefinition describes one property in an object type's schema.
type PropertyDefinition struct {
	Name       string       `json:"name"`
	Type       PropertyType `json:"type"`
	Label      string       `json:"label"`
	Required   bool         `json:"required"`
	Default    string       `json:"default,omitempty"`
	Validation string       `json:"validation,omitempty"`
	Options    []string     `json:"options,omitempty"`
	Reference  string       `json:"reference,omitempty"`
}

// PropertyOverride is a per-property patch applied by an organization
// overlay. Nil fields leave the base definition untouched. Hidden moves the
// property to the overlay's hidden set instead of patching it.
type PropertyOverride struct {
	Label    *string  `json:"label,omitempty"`
	Required *bool    `json:"required,omitempty"`
	Default  *string  `json:"default,omitempty"`
	Options  []string `json:"options,omitempty"`
	Hidden   bool     `json:"hidden,omitempty"`
}

// ObjectDefinition is a named object type and its base property schema.
// Definitions are created by platform bootstrap and versioned through
// organization overlays, never edited in place.
type ObjectDefinition struct {
	ID                     string                        `json:"id"`
	ObjectType             string                        `json:"objectType"`
	LabelSingular          string                        `json:"labelSingular"`
	LabelPlural            string                        `json:"labelPlural"`
	PrimaryDisplayProperty string                        `json:"primaryDisplayProperty,omitempty"`
	Properties             map[string]PropertyDefinition `json:"properties"`
	IsCustom               bool                          `json:"isCustom"`
	Active                 bool                          `json:"active"`
	CreatedAt              string                        `json:"createdAt"`
	UpdatedAt              string                        `json:"updatedAt"`
}

// OrganizationObjectSchema is the per-(organization, definition) overlay.
// Exactly one overlay exists per pair; it is created lazily on first access.
type OrganizationObjectSchema struct {
	OrganizationID     string                        `json:"organizationId"`
	ObjectDefinitionID string                        `json:"objectDefinitionId"`
	CustomProperties   map[string]PropertyDefinition `json:"customProperties"`
	HiddenProperties   []string                      `json:"hiddenProperties"`
	PropertyOverrides  map[string]PropertyOverride   `json:"propertyOverrides"`
	SchemaVersion      int                           `json:"schemaVersion"`
	CreatedAt          string                        `json:"createdAt"`
	UpdatedAt          string                        `json:"updatedAt"`
}

// MergedSchema is an object definition's base properties overlaid with one
// organization's customizations.
type MergedSchema struct {
	ObjectDefinition *ObjectDefinition             `json:"objectDefinition"`
	Properties       map[string]PropertyDefinition `json:"properties"`
	SchemaVersion    int                           `json:"schemaVersion"`
}

// PropertyMigration is one append-only entry in an overlay's migration log.
type PropertyMigration struct {
	ID                 string `json:"id"`
	OrganizationID     string `json:"organizationId"`
	ObjectDefinitionID string `json:"objectDefinitionId"`
	Version            int    `json:"version"`
	Description        string `json:"description"`
	Changes            string `json:"changes,omitempty"`
	RollbackData       string `json:"rollbackData,omitempty"`
	CreatedAt          string `json:"createdAt"`
}
