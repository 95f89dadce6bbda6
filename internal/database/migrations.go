package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
//
// The monthly audit_logs_* partitions are not created here; see partitions.go.
var migrations = [][]string{
	// Migration 1: all core tables
	{
		`CREATE TABLE organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE object_definitions (
			id TEXT PRIMARY KEY,
			object_type TEXT UNIQUE NOT NULL,
			label_singular TEXT NOT NULL,
			label_plural TEXT NOT NULL,
			primary_display_property TEXT,
			is_custom BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE property_definitions (
			object_definition_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			label TEXT NOT NULL,
			required BOOLEAN NOT NULL DEFAULT FALSE,
			default_value TEXT,
			validation TEXT,
			options TEXT,
			reference_type TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (object_definition_id, name),
			FOREIGN KEY (object_definition_id) REFERENCES object_definitions(id)
		)`,

		`CREATE TABLE organization_object_schemas (
			organization_id TEXT NOT NULL,
			object_definition_id TEXT NOT NULL,
			custom_properties TEXT NOT NULL DEFAULT '{}',
			hidden_properties TEXT NOT NULL DEFAULT '[]',
			property_overrides TEXT NOT NULL DEFAULT '{}',
			schema_version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (organization_id, object_definition_id),
			FOREIGN KEY (organization_id) REFERENCES organizations(id),
			FOREIGN KEY (object_definition_id) REFERENCES object_definitions(id)
		)`,

		`CREATE TABLE property_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id TEXT NOT NULL,
			object_definition_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			description TEXT NOT NULL,
			changes TEXT,
			rollback_data TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_property_migrations ON property_migrations(organization_id, object_definition_id, version)`,

		`CREATE TABLE records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			object_definition_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			search_vector TEXT NOT NULL DEFAULT '',
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (object_definition_id) REFERENCES object_definitions(id),
			FOREIGN KEY (organization_id) REFERENCES organizations(id)
		)`,
		`CREATE INDEX idx_records_org_type ON records(organization_id, object_definition_id, archived)`,
		`CREATE INDEX idx_records_search ON records(organization_id, search_vector)`,

		`CREATE TABLE record_properties (
			record_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			value TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (record_id, name),
			FOREIGN KEY (record_id) REFERENCES records(id)
		)`,
		`CREATE INDEX idx_record_properties_value ON record_properties(name, value)`,

		`CREATE TABLE association_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_object_type_id TEXT NOT NULL,
			to_object_type_id TEXT NOT NULL,
			name TEXT NOT NULL,
			label TEXT NOT NULL,
			inverse_label TEXT,
			cardinality TEXT NOT NULL,
			from_min INTEGER NOT NULL DEFAULT 0,
			from_max INTEGER NOT NULL DEFAULT 0,
			to_min INTEGER NOT NULL DEFAULT 0,
			to_max INTEGER NOT NULL DEFAULT 0,
			cascade_delete TEXT NOT NULL DEFAULT 'none',
			is_system BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			UNIQUE(from_object_type_id, to_object_type_id, name)
		)`,

		`CREATE TABLE associations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type_id INTEGER NOT NULL,
			from_record_id INTEGER NOT NULL,
			to_record_id INTEGER NOT NULL,
			organization_id TEXT NOT NULL,
			properties TEXT NOT NULL DEFAULT '{}',
			start_date TEXT NOT NULL,
			end_date TEXT,
			created_at TEXT NOT NULL,
			UNIQUE(type_id, from_record_id, to_record_id),
			FOREIGN KEY (type_id) REFERENCES association_types(id),
			FOREIGN KEY (from_record_id) REFERENCES records(id),
			FOREIGN KEY (to_record_id) REFERENCES records(id)
		)`,
		`CREATE INDEX idx_assoc_from ON associations(from_record_id, type_id)`,
		`CREATE INDEX idx_assoc_to ON associations(to_record_id, type_id)`,

		`CREATE TABLE organization_association_labels (
			organization_id TEXT NOT NULL,
			association_type_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			inverse_label TEXT,
			PRIMARY KEY (organization_id, association_type_id),
			FOREIGN KEY (association_type_id) REFERENCES association_types(id)
		)`,

		`CREATE TABLE pipelines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id TEXT NOT NULL,
			object_definition_id TEXT NOT NULL,
			label TEXT NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			allow_skip_stages BOOLEAN NOT NULL DEFAULT TRUE,
			record_count INTEGER NOT NULL DEFAULT 0,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (organization_id) REFERENCES organizations(id),
			FOREIGN KEY (object_definition_id) REFERENCES object_definitions(id)
		)`,
		`CREATE INDEX idx_pipelines_org_type ON pipelines(organization_id, object_definition_id, archived)`,

		`CREATE TABLE pipeline_stages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			stage_order INTEGER NOT NULL DEFAULT 0,
			color TEXT,
			probability REAL,
			outcome TEXT NOT NULL DEFAULT 'open',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (pipeline_id) REFERENCES pipelines(id)
		)`,

		`CREATE TABLE record_stages (
			record_id INTEGER NOT NULL,
			pipeline_id INTEGER NOT NULL,
			stage_id INTEGER NOT NULL,
			entered_at TEXT NOT NULL,
			amount REAL,
			probability REAL,
			expected_close_date TEXT,
			notes TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (record_id, pipeline_id),
			FOREIGN KEY (record_id) REFERENCES records(id),
			FOREIGN KEY (pipeline_id) REFERENCES pipelines(id),
			FOREIGN KEY (stage_id) REFERENCES pipeline_stages(id)
		)`,
		`CREATE INDEX idx_record_stages_pipeline ON record_stages(pipeline_id, stage_id)`,

		`CREATE TABLE stage_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id TEXT NOT NULL,
			record_id INTEGER NOT NULL,
			pipeline_id INTEGER NOT NULL,
			from_stage_id INTEGER,
			to_stage_id INTEGER NOT NULL,
			transitioned_at TEXT NOT NULL,
			seconds_in_previous_stage INTEGER NOT NULL DEFAULT 0,
			amount_at_transition REAL,
			probability_at_transition REAL
		)`,
		`CREATE INDEX idx_stage_history ON stage_history(record_id, pipeline_id, transitioned_at)`,

		`CREATE TABLE stage_automations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline_id INTEGER NOT NULL,
			stage_id INTEGER NOT NULL,
			trigger_type TEXT NOT NULL,
			action_type TEXT NOT NULL,
			action_config TEXT NOT NULL DEFAULT '{}',
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			execution_count INTEGER NOT NULL DEFAULT 0,
			last_executed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (pipeline_id) REFERENCES pipelines(id),
			FOREIGN KEY (stage_id) REFERENCES pipeline_stages(id)
		)`,

		`CREATE TABLE lists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id TEXT NOT NULL,
			name TEXT NOT NULL,
			object_definition_id TEXT NOT NULL,
			processing_type TEXT NOT NULL,
			filter_branch TEXT,
			member_count INTEGER NOT NULL DEFAULT 0,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(organization_id, name),
			FOREIGN KEY (organization_id) REFERENCES organizations(id),
			FOREIGN KEY (object_definition_id) REFERENCES object_definitions(id)
		)`,

		`CREATE TABLE list_memberships (
			list_id INTEGER NOT NULL,
			record_id INTEGER NOT NULL,
			added_at TEXT NOT NULL,
			pinned BOOLEAN NOT NULL DEFAULT FALSE,
			excluded BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (list_id, record_id),
			FOREIGN KEY (list_id) REFERENCES lists(id),
			FOREIGN KEY (record_id) REFERENCES records(id)
		)`,

		`CREATE TABLE property_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id TEXT NOT NULL,
			record_id INTEGER NOT NULL,
			property_name TEXT NOT NULL,
			previous_value TEXT,
			new_value TEXT,
			actor_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'API',
			changed_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_property_history ON property_history(record_id, property_name, changed_at)`,

		`CREATE TABLE bulk_operations (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			action TEXT NOT NULL,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			skipped_count INTEGER NOT NULL DEFAULT 0,
			errors TEXT,
			rollback_data TEXT,
			was_rolled_back BOOLEAN NOT NULL DEFAULT FALSE,
			actor_id TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_bulk_operations_org ON bulk_operations(organization_id, started_at)`,
	},
}
