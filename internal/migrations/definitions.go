package migrations

import (
	"gorm.io/gorm"
)

// getAllMigrations returns all migration definitions in chronological order
func getAllMigrations() []MigrationDefinition {
	return []MigrationDefinition{
		{
			ID:          "20250301000001",
			Description: "Create organizations table",
			Up:          createOrganizationsTable,
			Down:        dropOrganizationsTable,
		},
		{
			ID:          "20250301000002",
			Description: "Add doks cluster record column",
			Up:          addDoksColumn,
			Down:        dropDoksColumn,
		},
	}
}

// createOrganizationsTable creates the organizations table
func createOrganizationsTable(db *gorm.DB) error {
	sql := `
	CREATE TABLE IF NOT EXISTS organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_organizations_slug ON organizations(slug);
	CREATE INDEX IF NOT EXISTS idx_organizations_deleted_at ON organizations(deleted_at);
	`

	return db.Exec(sql).Error
}

// dropOrganizationsTable drops the organizations table
func dropOrganizationsTable(db *gorm.DB) error {
	sql := `
	DROP INDEX IF EXISTS idx_organizations_deleted_at;
	DROP INDEX IF EXISTS idx_organizations_slug;
	DROP TABLE IF EXISTS organizations;
	`

	return db.Exec(sql).Error
}

// addDoksColumn adds the embedded cluster record document column
func addDoksColumn(db *gorm.DB) error {
	return db.Exec(`ALTER TABLE organizations ADD COLUMN doks TEXT`).Error
}

// dropDoksColumn removes the embedded cluster record document column
func dropDoksColumn(db *gorm.DB) error {
	return db.Exec(`ALTER TABLE organizations DROP COLUMN doks`).Error
}
