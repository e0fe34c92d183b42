package harness

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrationsTable records which migrations have been applied.
const migrationsTable = "schema_migrations"

func newMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	opts := *gormigrate.DefaultOptions
	opts.TableName = migrationsTable

	return gormigrate.New(db, &opts, []*gormigrate.Migration{
		{
			ID: "001_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&UserSchema{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(UserSchema{}.TableName())
			},
		},
	})
}
