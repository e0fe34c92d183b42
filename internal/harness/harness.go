// Package harness owns the database lifecycle around the raw SQL probes:
// schema refresh, table clearing and guaranteed release of the connection.
package harness

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gorm-multistatement/internal/config"
	"gorm-multistatement/internal/database"
	"gorm-multistatement/internal/domain/user"
	"gorm-multistatement/internal/sqlexec"
)

// Harness wraps one database connection and the executor bound to it.
type Harness struct {
	db   *gorm.DB
	exec *sqlexec.Executor
	log  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New creates a Harness over an open connection. The Harness owns db from
// now on and releases it in Close.
func New(db *gorm.DB, log *zap.Logger) *Harness {
	return &Harness{
		db:   db,
		exec: sqlexec.NewExecutor(db, log),
		log:  log,
	}
}

// Open connects to the configured database and wraps the connection in a
// Harness.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Harness, error) {
	db, err := database.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return New(db, log), nil
}

// Executor returns the raw SQL executor bound to the harness connection.
func (h *Harness) Executor() *sqlexec.Executor {
	return h.exec
}

// DB returns the underlying GORM connection.
func (h *Harness) DB() *gorm.DB {
	return h.db
}

// RefreshSchema drops and recreates every mapped table: the migrations are
// brought up to date, the last one is rolled back and then applied again.
func (h *Harness) RefreshSchema(ctx context.Context) error {
	m := newMigrator(h.db.WithContext(ctx))

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	if err := m.RollbackLast(); err != nil {
		return fmt.Errorf("failed to drop users table: %w", err)
	}
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to recreate users table: %w", err)
	}

	h.log.Info("schema refreshed", zap.String("table", UserSchema{}.TableName()))
	return nil
}

// ClearUsers deletes every row of the users table.
func (h *Harness) ClearUsers(ctx context.Context) error {
	res := h.db.WithContext(ctx).Exec(`DELETE FROM "users"`)
	if res.Error != nil {
		return fmt.Errorf("failed to clear users: %w", res.Error)
	}

	h.log.Debug("users cleared", zap.Int64("rows", res.RowsAffected))
	return nil
}

// Prepare refreshes the schema and clears the users table.
func (h *Harness) Prepare(ctx context.Context) error {
	if err := h.RefreshSchema(ctx); err != nil {
		return err
	}
	return h.ClearUsers(ctx)
}

// Users lists the users table ordered by id.
func (h *Harness) Users(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := h.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i, m := range models {
		users[i] = m.toDomain()
	}
	return users, nil
}

// Close releases the connection. It is safe to call more than once.
func (h *Harness) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = database.Close(h.db)
		if h.closeErr != nil {
			h.log.Error("failed to close database", zap.Error(h.closeErr))
			return
		}
		h.log.Info("database connection closed")
	})
	return h.closeErr
}

// Ping checks that the connection is still usable.
func (h *Harness) Ping(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
