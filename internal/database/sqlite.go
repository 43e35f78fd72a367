package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	sqlite "github.com/glebarez/sqlite"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// readerDriverName selects the question-mark bind style for sqlx.
const readerDriverName = "sqlite3"

// Handles pairs the gorm handle used for mutations with an sqlx handle over the same pool.
type Handles struct {
	Gorm   *gorm.DB
	Reader *sqlx.DB
}

// Close releases the shared connection pool.
func (h Handles) Close() error {
	if h.Reader != nil {
		return h.Reader.Close()
	}
	if h.Gorm == nil {
		return nil
	}
	sqlDB, err := h.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// The pool holds a single connection so writers never contend for the database lock;
// callers must not issue reads on Reader while a gorm transaction is open.
func OpenSQLite(path string, logger *zap.Logger) (Handles, error) {
	if path == "" {
		return Handles{}, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return Handles{}, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return Handles{}, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&coding.Project{},
		&coding.Participant{},
		&coding.Document{},
		&coding.Node{},
		&coding.CodedSegment{},
		&migrationRecord{},
	); err != nil {
		return Handles{}, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return Handles{}, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return Handles{Gorm: db, Reader: sqlx.NewDb(sqlDB, readerDriverName)}, nil
}
