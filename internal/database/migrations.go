package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationDefaultNodeColors    = "2026-10-01_default_node_colors"
	migrationCompactNodePositions = "2026-10-02_compact_node_positions"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDefaultNodeColors, apply: defaultNodeColors},
		{name: migrationCompactNodePositions, apply: compactNodePositions},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// defaultNodeColors fills colors left empty by imports that predate the color column default.
func defaultNodeColors(db *gorm.DB) error {
	return db.Model(&coding.Node{}).
		Where("color IS NULL OR TRIM(color) = ''").
		Update("color", coding.DefaultNodeColor).Error
}

// compactNodePositions renumbers every sibling group as 0..k-1. Older data left gaps after reparenting.
func compactNodePositions(db *gorm.DB) error {
	var nodes []coding.Node
	if err := db.Order("project_id, position, name, id").Find(&nodes).Error; err != nil {
		return err
	}
	next := make(map[string]int)
	for _, node := range nodes {
		group := node.ProjectID + "/" + node.ParentKey()
		position := next[group]
		next[group] = position + 1
		if node.Position == position {
			continue
		}
		if err := db.Model(&coding.Node{}).Where("id = ?", node.ID).Update("position", position).Error; err != nil {
			return err
		}
	}
	return nil
}
