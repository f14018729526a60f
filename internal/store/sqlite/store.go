// Package sqlite keeps the audit trail in a gorm-managed sqlite table.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloneexec/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newStore(db)
}

func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&model.AuditMessageModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) InsertAudit(ctx context.Context, row *model.AuditMessageModel) error {
	if row == nil {
		return fmt.Errorf("audit row cannot be nil")
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// ListAudit returns the newest rows first. An empty cloneID lists every clone.
func (s *Store) ListAudit(ctx context.Context, cloneID string, limit int) ([]model.AuditMessageModel, error) {
	var rows []model.AuditMessageModel
	q := s.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC")
	if strings.TrimSpace(cloneID) != "" {
		q = q.Where("clone_id = ?", cloneID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByStatus is used by the admin surface for a quick summary.
func (s *Store) CountByStatus(ctx context.Context, cloneID string) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	q := s.db.WithContext(ctx).Model(&model.AuditMessageModel{}).Select("status, count(*) as n").Group("status")
	if strings.TrimSpace(cloneID) != "" {
		q = q.Where("clone_id = ?", cloneID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
