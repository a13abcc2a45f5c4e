// Package audit keeps the append-only change history of audited entities.
package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nichind/fastapi/internal/models"
)

// Log writes and reads AuditEntry rows. Appends go through the caller's
// transaction handle so an entry commits or rolls back together with the
// field change it describes.
type Log struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Log {
	return &Log{db: db}
}

// Append records one field mutation. tx must be the transaction the
// enclosing update runs in; a failed insert fails that transaction.
func (l *Log) Append(tx *gorm.DB, table string, originID uint, field, oldValue, newValue, actor string) (*models.AuditEntry, error) {
	entry := models.AuditEntry{
		OriginTable: table,
		OriginID:    originID,
		Field:       field,
		OldValue:    oldValue,
		NewValue:    newValue,
		Actor:       actor,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("append audit entry for %s.%s: %w", table, field, err)
	}
	return &entry, nil
}

// ByOrigin returns the history of one record in creation order, oldest
// first, optionally narrowed to a single field.
func (l *Log) ByOrigin(ctx context.Context, table string, originID uint, field string) ([]models.AuditEntry, error) {
	q := l.db.WithContext(ctx).
		Where("origin_table = ? AND origin_id = ?", table, originID).
		Order("id asc")
	if field != "" {
		q = q.Where("field = ?", field)
	}

	var entries []models.AuditEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query audit for %s/%d: %w", table, originID, err)
	}
	return entries, nil
}

// GroupedByOrigin returns the same history keyed by field name.
func (l *Log) GroupedByOrigin(ctx context.Context, table string, originID uint) (map[string][]models.AuditEntry, error) {
	entries, err := l.ByOrigin(ctx, table, originID, "")
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]models.AuditEntry)
	for _, e := range entries {
		grouped[e.Field] = append(grouped[e.Field], e)
	}
	return grouped, nil
}
