// Package store is the generic entity persistence layer. A Store composes
// blacklist validation, field-level encryption, change auditing and latency
// telemetry around typed records, with every operation bracketed in one
// transaction against the record's backing store.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/nichind/fastapi/internal/audit"
	"github.com/nichind/fastapi/internal/blacklist"
	"github.com/nichind/fastapi/internal/models"
	"github.com/nichind/fastapi/internal/perf"
	"github.com/nichind/fastapi/internal/secret"
)

// Entity is the contract every stored record type fulfils by embedding
// models.Record and declaring its table and backing-store domain.
type Entity interface {
	PrimaryID() uint
	RecordVersion() uint
	TableName() string
	Domain() string
}

// Validator adds per-type invariants checked before create.
type Validator interface {
	Validate() error
}

// Patch is a typed partial update: a closed set of optional fields that
// reports only the fields actually set, keyed by column name.
type Patch interface {
	Changes() map[string]any
}

// Filter narrows reads by column equality.
type Filter map[string]any

// Policy is the per-entity-type configuration of the cross-cutting
// concerns: which columns are sensitive, and the collaborators that
// encrypt, deny, audit and measure.
type Policy struct {
	Sensitive []string
	Codec     *secret.Codec
	Blacklist *blacklist.Checker
	Audit     *audit.Log
	Meter     *perf.Meter
}

// Options tune a single operation.
type Options struct {
	IgnoreCrypt     bool
	IgnoreBlacklist bool
	Actor           string
}

type Option func(*Options)

// IgnoreCrypt stores sensitive fields as given, without encryption.
func IgnoreCrypt() Option { return func(o *Options) { o.IgnoreCrypt = true } }

// IgnoreBlacklist skips deny-list validation.
func IgnoreBlacklist() Option { return func(o *Options) { o.IgnoreBlacklist = true } }

// WithActor attributes resulting audit entries to the given origin.
func WithActor(actor string) Option { return func(o *Options) { o.Actor = actor } }

func applyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the generic CRUD engine for one entity type.
type Store[T Entity] struct {
	db        *gorm.DB
	policy    Policy
	table     string
	sensitive map[string]bool
}

// New binds a store to the entity's backing database and policy. The
// sensitive set is matched against columns by name; names that do not
// exist on T are simply never hit.
func New[T Entity](db *gorm.DB, policy Policy) *Store[T] {
	var zero T
	sensitive := make(map[string]bool, len(policy.Sensitive))
	for _, c := range policy.Sensitive {
		sensitive[c] = true
	}
	return &Store[T]{
		db:        db,
		policy:    policy,
		table:     zero.TableName(),
		sensitive: sensitive,
	}
}

// Create validates, encrypts and persists a new record in one transaction.
// The store-assigned id and timestamps are populated on item. Uniqueness
// is enforced by the backing store's unique indexes and surfaces as
// DuplicateError.
func (s *Store[T]) Create(ctx context.Context, item *T, opts ...Option) error {
	defer s.observe(time.Now())
	o := applyOptions(opts)

	if v, ok := any(*item).(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	rv := reflect.ValueOf(item).Elem()
	for _, f := range stringFields(rv) {
		value := f.get()
		if value == "" {
			continue
		}
		if !o.IgnoreBlacklist {
			listed, err := s.policy.Blacklist.IsBlacklisted(f.column, value)
			if err != nil {
				return err
			}
			if listed {
				return &BlacklistedError{Field: f.column, Value: value}
			}
		}
		if s.sensitive[f.column] && !o.IgnoreCrypt {
			enc, err := s.policy.Codec.Encrypt(value)
			if err != nil {
				return err
			}
			f.set(enc)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(item).Error
	})
	return s.translate(err)
}

// Get returns the first non-deleted record matching the filters, or
// ErrNotFound.
func (s *Store[T]) Get(ctx context.Context, filters Filter) (*T, error) {
	defer s.observe(time.Now())

	var item T
	err := s.db.WithContext(ctx).Where(map[string]any(filters)).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", s.table, err)
	}
	return &item, nil
}

// GetByID is Get keyed on the primary identifier.
func (s *Store[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	return s.Get(ctx, Filter{"id": id})
}

// GetChunk returns a bounded page of non-deleted matches. limit -1 means
// unbounded and returns every match.
func (s *Store[T]) GetChunk(ctx context.Context, limit, offset int, filters Filter) ([]T, error) {
	defer s.observe(time.Now())

	q := s.db.WithContext(ctx).Where(map[string]any(filters)).Offset(offset)
	if limit >= 0 {
		q = q.Limit(limit)
	}

	var items []T
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("get chunk of %s: %w", s.table, err)
	}
	return items, nil
}

// Update applies a typed patch to the record with the given id. Inside one
// transaction it loads the current row, diffs each patched field (unchanged
// fields produce no write and no audit entry), validates new values against
// the blacklist, encrypts sensitive ones, appends one audit entry per
// changed field and then applies all changes as a single write guarded by
// an optimistic version check. Audit rows and field changes commit
// together or not at all.
func (s *Store[T]) Update(ctx context.Context, id uint, patch Patch, opts ...Option) (*T, error) {
	defer s.observe(time.Now())
	o := applyOptions(opts)

	if id == 0 {
		return nil, ErrNoID
	}

	var updated T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current T
		if err := tx.First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		cur := reflect.ValueOf(&current).Elem()

		requested := patch.Changes()
		columns := make([]string, 0, len(requested))
		for column := range requested {
			columns = append(columns, column)
		}
		sort.Strings(columns)

		changes := map[string]any{}
		for _, column := range columns {
			value := requested[column]
			currentStored, _ := columnString(cur, column)

			if text, isString := value.(string); isString {
				if s.sameValue(column, currentStored, text, o) {
					continue
				}
				if !o.IgnoreBlacklist {
					listed, err := s.policy.Blacklist.IsBlacklisted(column, text)
					if err != nil {
						return err
					}
					if listed {
						return &BlacklistedError{Field: column, Value: text}
					}
				}
				if s.sensitive[column] && !o.IgnoreCrypt {
					enc, err := s.policy.Codec.Encrypt(text)
					if err != nil {
						return err
					}
					value = enc
				}
			} else if currentStored == fmt.Sprint(value) {
				continue
			}

			// audit first, in the same transaction as the change
			if _, err := s.policy.Audit.Append(tx, s.table, current.PrimaryID(), column,
				currentStored, fmt.Sprint(value), o.Actor); err != nil {
				return err
			}
			changes[column] = value
		}

		if len(changes) == 0 {
			updated = current
			return nil
		}

		changes["version"] = current.RecordVersion() + 1
		res := tx.Model(&current).
			Where("version = ?", current.RecordVersion()).
			Updates(changes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleRecord
		}

		return tx.First(&updated, id).Error
	})
	if err != nil {
		return nil, s.translate(err)
	}
	return &updated, nil
}

// Delete soft-deletes the record; its rows stay durable and its audit
// history intact, but normal reads no longer see it.
func (s *Store[T]) Delete(ctx context.Context, id uint, opts ...Option) error {
	defer s.observe(time.Now())
	o := applyOptions(opts)

	if id == 0 {
		return ErrNoID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current T
		if err := tx.First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if _, err := s.policy.Audit.Append(tx, s.table, id, "deleted_at",
			"", time.Now().UTC().Format(time.RFC3339), o.Actor); err != nil {
			return err
		}
		return tx.Delete(&current).Error
	})
	return s.translate(err)
}

// Decrypted returns a value copy of item with every sensitive field
// decrypted. The stored record is never mutated.
func (s *Store[T]) Decrypted(item T) (T, error) {
	clone := item
	rv := reflect.ValueOf(&clone).Elem()
	for column := range s.sensitive {
		value, ok := columnString(rv, column)
		if !ok || value == "" {
			continue
		}
		plain, err := s.policy.Codec.Decrypt(value)
		if err != nil {
			return clone, fmt.Errorf("decrypt %s.%s: %w", s.table, column, err)
		}
		setColumnString(rv, column, plain)
	}
	return clone, nil
}

// Audit returns the full change history of a record grouped by field.
func (s *Store[T]) Audit(ctx context.Context, item T) (map[string][]models.AuditEntry, error) {
	return s.policy.Audit.GroupedByOrigin(ctx, s.table, item.PrimaryID())
}

// Table exposes the bound table name for callers building audit queries.
func (s *Store[T]) Table() string { return s.table }

// sameValue reports whether a candidate value equals the stored one,
// comparing through the codec when the column is stored encrypted.
func (s *Store[T]) sameValue(column, currentStored, candidate string, o Options) bool {
	if s.sensitive[column] && !o.IgnoreCrypt && currentStored != "" {
		same, err := s.policy.Codec.Compare(candidate, currentStored)
		return err == nil && same
	}
	return currentStored == candidate
}

func (s *Store[T]) observe(start time.Time) {
	if s.policy.Meter != nil {
		s.policy.Meter.Record(time.Since(start))
	}
}

func (s *Store[T]) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &DuplicateError{Table: s.table, Err: err}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return err
	}
}
