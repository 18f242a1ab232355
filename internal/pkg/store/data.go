package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/paulexconde/camperportal/pkg/fault"
)

type dataStore[T any] struct {
	db        *sqlx.DB
	tablename string
	hooks     Hooks
	mu        sync.RWMutex
}

func NewDataStore[T any](db *sqlx.DB, tablename string) Datastorer[T] {
	return &dataStore[T]{
		db:        db,
		tablename: tablename,
	}
}

func (s *dataStore[T]) Base() *sqlx.DB {
	return s.db
}

func (s *dataStore[T]) SetHooks(hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks.PreSave = append(s.hooks.PreSave, hooks.PreSave...)
	s.hooks.PostSave = append(s.hooks.PostSave, hooks.PostSave...)
	s.hooks.AfterSaveCommit = append(s.hooks.AfterSaveCommit, hooks.AfterSaveCommit...)
}

func (s *dataStore[T]) snapshotHooks() Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks
}

func (s *dataStore[T]) QueryRow(ctx context.Context, query string, args ...any) (any, error) {
	row := s.db.QueryRowContext(ctx, query, args...)

	var result any

	err := row.Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.ErrNotFound
		}
		return nil, err
	}

	return result, nil
}

func (s *dataStore[T]) Get(ctx context.Context, query string, args ...any) (*T, error) {
	var result T

	if err := s.db.GetContext(ctx, &result, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (s *dataStore[T]) Select(ctx context.Context, query string, args ...any) ([]T, error) {
	results := []T{}

	if err := s.db.SelectContext(ctx, &results, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []T{}, nil
		}
		return nil, err
	}

	return results, nil
}

func (s *dataStore[T]) Create(ctx context.Context, data DTO) (model any, err error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	hooks := s.snapshotHooks()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, hook := range hooks.PreSave {
		if err = hook(ctx, tx, data); err != nil {
			return nil, err
		}
	}

	columns, placeholders := getStructFieldsFromDTO(data)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", s.tablename, columns, placeholders)

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer stmt.Close()

	var id uuid.UUID
	if err = stmt.QueryRowContext(ctx, data).Scan(&id); err != nil {
		err = TranslateError(err)
		return nil, err
	}

	model = data.ToModel(id)

	for _, hook := range hooks.PostSave {
		if err = hook(ctx, tx, data, model); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	for _, hook := range hooks.AfterSaveCommit {
		if fn := hook(ctx, data, model); fn != nil {
			fn()
		}
	}

	return model, nil
}
