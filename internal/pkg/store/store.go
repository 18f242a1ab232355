package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// A write payload. Only fields with a `db` tag are inserted; the id is generated
// by the database and handed back to ToModel.
type DTO interface {
	ToModel(id uuid.UUID) any
}

// This type of hook separates from the regular PostSave hook since it has side effects
type AfterSaveCommitHook func()

// Hooks for database operations
type Hooks struct {
	PreSave         []func(ctx context.Context, tx *sqlx.Tx, data DTO) error
	PostSave        []func(ctx context.Context, tx *sqlx.Tx, data DTO, model any) error
	AfterSaveCommit []func(ctx context.Context, data DTO, model any) AfterSaveCommitHook
}

type Datastorer[T any] interface {
	Create(ctx context.Context, data DTO) (any, error)
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
	Get(ctx context.Context, query string, args ...any) (*T, error)
	Select(ctx context.Context, query string, args ...any) ([]T, error)
	// Set hooks.
	SetHooks(hooks Hooks)

	// useful for complex operations wherein store interface does not supported.
	Base() *sqlx.DB
}

// TranslateError maps driver errors onto the fault sentinels.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", fault.ErrUniqueViolation, pqErr.Constraint)
	case "23503":
		return fmt.Errorf("%w: %s", fault.ErrForeignKeyViolation, pqErr.Constraint)
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return fmt.Errorf("%w: %s", fault.ErrSerialization, pqErr.Message)
	}
	return err
}

// getStructFieldsFromDTO extracts field names and placeholders from a DTO struct
func getStructFieldsFromDTO(dto DTO) (columns string, placeholders string) {
	t := reflect.TypeOf(dto)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var columnNames []string
	var placeholderNames []string

	for i := range t.NumField() {
		field := t.Field(i)

		dbTag := field.Tag.Get("db")
		if dbTag == "" || dbTag == "-" {
			continue
		}

		columnNames = append(columnNames, dbTag)

		if field.Type.Kind() == reflect.Slice {
			placeholderNames = append(placeholderNames, fmt.Sprintf("CAST(:%s AS %s)", dbTag, pgArrayType(field.Type.Elem().Kind())))
		} else {
			placeholderNames = append(placeholderNames, ":"+dbTag)
		}
	}

	return strings.Join(columnNames, ", "), strings.Join(placeholderNames, ", ")
}

func pgArrayType(elem reflect.Kind) string {
	switch elem {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "integer[]"
	case reflect.Float32, reflect.Float64:
		return "float[]"
	case reflect.Bool:
		return "boolean[]"
	default:
		return "text[]"
	}
}
