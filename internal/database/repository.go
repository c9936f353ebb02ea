package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound indicates the requested entity was not found.
var ErrNotFound = errors.New("entity not found")

// EntityMapper maps between domain and database model types. ToDomain
// fails when a stored row violates the domain schema.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) (D, error)
	ToModel(domain D) E
}

// Scope narrows a query.
type Scope = func(*gorm.DB) *gorm.DB

// WhereIn restricts column to values.
func WhereIn[T any](column string, values []T) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" IN ?", values)
	}
}

// OrderBy sorts by column ascending.
func OrderBy(column string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(column)
	}
}

// Limit caps the number of rows.
func Limit(n int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}

// Repository provides generic persistence operations for database entities.
type Repository[D any, E any] struct {
	db     Database
	mapper EntityMapper[D, E]
	label  string
}

// NewRepository creates a new Repository.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{
		db:     db,
		mapper: mapper,
		label:  label,
	}
}

// Get retrieves the entity with the given primary key.
func (r Repository[D, E]) Get(ctx context.Context, id any) (D, error) {
	var zero D
	var entity E
	result := r.db.Session(ctx).First(&entity, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return zero, fmt.Errorf("%w: %s %v", ErrNotFound, r.label, id)
		}
		return zero, fmt.Errorf("get %s: %w", r.label, result.Error)
	}
	d, err := r.mapper.ToDomain(entity)
	if err != nil {
		return zero, fmt.Errorf("map %s: %w", r.label, err)
	}
	return d, nil
}

// Find retrieves entities matching the given scopes.
func (r Repository[D, E]) Find(ctx context.Context, scopes ...Scope) ([]D, error) {
	var entities []E
	result := r.db.Session(ctx).Model(new(E)).Scopes(scopes...).Find(&entities)
	if result.Error != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, result.Error)
	}

	domains := make([]D, len(entities))
	for i, entity := range entities {
		d, err := r.mapper.ToDomain(entity)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", r.label, err)
		}
		domains[i] = d
	}
	return domains, nil
}

// Count returns the number of entities matching the given scopes.
func (r Repository[D, E]) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	var count int64
	if result := r.db.Session(ctx).Model(new(E)).Scopes(scopes...).Count(&count); result.Error != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, result.Error)
	}
	return count, nil
}

// Exists checks if any entity matches the given scopes.
func (r Repository[D, E]) Exists(ctx context.Context, scopes ...Scope) (bool, error) {
	count, err := r.Count(ctx, scopes...)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DB returns a GORM session.
func (r Repository[D, E]) DB(ctx context.Context) *gorm.DB {
	return r.db.Session(ctx)
}

// Database returns the wrapped database.
func (r Repository[D, E]) Database() Database {
	return r.db
}

// Mapper returns the entity mapper for external use.
func (r Repository[D, E]) Mapper() EntityMapper[D, E] {
	return r.mapper
}
