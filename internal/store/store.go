package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"reservation-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema. Statements are idempotent
// (CREATE TABLE IF NOT EXISTS), so repeated startup runs are safe.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

type txKey struct{}

// WithTx runs fn inside a transaction. The transaction travels in the
// context, so store methods called from fn share it; nested calls reuse the
// outer transaction. Any error from fn rolls the whole transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func txFrom(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) q(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetCarByID retrieves a car by ID
func (s *Store) GetCarByID(ctx context.Context, id int64) (*models.Car, error) {
	var car models.Car
	err := s.q(ctx).GetContext(ctx, &car, "SELECT * FROM cars WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrCarNotFound
	}
	if err != nil {
		return nil, err
	}
	return &car, nil
}

// LockCar takes a row lock on the car, serializing every
// availability-check-then-write sequence for that car. Calls against
// different cars proceed concurrently.
func (s *Store) LockCar(ctx context.Context, id int64) error {
	var locked int64
	err := s.q(ctx).GetContext(ctx, &locked, "SELECT id FROM cars WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return models.ErrCarNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock car: %w", err)
	}
	return nil
}

// GetCars retrieves all cars
func (s *Store) GetCars(ctx context.Context) ([]models.Car, error) {
	var cars []models.Car
	err := s.q(ctx).SelectContext(ctx, &cars, "SELECT * FROM cars ORDER BY id")
	return cars, err
}
