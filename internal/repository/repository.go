package repository

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrAttemptNotFound = errors.New("checkout attempt not found")
	ErrOrderNotFound   = errors.New("order not found")
	// ErrStateConflict means a conditional state update matched no row.
	ErrStateConflict = errors.New("state changed concurrently")
	// ErrOpenAttemptExists means another open attempt already holds the session cart.
	ErrOpenAttemptExists = errors.New("open checkout attempt already exists")
	ErrDuplicateOrder    = errors.New("order already committed")
)

// DuplicateOrderError is returned when the idempotency key already produced an order.
type DuplicateOrderError struct {
	OrderID int64
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("%s: order %d", ErrDuplicateOrder, e.OrderID)
}

func (e *DuplicateOrderError) Unwrap() error {
	return ErrDuplicateOrder
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

func (c *Credentials) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName)
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	db, err := sqlx.Connect("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

// DB exposes the pool for read-only collaborators such as the catalog.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	m, err := r.migrator(cred)
	if err != nil {
		return err
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

// RollbackMigrations reverts every applied migration.
func (r *Repository) RollbackMigrations(cred *Credentials) error {
	m, err := r.migrator(cred)
	if err != nil {
		return err
	}

	if e2 := m.Down(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not roll back migrations: %w", e2)
	}
	return nil
}

func (r *Repository) migrator(cred *Credentials) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(r.db.DB, &postgres.Config{
		MigrationsTable: "takeout_schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return m, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
