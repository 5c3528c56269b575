package store

import (
	"context"
	"fmt"
	"time"

	"kirana/internal/broker"
	"kirana/internal/models"
	"kirana/internal/tasks"

	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store wraps the database connection and exposes the inventory, profile and
// notification persistence operations.
type Store struct {
	db     *gorm.DB
	tasks  *tasks.Queue
	events EventSink
}

// EventSink publishes inventory mutation events. Optional; publishing is
// best-effort and never blocks or fails a mutation.
type EventSink interface {
	Publish(ctx context.Context, event broker.InventoryEvent) error
}

// SetEventSink attaches the mutation event publisher.
func (s *Store) SetEventSink(sink EventSink) {
	s.events = sink
}

// Open connects to the database and migrates the schema. driver is "sqlite3"
// or "postgres".
func Open(driver, dsn string) (*Store, error) {
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.DB().SetMaxIdleConns(10)
	db.DB().SetMaxOpenConns(100)
	db.DB().SetConnMaxLifetime(time.Hour)

	db.AutoMigrate(
		&models.InventoryItem{},
		&models.UserProfile{},
		&models.Notification{},
	)

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *gorm.DB) *Store {
	db.AutoMigrate(
		&models.InventoryItem{},
		&models.UserProfile{},
		&models.Notification{},
	)
	return &Store{db: db}
}

// DB returns the underlying database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
