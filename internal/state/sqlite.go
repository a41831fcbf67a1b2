// internal/state/sqlite.go
package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"terminal-service/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore persists connectivity records in a terminal-local sqlite file
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the store database and applies
// pending schema migrations.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	// A single writer keeps sqlite happy and matches the single-mutator
	// contract of the store.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		logger: logger.With(zap.String("component", "state-store")),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	store.logger.Info("Connectivity state store opened", zap.String("path", path))
	return store, nil
}

// migrate applies embedded schema migrations
func (s *SQLiteStore) migrate() error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migrate driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// Record returns the current record for a slot. Slots start out disconnected.
func (s *SQLiteStore) Record(ctx context.Context, slot model.Slot) (*model.ConnectivityRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT connected_device_id, connected_device_name, status, paper_profile
		 FROM connectivity WHERE slot = ?`, string(slot))

	rec := &model.ConnectivityRecord{Slot: slot}
	var deviceID, deviceName, paperProfile sql.NullString
	var status string

	err := row.Scan(&deviceID, &deviceName, &status, &paperProfile)
	if err == sql.ErrNoRows {
		rec.Status = model.StatusDisconnected
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read connectivity record: %w", err)
	}

	rec.Status = model.ConnectionStatus(status)
	if deviceID.Valid {
		rec.ConnectedDeviceID = &deviceID.String
	}
	if deviceName.Valid {
		rec.ConnectedDeviceName = &deviceName.String
	}
	if paperProfile.Valid {
		rec.PaperProfile = model.PaperProfile(paperProfile.String)
	}

	return rec, nil
}

// SetConnected marks a slot as connected to a device
func (s *SQLiteStore) SetConnected(ctx context.Context, slot model.Slot, deviceID, deviceName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connectivity (slot, connected_device_id, connected_device_name, status, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(slot) DO UPDATE SET
		   connected_device_id = excluded.connected_device_id,
		   connected_device_name = excluded.connected_device_name,
		   status = excluded.status,
		   updated_at = CURRENT_TIMESTAMP`,
		string(slot), deviceID, deviceName, string(model.StatusConnected))
	if err != nil {
		return fmt.Errorf("failed to persist connected state: %w", err)
	}

	s.logger.Debug("Slot connected",
		zap.String("slot", string(slot)),
		zap.String("device_id", deviceID),
	)
	return nil
}

// SetDisconnected clears a slot back to its disconnected state
func (s *SQLiteStore) SetDisconnected(ctx context.Context, slot model.Slot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connectivity (slot, connected_device_id, connected_device_name, status, updated_at)
		 VALUES (?, NULL, NULL, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(slot) DO UPDATE SET
		   connected_device_id = NULL,
		   connected_device_name = NULL,
		   status = excluded.status,
		   updated_at = CURRENT_TIMESTAMP`,
		string(slot), string(model.StatusDisconnected))
	if err != nil {
		return fmt.Errorf("failed to persist disconnected state: %w", err)
	}

	s.logger.Debug("Slot disconnected", zap.String("slot", string(slot)))
	return nil
}

// SetStatus updates only the status of a slot
func (s *SQLiteStore) SetStatus(ctx context.Context, slot model.Slot, status model.ConnectionStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connectivity (slot, status, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(slot) DO UPDATE SET
		   status = excluded.status,
		   updated_at = CURRENT_TIMESTAMP`,
		string(slot), string(status))
	if err != nil {
		return fmt.Errorf("failed to persist status: %w", err)
	}
	return nil
}

// SetPaperProfile records the paper width of the printer slot
func (s *SQLiteStore) SetPaperProfile(ctx context.Context, slot model.Slot, profile model.PaperProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connectivity (slot, status, paper_profile, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(slot) DO UPDATE SET
		   paper_profile = excluded.paper_profile,
		   updated_at = CURRENT_TIMESTAMP`,
		string(slot), string(model.StatusDisconnected), string(profile))
	if err != nil {
		return fmt.Errorf("failed to persist paper profile: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
