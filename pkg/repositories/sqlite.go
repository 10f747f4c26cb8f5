package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database file at path and applies the
// embedded migrations. ":memory:" opens a private in-memory database.
func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, "migrations/sqlite", func(ctx context.Context, q string) error {
		_, err := db.ExecContext(ctx, q)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

// migrate executes every migration in dir in file name order.
func migrate(ctx context.Context, dir string, exec func(ctx context.Context, q string) error) error {
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		migrationPath := path.Join(dir, entry.Name())
		migration, err := fs.ReadFile(migrationsFS, migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if err := exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SavePreferences(ctx context.Context, prefs *models.Preferences) error {
	withPlayerID(prefs)
	prefs.UpdatedAt = time.Now()

	q := `
	INSERT OR REPLACE INTO preferences (profile, player_id, nick, colors, updated_at)
	VALUES (?, ?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, prefs.Profile, prefs.PlayerID.String(), prefs.Nick, joinColors(prefs.Colors), prefs.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save preferences: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadPreferences(ctx context.Context, profile string) (*models.Preferences, error) {
	q := `
	SELECT player_id, nick, colors, updated_at FROM preferences WHERE profile = ?;
	`
	var playerID string
	var colors string
	var updatedAt int64
	prefs := &models.Preferences{Profile: profile}
	if err := r.db.QueryRowContext(ctx, q, profile).Scan(&playerID, &prefs.Nick, &colors, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan preferences: %v", err)
	}

	id, err := uuid.Parse(playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse player id %q: %v", playerID, err)
	}
	prefs.PlayerID = id
	prefs.Colors = splitColors(colors)
	prefs.UpdatedAt = time.UnixMilli(updatedAt)

	return prefs, nil
}
