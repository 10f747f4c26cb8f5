package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database and applies the embedded
// migrations. The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := migrate(ctx, "migrations/postgres", func(ctx context.Context, q string) error {
		_, err := conn.Exec(ctx, q)
		return err
	}); err != nil {
		conn.Close(ctx)
		return nil, err
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return conn, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SavePreferences(ctx context.Context, prefs *models.Preferences) error {
	withPlayerID(prefs)
	prefs.UpdatedAt = time.Now()

	q := `
	INSERT INTO preferences (profile, player_id, nick, colors, updated_at) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (profile) DO UPDATE SET player_id = $2, nick = $3, colors = $4, updated_at = $5;
	`
	_, err := r.conn.Exec(ctx, q, prefs.Profile, prefs.PlayerID.String(), prefs.Nick, joinColors(prefs.Colors), prefs.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save preferences: %v", err)
	}

	return nil
}

func (r *PostgresRepository) LoadPreferences(ctx context.Context, profile string) (*models.Preferences, error) {
	q := `
	SELECT player_id::text, nick, colors, updated_at FROM preferences WHERE profile = $1;
	`
	var playerID string
	var colors string
	var updatedAt int64
	prefs := &models.Preferences{Profile: profile}
	if err := r.conn.QueryRow(ctx, q, profile).Scan(&playerID, &prefs.Nick, &colors, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan preferences: %v", err)
	}

	if err := prefs.PlayerID.UnmarshalText([]byte(playerID)); err != nil {
		return nil, fmt.Errorf("failed to parse player id %q: %v", playerID, err)
	}
	prefs.Colors = splitColors(colors)
	prefs.UpdatedAt = time.UnixMilli(updatedAt)

	return prefs, nil
}
