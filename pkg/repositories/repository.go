package repositories

import (
	"context"
	"embed"
	"fmt"
	"net/url"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
)

//go:embed migrations
var migrationsFS embed.FS

type Repository interface {
	Close(ctx context.Context) error
	LoadPreferences(ctx context.Context, profile string) (*models.Preferences, error)
	SavePreferences(ctx context.Context, prefs *models.Preferences) error
}

// NewRepository opens the repository named by a database URL:
// sqlite://<file> or postgres(ql)://...
func NewRepository(ctx context.Context, databaseURL string) (Repository, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "sqlite":
		return NewSQLiteRepository(ctx, u.Host+u.Path)
	case "postgres", "postgresql":
		return NewPostgresRepository(ctx, u.String())
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
