package repositories

import (
	"strings"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
	"github.com/google/uuid"
)

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

// colors are stored as a single comma separated column
func joinColors(colors []string) string {
	return strings.Join(colors, ",")
}

func splitColors(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// withPlayerID assigns a player id to preferences saved for the first time.
func withPlayerID(prefs *models.Preferences) {
	if prefs.PlayerID == uuid.Nil {
		prefs.PlayerID = uuid.New()
	}
}
