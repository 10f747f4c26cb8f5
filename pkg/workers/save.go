package workers

import (
	"context"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
)

// DefaultSaveTimeout bounds a single repository write.
const DefaultSaveTimeout = 5 * time.Second

type SavePreferencesWorker struct {
	repository          repositories.Repository
	savePreferencesChan <-chan *models.Preferences
	timeout             time.Duration
	logger              *log.Logger
}

type NewSavePreferencesWorkerOptions struct {
	Repository          repositories.Repository
	SavePreferencesChan <-chan *models.Preferences
	Timeout             time.Duration
}

// NewSavePreferencesWorker creates a new SavePreferencesWorker.
// The worker takes preference writes off the tick goroutine so a slow
// database never stalls the simulation.
func NewSavePreferencesWorker(opts NewSavePreferencesWorkerOptions) *SavePreferencesWorker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSaveTimeout
	}
	return &SavePreferencesWorker{
		repository:          opts.Repository,
		savePreferencesChan: opts.SavePreferencesChan,
		timeout:             opts.Timeout,
		logger:              log.Named("save-worker"),
	}
}

// Start saves requests until ctx is done, then drains what is already queued.
func (w *SavePreferencesWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case prefs, ok := <-w.savePreferencesChan:
			if !ok {
				return
			}
			w.savePreferences(ctx, prefs)
		}
	}
}

func (w *SavePreferencesWorker) drain() {
	for {
		select {
		case prefs, ok := <-w.savePreferencesChan:
			if !ok {
				return
			}
			w.savePreferences(context.Background(), prefs)
		default:
			return
		}
	}
}

func (w *SavePreferencesWorker) savePreferences(ctx context.Context, prefs *models.Preferences) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.repository.SavePreferences(ctx, prefs); err != nil {
		w.logger.Error("Failed to save preferences for profile %s: %v", prefs.Profile, err)
		return
	}
	w.logger.Debug("Saved preferences for profile %s", prefs.Profile)
}
