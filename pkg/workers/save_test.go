package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mocks "github.com/ThaumielSparrow/LodeRunner-sub004/mocks/github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSavePreferencesWorker(t *testing.T) {
	repository := mocks.NewRepository(t)
	requests := make(chan *models.Preferences, 4)

	first := &models.Preferences{Profile: "default", Nick: "digger"}
	second := &models.Preferences{Profile: "other", Nick: "runner"}

	var wg sync.WaitGroup
	wg.Add(2)
	repository.EXPECT().SavePreferences(mock.Anything, first).Return(nil).Run(func(context.Context, *models.Preferences) { wg.Done() }).Once()
	repository.EXPECT().SavePreferences(mock.Anything, second).Return(errors.New("disk full")).Run(func(context.Context, *models.Preferences) { wg.Done() }).Once()

	worker := NewSavePreferencesWorker(NewSavePreferencesWorkerOptions{
		Repository:          repository,
		SavePreferencesChan: requests,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	requests <- first
	requests <- second
	wg.Wait()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestSavePreferencesWorker_drainsOnShutdown(t *testing.T) {
	repository := mocks.NewRepository(t)
	requests := make(chan *models.Preferences, 4)

	prefs := &models.Preferences{Profile: "default"}
	repository.EXPECT().SavePreferences(mock.Anything, prefs).Return(nil).Once()

	worker := NewSavePreferencesWorker(NewSavePreferencesWorkerOptions{
		Repository:          repository,
		SavePreferencesChan: requests,
		Timeout:             time.Second,
	})

	requests <- prefs

	worker.drain()
	assert.Empty(t, requests)
}
