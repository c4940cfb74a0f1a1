package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/models"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []messaging.SyncJob
	err  error
}

func (q *fakeQueue) EnqueueSync(_ context.Context, job messaging.SyncJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func TestPollerEnqueuesPollingIntegrations(t *testing.T) {
	e := newEnv(t, nil)
	polled := newIntegration(t, e, models.PlatformSwiggy, models.IntegrationSettings{Poll: true})
	newIntegration(t, e, models.PlatformZomato, models.IntegrationSettings{Poll: false})

	queue := &fakeQueue{}
	poller := NewPoller(e.db, e.svc.PlatformSync, queue, time.Minute)
	require.NoError(t, poller.RunOnce(context.Background()))
	require.Equal(t, 1, queue.len())
	assert.Equal(t, polled.ID, queue.jobs[0].IntegrationID)
}

func TestPollerAggregatesFailures(t *testing.T) {
	e := newEnv(t, nil)
	newIntegration(t, e, models.PlatformSwiggy, models.IntegrationSettings{Poll: true})
	newIntegration(t, e, models.PlatformZomato, models.IntegrationSettings{Poll: true})

	queue := &fakeQueue{err: errors.New("broker down")}
	err := NewPoller(e.db, e.svc.PlatformSync, queue, time.Minute).RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Contains(t, err.Error(), "broker down")
}

func TestPollerRunsInlineWithoutQueue(t *testing.T) {
	platform := &fakePlatform{}
	e := newEnv(t, map[string]PlatformAPI{models.PlatformSwiggy: platform})
	integration := newIntegration(t, e, models.PlatformSwiggy, models.IntegrationSettings{Poll: true})

	poller := NewPoller(e.db, e.svc.PlatformSync, nil, 20*time.Millisecond)
	poller.Start()
	assert.Eventually(t, func() bool {
		var current models.PlatformIntegration
		return e.db.First(&current, integration.ID).Error == nil && current.LastSyncedAt != nil
	}, 2*time.Second, 20*time.Millisecond)
	poller.Stop()
	poller.Stop()
}
