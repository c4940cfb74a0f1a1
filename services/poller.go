package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const pollTimeout = 2 * time.Minute

// Poller periodically pulls orders for every active integration that asks
// for polling. With a job queue the pull is handed to a worker, otherwise
// it runs inline.
type Poller struct {
	DB       *gorm.DB
	Sync     *PlatformSyncService
	Jobs     messaging.JobQueue
	Interval time.Duration
	StopChan chan struct{}

	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPoller(db *gorm.DB, syncer *PlatformSyncService, jobs messaging.JobQueue, interval time.Duration) *Poller {
	return &Poller{
		DB:       db,
		Sync:     syncer,
		Jobs:     jobs,
		Interval: interval,
		StopChan: make(chan struct{}),
	}
}

func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
				if err := p.RunOnce(ctx); err != nil {
					utils.ErrorLogger.Errorf("platform poll: %v", err)
				}
				cancel()
			case <-p.StopChan:
				return
			}
		}
	}()
}

func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.StopChan) })
	p.wg.Wait()
}

// RunOnce polls every eligible integration once and returns the failures
// of all of them together.
func (p *Poller) RunOnce(ctx context.Context) error {
	var integrations []models.PlatformIntegration
	if err := p.DB.WithContext(ctx).Where("is_active = ?", true).Find(&integrations).Error; err != nil {
		return err
	}

	var result *multierror.Error
	for _, integration := range integrations {
		if !integration.Options().Poll {
			continue
		}
		var err error
		if p.Jobs != nil {
			err = p.Jobs.EnqueueSync(ctx, messaging.SyncJob{IntegrationID: integration.ID})
		} else {
			_, err = p.Sync.PullOrders(ctx, integration.ID)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("integration %d (%s): %w", integration.ID, integration.Platform, err))
		}
	}
	return result.ErrorOrNil()
}
