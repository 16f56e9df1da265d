package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/sources/categories"
)

// CategoryReloader handles periodic reloading of the category map
type CategoryReloader struct {
	loader        *categories.Loader
	holder        *categories.Holder
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewCategoryReloader creates a new category map reloader
func NewCategoryReloader(
	categoryFile string,
	holder *categories.Holder,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CategoryReloader {
	return &CategoryReloader{
		loader:        categories.NewLoader(categoryFile),
		holder:        holder,
		logger:        log.With(logger.Component("categories")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic reload process
func (cr *CategoryReloader) Start(ctx context.Context) error {
	// Load immediately on start
	if err := cr.Reload(); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	ticker := time.NewTicker(cr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := cr.Reload(); err != nil {
					cr.logger.Error("failed to reload categories",
						logger.Error(err))
				}
			case <-cr.manualTrigger:
				cr.logger.Info("manual reload triggered")
				if err := cr.Reload(); err != nil {
					cr.logger.Error("failed to reload categories",
						logger.Error(err))
				}
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (cr *CategoryReloader) Stop() {
	close(cr.stopCh)
}

// Reload swaps in a freshly parsed map. The previous map stays on error.
func (cr *CategoryReloader) Reload() error {
	mapper, err := cr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	cr.holder.Store(mapper)
	cr.logger.Info("loaded category map",
		logger.Int("labels", mapper.Len()))
	return nil
}
