// internal/domain/cart/sweeper.go
package cart

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"gorm.io/gorm"
)

// Sweeper periodically deletes carts idle past the retention window.
// It runs independently of request handling.
type Sweeper struct {
	db        *gorm.DB
	config    *config.Config
	log       *logrus.Logger
	scheduler *cron.Cron
}

// NewSweeper creates an abandoned-cart sweeper
func NewSweeper(db *gorm.DB, cfg *config.Config, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		db:        db,
		config:    cfg,
		log:       log,
		scheduler: cron.New(),
	}
}

// Start schedules the sweep at the configured interval
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.config.Cart.SweepInterval)
	if _, err := s.scheduler.AddFunc(spec, func() {
		if err := s.Sweep(); err != nil {
			s.log.WithError(err).Error("Abandoned cart sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule cart sweep: %w", err)
	}

	s.scheduler.Start()
	s.log.WithFields(logrus.Fields{
		"interval":  s.config.Cart.SweepInterval.String(),
		"retention": s.config.Cart.Retention.String(),
	}).Info("Abandoned cart sweeper started")

	return nil
}

// Stop halts the scheduler
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

// Sweep deletes carts not touched within the retention window
func (s *Sweeper) Sweep() error {
	cutoff := time.Now().UTC().Add(-s.config.Cart.Retention)

	var stale []Cart
	if err := s.db.Where("updated_at < ?", cutoff).Find(&stale).Error; err != nil {
		return fmt.Errorf("failed to find stale carts: %w", err)
	}

	if len(stale) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(stale))
	for _, c := range stale {
		ids = append(ids, c.ID)
	}

	if err := s.db.Where("cart_id IN ?", ids).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete stale cart items: %w", err)
	}
	if err := s.db.Delete(&Cart{}, ids).Error; err != nil {
		return fmt.Errorf("failed to delete stale carts: %w", err)
	}

	s.log.WithField("count", len(stale)).Info("Swept abandoned carts")
	return nil
}
