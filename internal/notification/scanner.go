package notification

import (
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/database"
)

// retentionDays is how long notifications are kept before startup cleanup
// removes them.
const retentionDays = 90

// Scanner runs the expiry scan on a fixed interval.
type Scanner struct {
	db *gorm.DB
}

func NewScanner(db *gorm.DB) *Scanner {
	return &Scanner{db: db}
}

// Start runs the startup cleanup, scans once, then keeps scanning on the
// given interval in the background.
func (s *Scanner) Start(interval time.Duration) {
	s.cleanup()

	ticker := time.NewTicker(interval)
	go func() {
		s.Run()

		for range ticker.C {
			s.Run()
		}
	}()
	log.Info().Dur("interval", interval).Msg("expiry scanner started")
}

// Run executes one scan and logs the outcome.
func (s *Scanner) Run() Summary {
	summary := ScanExpiring(s.db, time.Now())
	event := log.Info()
	if summary.Error != "" {
		event = log.Error().Str("error", summary.Error)
	}
	event.
		Int("checked", summary.Checked).
		Int("created", summary.Created).
		Msg("expiry scan finished")
	return summary
}

// cleanup is the one-shot startup task: prune notifications past retention.
func (s *Scanner) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&database.Notification{})
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("notification cleanup failed")
		return
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("deleted", result.RowsAffected).Msg("pruned old notifications")
	}
}
