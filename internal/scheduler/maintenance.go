package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/maitredhq/maitred/internal/models"
	"github.com/maitredhq/maitred/internal/store"
)

// RegisterMaintenanceJobs registers the nightly reservation archive task:
// confirmed and seated reservations on past dates are marked completed so
// they stop counting toward capacity.
func RegisterMaintenanceJobs(db *store.Store) error {
	if db == nil {
		return fmt.Errorf("maintenance jobs require a store")
	}

	jobName := "archive_past_reservations"
	cronExpr := "30 3 * * *"
	jobLogger := log.With().
		Str("component", "maintenance_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err := AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		today := time.Now().Format(models.DateLayout)
		archived, err := db.ArchivePastReservations(ctx, today)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Failed to archive past reservations")
			return
		}
		if archived > 0 {
			jobLogger.Info().Int64("archived", archived).Msg("Archived past reservations")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add archive job: %w", err)
	}

	jobLogger.Info().Msg("Maintenance job registered")
	return nil
}
