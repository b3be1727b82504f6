package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/purchase-analytics/internal/jobs"
	"github.com/dvloznov/purchase-analytics/internal/logger"
)

// RebuildJobHandler returns a job handler that runs Rebuild for every
// RebuildJob and records the outcome on the job.
func RebuildJobHandler(deps Deps, dataset *Dataset) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		rebuild, ok := job.(*jobs.RebuildJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log := logger.FromContext(ctx)
		log.Info().
			Str("job_id", rebuild.JobID).
			Str("trigger", rebuild.Trigger).
			Int("retry", rebuild.RetryCount).
			Msg("Processing rebuild job")

		state, err := Rebuild(ctx, deps, dataset)
		if err != nil {
			return err
		}

		rebuild.BuildID = state.Snapshot.BuildID
		rebuild.RawRows = len(state.Raw)
		rebuild.CleanRows = len(state.Snapshot.Clean)
		return nil
	}
}
