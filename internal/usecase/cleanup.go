package usecase

import (
	"errors"
	"io/fs"
	"os"

	"github.com/semmidev/dbstash/internal/domain"
)

// Cleaner removes a job's local artifacts. It runs whatever the outcome.
type Cleaner struct {
	logger Logger
}

func NewCleaner(logger Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Cleanup walks the tracked paths newest first, so files go before the
// directory holding them. Each path gets one attempt; paths that never came
// into existence are skipped silently. The work directory belongs to the job
// alone, so it is removed with whatever a killed tool left inside.
func (c *Cleaner) Cleanup(job *domain.Job) []*domain.CleanupWarning {
	var warnings []*domain.CleanupWarning

	for i := len(job.Artifacts) - 1; i >= 0; i-- {
		p := job.Artifacts[i]
		remove := os.Remove
		if p == job.WorkDir {
			remove = os.RemoveAll
		}
		err := remove(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}

		w := &domain.CleanupWarning{Path: p, Err: err}
		warnings = append(warnings, w)
		c.logger.Warnw("Failed to remove local artifact", "job_id", job.ID, "path", p, "error", err)
	}

	return warnings
}
