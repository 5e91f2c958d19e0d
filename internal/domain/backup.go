package domain

import (
	"context"
	"time"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type Stage string

const (
	StageConfig   Stage = "config"
	StageDump     Stage = "dump"
	StageCompress Stage = "compress"
	StageUpload   Stage = "upload"
	StageCleanup  Stage = "cleanup"
)

type Outcome struct {
	Status Status
	Stage  Stage
	Err    error
}

// Job is a single end-to-end run of the backup pipeline.
type Job struct {
	ID        string
	StartedAt time.Time
	FileName  string
	WorkDir   string
	Artifacts []string
	RemoteKey string
	Size      int64
	Outcome   Outcome
}

func NewJob(id string, startedAt time.Time) *Job {
	return &Job{
		ID:        id,
		StartedAt: startedAt,
		Outcome:   Outcome{Status: StatusRunning},
	}
}

// Track registers a local path for deletion at job end. Paths are tracked
// before the stage that writes them runs.
func (j *Job) Track(path string) {
	j.Artifacts = append(j.Artifacts, path)
}

func (j *Job) Fail(stage Stage, err error) {
	j.Outcome = Outcome{Status: StatusFailed, Stage: stage, Err: err}
}

func (j *Job) Succeed() {
	j.Outcome = Outcome{Status: StatusSuccess}
}

func (j *Job) Failed() bool {
	return j.Outcome.Status == StatusFailed
}

// Report is the summary handed to notifiers once a job has finished.
type Report struct {
	JobID     string
	RemoteKey string
	Size      int64
	Duration  time.Duration
	Outcome   Outcome
}

func (j *Job) Report(finishedAt time.Time) Report {
	return Report{
		JobID:     j.ID,
		RemoteKey: j.RemoteKey,
		Size:      j.Size,
		Duration:  finishedAt.Sub(j.StartedAt),
		Outcome:   j.Outcome,
	}
}

type BackupExecutor interface {
	Execute(ctx context.Context) error
}
