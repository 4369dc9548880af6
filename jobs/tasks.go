package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAdminSweep demotes users whose admin elevation has expired.
	TaskAdminSweep = "authz:admin_sweep"
	// AdminSweepSpec runs the sweep every minute, so a lapsed elevation
	// outlives its expiry by at most one cadence.
	AdminSweepSpec = "* * * * *"
)

// NewAdminSweepTask constructs the sweep task. It carries no payload.
func NewAdminSweepTask() *asynq.Task {
	return asynq.NewTask(TaskAdminSweep, nil)
}
