package model

import "fmt"

const (
	StatusPending          = "pending"
	StatusPreSnapshot      = "pre_snapshot"
	StatusHostWriteInvoked = "host_write_invoked"
	StatusPostSnapshotDiff = "post_snapshot_diff"
	StatusRenamed          = "renamed"
	StatusNotFound         = "not_found"
	StatusFailed           = "failed"
	StatusCancelled        = "cancelled"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusPreSnapshot: true,
		StatusFailed:      true,
		StatusCancelled:   true,
	},
	StatusPreSnapshot: {
		StatusHostWriteInvoked: true,
		StatusFailed:           true,
	},
	StatusHostWriteInvoked: {
		StatusPostSnapshotDiff: true,
		StatusFailed:           true,
	},
	StatusPostSnapshotDiff: {
		StatusRenamed:  true,
		StatusNotFound: true,
		StatusFailed:   true,
	},
	StatusRenamed:   {},
	StatusNotFound:  {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminal(status string) bool {
	next, ok := allowedTransitions[status]
	return ok && status != "" && len(next) == 0
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobStatus(job *ExportJob, toStatus string, message string) error {
	from := job.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid job status transition: %q -> %q (job_id=%s sheet=%s format=%s)", from, toStatus, job.JobID, job.SheetNumber, job.Format)
	}
	job.Status = toStatus
	job.Message = message
	return nil
}
