package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{"", StatusPending},
		{StatusPending, StatusPreSnapshot},
		{StatusPreSnapshot, StatusHostWriteInvoked},
		{StatusHostWriteInvoked, StatusPostSnapshotDiff},
		{StatusPostSnapshotDiff, StatusRenamed},
		{StatusPostSnapshotDiff, StatusNotFound},
		{StatusHostWriteInvoked, StatusFailed},
		{StatusPending, StatusCancelled},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusPending, StatusRenamed},
		{StatusPreSnapshot, StatusPostSnapshotDiff},
		{StatusRenamed, StatusPending},
		{StatusHostWriteInvoked, StatusCancelled},
		{"not_a_state", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionJobStatus_BlocksIllegalTransition(t *testing.T) {
	job := ExportJob{
		JobID:       "job-1",
		SheetNumber: "A101",
		Format:      "pdf",
		Status:      StatusPending,
	}

	if err := TransitionJobStatus(&job, StatusRenamed, ""); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if job.Status != StatusPending {
		t.Fatalf("status changed on rejected transition: %s", job.Status)
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []string{StatusRenamed, StatusNotFound, StatusFailed, StatusCancelled} {
		if !IsTerminal(s) {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []string{"", StatusPending, StatusPostSnapshotDiff} {
		if IsTerminal(s) {
			t.Fatalf("expected %q to be non-terminal", s)
		}
	}
}

func TestBatchManifestRecount(t *testing.T) {
	mf := BatchManifest{Jobs: []ExportJob{
		{Status: StatusPending},
		{Status: StatusHostWriteInvoked},
		{Status: StatusRenamed},
		{Status: StatusRenamed},
		{Status: StatusNotFound},
		{Status: StatusFailed},
		{Status: StatusCancelled},
	}}
	mf.Recount()
	if mf.Total != 7 || mf.Pending != 1 || mf.Running != 1 || mf.Renamed != 2 || mf.NotFound != 1 || mf.Failed != 1 || mf.Cancelled != 1 {
		t.Fatalf("unexpected counts: %+v", mf)
	}
}
