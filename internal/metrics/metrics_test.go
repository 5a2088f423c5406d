package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestInit checks initialization is idempotent and collectors are usable.
func TestInit(t *testing.T) {
	Init()
	Init()

	if claimsTotal == nil || emptyPollsTotal == nil || queueDepth == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	SetQueueDepth("pending", 7)
	if val := testutil.ToFloat64(queueDepth.WithLabelValues("pending")); val != 7 {
		t.Errorf("expected pending gauge to be 7, got %f", val)
	}
	SetQueueDepth("pending", 2)
	if val := testutil.ToFloat64(queueDepth.WithLabelValues("pending")); val != 2 {
		t.Errorf("expected pending gauge to be 2, got %f", val)
	}

	ObserveSubmission("ok", 3)
	if val := testutil.ToFloat64(submissionsTotal.WithLabelValues("ok")); val != 1 {
		t.Errorf("expected ok submissions to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(resultRowsTotal); val != 3 {
		t.Errorf("expected 3 result rows, got %f", val)
	}
}
