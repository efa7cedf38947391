package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/workflow"
)

// applyOutboxDispatchEnv overrides dispatcher tuning from the environment.
//
// Env:
// - OUTBOX_DISPATCH_BATCH_SIZE=50
// - OUTBOX_DISPATCH_POLL_MS=500
// - OUTBOX_DISPATCH_MAX_ATTEMPTS=20
// - OUTBOX_DISPATCH_BASE_BACKOFF_SECONDS=5
// - OUTBOX_DISPATCH_MAX_BACKOFF_SECONDS=600
func applyOutboxDispatchEnv(d *workflow.OutboxDispatcher) {
	if n, ok := envPositiveInt("OUTBOX_DISPATCH_BATCH_SIZE"); ok {
		d.BatchSize = n
	}
	if n, ok := envPositiveInt("OUTBOX_DISPATCH_POLL_MS"); ok {
		d.PollInterval = time.Duration(n) * time.Millisecond
	}
	if n, ok := envPositiveInt("OUTBOX_DISPATCH_MAX_ATTEMPTS"); ok {
		d.MaxAttempts = n
	}
	if n, ok := envPositiveInt("OUTBOX_DISPATCH_BASE_BACKOFF_SECONDS"); ok {
		d.InitialBackoff = time.Duration(n) * time.Second
	}
	if n, ok := envPositiveInt("OUTBOX_DISPATCH_MAX_BACKOFF_SECONDS"); ok {
		d.MaxBackoff = time.Duration(n) * time.Second
	}
	if d.MaxBackoff < d.InitialBackoff {
		d.MaxBackoff = d.InitialBackoff
	}
}

func envPositiveInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
