package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestOutboxBackoff(t *testing.T) {
	d := NewOutboxDispatcher(nil, logrus.New())
	cases := map[int]time.Duration{
		0:  5 * time.Second,
		1:  5 * time.Second,
		2:  10 * time.Second,
		4:  40 * time.Second,
		8:  10 * time.Minute,
		30: 10 * time.Minute,
	}
	for attempt, want := range cases {
		if got := d.backoff(attempt); got != want {
			t.Fatalf("attempt %d: got %s want %s", attempt, got, want)
		}
	}
}

func TestDispatchOnceWithoutDatabase(t *testing.T) {
	d := NewOutboxDispatcher(nil, logrus.New())
	// no database: nothing is claimed and nothing panics
	d.dispatchOnce(context.Background())
}
