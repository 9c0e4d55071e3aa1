package sink

import (
	"time"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch"
)

var testTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testBatch() *eventbatch.Batch {
	return &eventbatch.Batch{
		ID: "batch-1",
		Events: []eventbatch.Event{
			eventbatch.NewEvent("signup", map[string]any{"plan": "pro"}, testTime),
			eventbatch.NewEvent("page_view", nil, testTime.Add(time.Second)),
		},
		CreatedAt: testTime,
	}
}
