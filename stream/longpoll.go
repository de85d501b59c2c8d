package stream

import (
	"context"
	"time"

	"ginko-backend/types"
)

// LongPollResult is the JSON body of /events/stream. LastEventID is the
// newest delivered event, or the graph tail when the wait timed out
// empty, so the client always has an anchor for its next call.
type LongPollResult struct {
	Events      []types.Event `json:"events"`
	LastEventID string        `json:"lastEventId"`
}

// LongPoll waits up to maxWait for events past the poller's boundary.
func LongPoll(ctx context.Context, p *Poller, maxWait time.Duration) (LongPollResult, error) {
	if maxWait <= 0 {
		maxWait = DefaultLongPollWait
	}
	if maxWait > MaxLongPollWait {
		maxWait = MaxLongPollWait
	}

	events, err := p.Wait(ctx, maxWait)
	if err != nil {
		return LongPollResult{}, err
	}

	res := LongPollResult{Events: events}
	if res.Events == nil {
		res.Events = []types.Event{}
	}
	if len(events) > 0 {
		res.LastEventID = events[len(events)-1].ID
		return res, nil
	}

	tail, ok, err := p.Tail(ctx)
	if err != nil {
		return LongPollResult{}, err
	}
	if ok {
		res.LastEventID = tail.ID
	}
	return res, nil
}
