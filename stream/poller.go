package stream

import (
	"context"
	"time"

	"ginko-backend/types"
)

// DefaultQuantum is the poll interval for live readers. Cancellation
// and append wakeups are both observed within one quantum.
const DefaultQuantum = time.Second

// Long-poll wait bounds for /events/stream.
const (
	DefaultLongPollWait = 5 * time.Second
	MaxLongPollWait     = 30 * time.Second
)

const pollBatchSize = 100

// Source is the slice of the graph store the stream layer reads.
type Source interface {
	EventByID(ctx context.Context, id string) (types.Event, error)
	EventsSince(ctx context.Context, graphID, sinceTs string, exclude []string, limit int) ([]types.Event, error)
	DeliveredAt(ctx context.Context, graphID, ts, anchorID string) ([]string, error)
	TailEvent(ctx context.Context, graphID string) (types.Event, bool, error)
}

// Poller is one reader's view of a graph's forward event stream. It
// tracks a resume boundary as (timestamp, ids already delivered at that
// timestamp) so reconnects never re-deliver the anchor even when several
// events share an instant.
type Poller struct {
	source  Source
	hub     *Hub
	graphID string
	filter  Filter

	sinceTs string
	exclude []string

	notify  chan struct{}
	quantum time.Duration
}

// NewPoller registers a reader with the hub. Callers must Close it.
func NewPoller(source Source, hub *Hub, graphID string, filter Filter) *Poller {
	return &Poller{
		source:  source,
		hub:     hub,
		graphID: graphID,
		filter:  filter,
		notify:  hub.register(graphID),
		quantum: DefaultQuantum,
	}
}

// Close unregisters the reader from the hub.
func (p *Poller) Close() {
	p.hub.unregister(p.graphID, p.notify)
}

// GraphID returns the graph this poller reads.
func (p *Poller) GraphID() string { return p.graphID }

// SeedTime starts the stream at a caller-supplied timestamp. Events at
// exactly ts are included.
func (p *Poller) SeedTime(ts string) {
	p.sinceTs = ts
	p.exclude = nil
}

// SeedAfterEvent starts the stream immediately after a known event,
// excluding everything already delivered at that event's timestamp.
// This is the Last-Event-ID resume path.
func (p *Poller) SeedAfterEvent(ctx context.Context, eventID string) error {
	anchor, err := p.source.EventByID(ctx, eventID)
	if err != nil {
		return err
	}
	delivered, err := p.source.DeliveredAt(ctx, p.graphID, anchor.Timestamp, anchor.ID)
	if err != nil {
		return err
	}
	p.sinceTs = anchor.Timestamp
	p.exclude = delivered
	return nil
}

// SeedNow starts the stream at the graph's current tail so the reader
// sees only events appended after the call. An empty graph streams from
// the beginning.
func (p *Poller) SeedNow(ctx context.Context) error {
	tail, ok, err := p.source.TailEvent(ctx, p.graphID)
	if err != nil {
		return err
	}
	if !ok {
		p.sinceTs = ""
		p.exclude = nil
		return nil
	}
	return p.SeedAfterEvent(ctx, tail.ID)
}

// Poll runs one forward read, advances the boundary over everything the
// graph returned, and hands back only the events passing the filter.
func (p *Poller) Poll(ctx context.Context) ([]types.Event, error) {
	raw, err := p.source.EventsSince(ctx, p.graphID, p.sinceTs, p.exclude, pollBatchSize)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	last := raw[len(raw)-1]
	if last.Timestamp != p.sinceTs {
		p.exclude = nil
	}
	p.sinceTs = last.Timestamp
	for _, ev := range raw {
		if ev.Timestamp == last.Timestamp {
			p.exclude = append(p.exclude, ev.ID)
		}
	}

	var matched []types.Event
	for _, ev := range raw {
		if p.filter.Match(ev) {
			matched = append(matched, ev)
		}
	}
	return matched, nil
}

// Wait polls until at least one matching event arrives, the wait
// expires (nil, nil), or ctx is canceled. Between polls it sleeps one
// quantum or until the hub signals a local append.
func (p *Poller) Wait(ctx context.Context, maxWait time.Duration) ([]types.Event, error) {
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	tick := time.NewTicker(p.quantum)
	defer tick.Stop()

	for {
		events, err := p.Poll(ctx)
		if err != nil || len(events) > 0 {
			return events, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-p.notify:
		case <-tick.C:
		}
	}
}

// Tail exposes the graph's newest event for timeout responses.
func (p *Poller) Tail(ctx context.Context) (types.Event, bool, error) {
	return p.source.TailEvent(ctx, p.graphID)
}
