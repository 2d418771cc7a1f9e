package enforce

import (
	"context"

	"github.com/google/uuid"

	"github.com/banshee-data/lane.report/internal/bus"
	"github.com/banshee-data/lane.report/internal/lane"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/units"
)

// maxPendingPlates bounds the readings held while a plate read is in
// flight. Results normally retire entries promptly; the cap only matters
// when camera results are lost to bus overflow.
const maxPendingPlates = 64

// RecordStore persists readings and confirmed plates. Store failures are
// reported as warnings and never interrupt the pipeline.
type RecordStore interface {
	RecordReading(ctx context.Context, r Reading) error
	RecordPlate(ctx context.Context, readingID uuid.UUID, plate string) error
}

// Controller is the speed/classification stage. It consumes finalized
// passages and camera results in a single loop, so the two paths interleave
// without sharing mutable state beyond the bus.
type Controller struct {
	limits   Limits
	passages *bus.Mailbox[lane.Passage]
	display  *bus.Mailbox[DisplayFrame]
	triggers *bus.Broadcast[CameraTrigger]
	results  *bus.Subscription[CameraResult]
	store    RecordStore // optional

	pending map[uuid.UUID]Reading
}

// NewController wires the controller to its mailboxes and channels. store
// may be nil when persistence is disabled.
func NewController(
	limits Limits,
	passages *bus.Mailbox[lane.Passage],
	display *bus.Mailbox[DisplayFrame],
	triggers *bus.Broadcast[CameraTrigger],
	results *bus.Subscription[CameraResult],
	store RecordStore,
) *Controller {
	return &Controller{
		limits:   limits,
		passages: passages,
		display:  display,
		triggers: triggers,
		results:  results,
		store:    store,
		pending:  make(map[uuid.UUID]Reading),
	}
}

// Run processes passages and camera results until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-c.passages.C():
			c.handlePassage(ctx, p)
		case r := <-c.results.C():
			c.handleResult(ctx, r)
		}
	}
}

// handlePassage computes the reading for one passage, forwards it to the
// display, and publishes a camera trigger when the speed is an infraction.
// The trigger is published only after the status is computed, so a passage
// always reaches this stage before any trigger derived from it.
func (c *Controller) handlePassage(ctx context.Context, p lane.Passage) {
	speed := units.SpeedKMH(c.limits.DistanceMM, p.DurationMS)
	limit := c.limits.ForClass(p.Class)

	r := Reading{
		ID:         uuid.New(),
		Lane:       p.Lane,
		StartMS:    p.StartMS,
		EndMS:      p.EndMS,
		DurationMS: p.DurationMS,
		AxleCount:  p.AxleCount,
		Class:      p.Class,
		SpeedKMH:   speed,
		LimitKMH:   limit,
		Status:     StatusFor(speed, limit, c.limits.WarningPercent),
	}

	c.display.Put(DisplayFrame{
		Lane:     r.Lane,
		SpeedKMH: r.SpeedKMH,
		LimitKMH: r.LimitKMH,
		Class:    r.Class,
		Status:   r.Status,
	})

	if c.store != nil {
		if err := c.store.RecordReading(ctx, r); err != nil {
			monitoring.Logf("enforce: failed to record reading %s: %v", r.ID, err)
		}
	}

	if r.Status != StatusInfraction {
		return
	}

	c.rememberPending(r)
	// Drop-on-full applies here too: a lost trigger means no plate read for
	// this infraction, accepted rather than retried.
	c.triggers.Publish(CameraTrigger{
		ReadingID: r.ID,
		SpeedKMH:  r.SpeedKMH,
		Class:     r.Class,
	})
}

// handleResult validates one camera result and, when usable, emits the
// confirmed infraction frame carrying the plate.
func (c *Controller) handleResult(ctx context.Context, res CameraResult) {
	if !res.ValidRead {
		monitoring.Logf("enforce: camera read failed for reading %s", res.ReadingID)
		delete(c.pending, res.ReadingID)
		return
	}
	if !ValidatePlate(res.Plate) {
		monitoring.Logf("enforce: camera returned malformed plate %q for reading %s", res.Plate, res.ReadingID)
		delete(c.pending, res.ReadingID)
		return
	}

	r, ok := c.pending[res.ReadingID]
	if !ok {
		monitoring.Logf("enforce: camera result for unknown reading %s, ignored", res.ReadingID)
		return
	}
	delete(c.pending, res.ReadingID)

	c.display.Put(DisplayFrame{
		Lane:     r.Lane,
		SpeedKMH: r.SpeedKMH,
		LimitKMH: r.LimitKMH,
		Class:    r.Class,
		Status:   StatusInfraction,
		Plate:    res.Plate,
	})

	if c.store != nil {
		if err := c.store.RecordPlate(ctx, r.ID, res.Plate); err != nil {
			monitoring.Logf("enforce: failed to record plate for reading %s: %v", r.ID, err)
		}
	}
}

// rememberPending tracks an infraction reading until its plate result
// arrives, evicting an arbitrary stale entry if the camera stage has been
// losing results.
func (c *Controller) rememberPending(r Reading) {
	if len(c.pending) >= maxPendingPlates {
		for id := range c.pending {
			monitoring.Logf("enforce: evicting stale pending plate read for reading %s", id)
			delete(c.pending, id)
			break
		}
	}
	c.pending[r.ID] = r
}
