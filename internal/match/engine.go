package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/order-dispatch/internal/config"
	"github.com/example/order-dispatch/internal/dedup"
	"github.com/example/order-dispatch/internal/distance"
	"github.com/example/order-dispatch/internal/models"
	"github.com/example/order-dispatch/internal/observability"
	"github.com/example/order-dispatch/internal/presence"
)

// OfferSink delivers one offer to one courier connection. Implemented by the
// dispatch service on top of the broadcast transport; faked in tests.
type OfferSink interface {
	Offer(entry presence.Entry, order models.Order, d models.DistanceResult) error
}

// Candidate is one courier that survived radius filtering for an order.
type Candidate struct {
	Entry    presence.Entry
	Distance models.DistanceResult
}

// Result reports what one match/broadcast run did.
type Result struct {
	// Matching holds vehicle-class-matching survivors, nearest first.
	Matching []Candidate
	// NonMatching holds in-radius couriers of other vehicle classes.
	NonMatching []Candidate
	// Offered lists driver IDs that actually received an offer this run.
	Offered []string
	// Skipped is true when the order was not offerable (wrong status, or the
	// pickup is still beyond the class lookahead window).
	Skipped bool
}

// Engine produces the ranked eligible courier set for one order and fans
// offers out to it. This is broadcast-to-many: every eligible courier in the
// matching group gets an offer, and the first acceptor wins elsewhere.
type Engine struct {
	Profiles map[models.VehicleClass]config.ClassProfile
	Presence *presence.Registry
	Dedup    dedup.Tracker
	Oracle   distance.Oracle
	Offers   OfferSink

	// OfferNonMatching extends the fan-out to in-radius couriers whose
	// vehicle class differs from the order's, after the matching group.
	OfferNonMatching bool

	Log *slog.Logger
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run executes one match/broadcast step for an order. Per-candidate failures
// (oracle unreachable, courier gone mid-lookup) exclude that candidate only;
// the run itself only errors on misconfiguration.
func (e *Engine) Run(ctx context.Context, order models.Order) (Result, error) {
	profile, ok := e.Profiles[order.VehicleClass]
	if !ok {
		return Result{}, fmt.Errorf("no profile for vehicle class %q", order.VehicleClass)
	}
	log := e.Log.With("order_id", order.ID, "vehicle_class", order.VehicleClass)

	if !order.Status.Offerable() {
		log.Info("skipping match, order not offerable", "status", order.Status)
		return Result{Skipped: true}, nil
	}
	if until := order.ScheduledPickupAt.Sub(e.now()); profile.Lookahead > 0 && until > profile.Lookahead {
		log.Info("skipping match, pickup beyond lookahead", "until_pickup", until)
		return Result{Skipped: true}, nil
	}

	observability.MatchesTotal.Inc()

	var res Result
	for _, snap := range e.Presence.Snapshot() {
		d, err := e.Oracle.Distance(ctx, snap.Location, order.Pickup)
		if err != nil {
			observability.CandidatesExcludedTotal.WithLabelValues("oracle").Inc()
			log.Warn("distance lookup failed, excluding candidate", "driver_id", snap.DriverID, "error", err)
			continue
		}
		if d.Meters > profile.RadiusKm*1000 {
			observability.CandidatesExcludedTotal.WithLabelValues("radius").Inc()
			continue
		}
		// The oracle call may have suspended us; the courier can have
		// disconnected in the meantime. Use the current entry, not the
		// snapshot one, so we never offer into a dead connection.
		cur, ok := e.Presence.Get(snap.DriverID)
		if !ok {
			observability.CandidatesExcludedTotal.WithLabelValues("disconnected").Inc()
			continue
		}
		c := Candidate{Entry: cur, Distance: d}
		if cur.VehicleClass == order.VehicleClass {
			res.Matching = append(res.Matching, c)
		} else {
			res.NonMatching = append(res.NonMatching, c)
		}
	}

	byDistance := func(cs []Candidate) func(i, j int) bool {
		return func(i, j int) bool { return cs[i].Distance.Meters < cs[j].Distance.Meters }
	}
	sort.Slice(res.Matching, byDistance(res.Matching))
	sort.Slice(res.NonMatching, byDistance(res.NonMatching))

	e.offer(ctx, log, order, res.Matching, &res)
	if e.OfferNonMatching {
		e.offer(ctx, log, order, res.NonMatching, &res)
	}
	return res, nil
}

func (e *Engine) offer(ctx context.Context, log *slog.Logger, order models.Order, cands []Candidate, res *Result) {
	for _, c := range cands {
		seen, err := e.Dedup.HasBeenNotified(ctx, order.ID, c.Entry.DriverID)
		if err != nil {
			// A duplicate offer is harmless next to a lost one, so a tracker
			// outage does not suppress the fan-out.
			log.Warn("dedup lookup failed, offering anyway", "driver_id", c.Entry.DriverID, "error", err)
		} else if seen {
			continue
		}
		if err := e.Offers.Offer(c.Entry, order, c.Distance); err != nil {
			log.Warn("offer delivery failed", "driver_id", c.Entry.DriverID, "error", err)
			continue
		}
		observability.OffersSentTotal.Inc()
		res.Offered = append(res.Offered, c.Entry.DriverID)
		if err := e.Dedup.MarkNotified(ctx, order.ID, c.Entry.DriverID); err != nil {
			log.Warn("mark notified failed", "driver_id", c.Entry.DriverID, "error", err)
		}
	}
}
