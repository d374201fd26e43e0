package flights

import (
	"github.com/yegors/flight-control/pkg/logger"
)

// ReconcileResult counts the marker operations of one cycle
type ReconcileResult struct {
	Created int     `json:"created"`
	Updated int     `json:"updated"`
	Removed int     `json:"removed"`
	Failed  int     `json:"failed"`
	Errors  []error `json:"-"`
}

// Reconciler keeps the sink's markers in step with the latest positions
type Reconciler struct {
	registry *Registry
	sink     Sink
	popups   *PopupBuilder
	logger   *logger.Logger
}

// NewReconciler creates a reconciler that owns registry and drives sink
func NewReconciler(registry *Registry, sink Sink, popups *PopupBuilder, log *logger.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		sink:     sink,
		popups:   popups,
		logger:   log.Named("reconciler"),
	}
}

// Registry returns the marker registry owned by the reconciler
func (r *Reconciler) Registry() *Registry {
	return r.registry
}

// Reconcile creates markers for new positions, updates every known one, and removes
// markers whose identifier no longer has a position. Sink failures are logged and
// the remaining operations still run. A failed create leaves no registry entry and a
// failed remove keeps the entry, so both are retried next cycle.
func (r *Reconciler) Reconcile(joined Joined, numbers NumberTable) ReconcileResult {
	var result ReconcileResult
	fail := func(err *SinkError) {
		result.Failed++
		result.Errors = append(result.Errors, err)
		r.logger.Warn("Marker operation failed",
			logger.String("op", err.Op),
			logger.String("id", err.ID),
			logger.Error(err.Err),
		)
	}

	present := make(map[string]bool)
	for _, rec := range joined.Mapped() {
		present[rec.ID] = true

		marker, err := r.buildMarker(rec, numbers)
		if err != nil {
			fail(&SinkError{Op: "popup", ID: rec.ID, Err: err})
			continue
		}

		handle, known := r.registry.Get(rec.ID)
		if !known {
			handle, err := r.sink.CreateMarker(rec.ID, marker)
			if err != nil {
				fail(&SinkError{Op: "create", ID: rec.ID, Err: err})
				continue
			}
			r.registry.Set(rec.ID, handle)
			result.Created++
			continue
		}

		if err := r.sink.UpdateMarker(handle, marker); err != nil {
			fail(&SinkError{Op: "update", ID: rec.ID, Err: err})
			continue
		}
		result.Updated++
	}

	for _, id := range r.registry.IDs() {
		if present[id] {
			continue
		}
		handle, _ := r.registry.Get(id)
		if err := r.sink.RemoveMarker(handle); err != nil {
			fail(&SinkError{Op: "remove", ID: id, Err: err})
			continue
		}
		r.registry.Delete(id)
		result.Removed++
	}

	r.logger.Debug("Reconciled markers",
		logger.Int("created", result.Created),
		logger.Int("updated", result.Updated),
		logger.Int("removed", result.Removed),
		logger.Int("failed", result.Failed),
		logger.Int("tracked", r.registry.Len()),
	)
	return result
}

func (r *Reconciler) buildMarker(rec JoinedRecord, numbers NumberTable) (Marker, error) {
	popup, err := r.popups.Build(rec)
	if err != nil {
		return Marker{}, err
	}
	status := rec.Status()
	return Marker{
		ID:        rec.ID,
		Latitude:  rec.Position.Latitude,
		Longitude: rec.Position.Longitude,
		Altitude:  rec.Position.Altitude,
		Icon: IconSpec{
			Color:    status.Color(),
			ColorHex: status.ColorHex(),
			Label:    numbers.Label(rec.ID),
			Status:   status,
		},
		PopupHTML: popup,
	}, nil
}
