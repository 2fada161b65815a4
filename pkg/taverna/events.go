package taverna

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/taverna/pkg/lifecycle"
)

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous lifecycle.State
	Current  lifecycle.State
	Reason   string
}

// EventHandler receives bot events. Calls are synchronous with the
// transition, so implementations must not block.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
}

var lifecycleStates = []lifecycle.State{
	lifecycle.StateBooting,
	lifecycle.StateConnectingStore,
	lifecycle.StateLoadingExtensions,
	lifecycle.StateAwaitingReadiness,
	lifecycle.StateReady,
	lifecycle.StateServing,
	lifecycle.StateFatalInit,
	lifecycle.StateStopping,
	lifecycle.StateStopped,
}

// eventEmitter adapts EventHandler and the state gauge to
// lifecycle.EventEmitter.
type eventEmitter struct {
	handler EventHandler
	state   *prometheus.GaugeVec
}

func newEventEmitter(handler EventHandler, reg prometheus.Registerer) *eventEmitter {
	e := &eventEmitter{handler: handler}
	if reg != nil {
		e.state = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "taverna_lifecycle_state",
			Help: "Current lifecycle state (1 for the active state)",
		}, []string{"state"})
		e.setState(lifecycle.StateBooting)
	}
	return e
}

func (e *eventEmitter) OnStateChange(previous, current lifecycle.State, reason string) {
	e.setState(current)
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}

func (e *eventEmitter) setState(current lifecycle.State) {
	if e.state == nil {
		return
	}
	for _, s := range lifecycleStates {
		v := 0.0
		if s == current {
			v = 1
		}
		e.state.WithLabelValues(s.String()).Set(v)
	}
}
