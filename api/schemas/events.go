package schemas

import "time"

// EventKind identifies a bus topic. Every published payload carries the
// kind it was published under plus a timestamp.
type EventKind string

const (
	EventElementRegistered      EventKind = "elementRegistered"
	EventElementUnregistered    EventKind = "elementUnregistered"
	EventElementDataUpdated     EventKind = "elementDataUpdated"
	EventCallbackFired          EventKind = "callbackFired"
	EventMouseTrajectoryUpdate  EventKind = "mouseTrajectoryUpdate"
	EventScrollTrajectoryUpdate EventKind = "scrollTrajectoryUpdate"
	EventManagerSettingsChanged EventKind = "managerSettingsChanged"
)

// Event is the envelope delivered to subscribers and written to traces.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// ElementRegisteredEvent reports a new registry record.
type ElementRegisteredEvent struct {
	Element ElementSummary `json:"element"`
	// Occupancy is the registry size after the registration.
	Occupancy int `json:"occupancy"`
}

// ElementUnregisteredEvent reports a record leaving the registry.
type ElementUnregisteredEvent struct {
	Element   ElementSummary   `json:"element"`
	Reason    UnregisterReason `json:"reason"`
	Occupancy int              `json:"occupancy"`
}

// ElementDataUpdatedEvent reports refreshed bounds or visibility.
type ElementDataUpdatedEvent struct {
	Element ElementSummary `json:"element"`
	Aspects []DataAspect   `json:"aspects"`
}

// CallbackFiredEvent reports one callback invocation.
type CallbackFiredEvent struct {
	Element ElementSummary `json:"element"`
	Hit     HitType        `json:"hit"`
	// PredictedPoint is the extrapolated point that produced the hit, when
	// the firing path had one (trajectory and scroll hits).
	PredictedPoint *Point       `json:"predicted_point,omitempty"`
	GlobalHits     CallbackHits `json:"global_hits"`
}

// MouseTrajectoryUpdateEvent reports the per-move trajectory state.
type MouseTrajectoryUpdateEvent struct {
	Current           Point            `json:"current"`
	Predicted         Point            `json:"predicted"`
	History           []PositionSample `json:"history"`
	PredictionEnabled bool             `json:"prediction_enabled"`
}

// ScrollTrajectoryUpdateEvent reports the once-per-batch scroll projection.
type ScrollTrajectoryUpdateEvent struct {
	Current   Point           `json:"current"`
	Predicted Point           `json:"predicted"`
	Direction ScrollDirection `json:"direction"`
}

// ManagerSettingsChangedEvent carries the settings snapshot after an
// update that changed at least one value.
type ManagerSettingsChangedEvent struct {
	Settings Settings `json:"settings"`
}
