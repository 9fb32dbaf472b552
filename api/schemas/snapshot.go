package schemas

// TrajectorySnapshot is a copy of the engine's pointer trajectory state.
type TrajectorySnapshot struct {
	Current   Point            `json:"current"`
	Predicted Point            `json:"predicted"`
	History   []PositionSample `json:"history"`
}

// ManagerSnapshot is a consistent, read-only copy of the engine state.
type ManagerSnapshot struct {
	Settings       Settings           `json:"settings"`
	GlobalHits     CallbackHits       `json:"global_hits"`
	Elements       []ElementSummary   `json:"elements"`
	Trajectory     TrajectorySnapshot `json:"trajectory"`
	ListenersArmed bool               `json:"listeners_armed"`
}
