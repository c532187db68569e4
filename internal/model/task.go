package model

// Task is a promotional click-then-confirm task, e.g. "midas".
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
	// ProofMarker is a substring identifying a proof message for the task.
	ProofMarker string `json:"-"`
	Reward      int    `json:"reward"`
}
