package domain

// RunStatus is a point-in-time view of a running build. A unit is one
// (date, satellite) granule.
type RunStatus struct {
	CurrentDate      string  `json:"current_date,omitempty"`
	UnitsDone        int     `json:"units_done"`
	UnitsTotal       int     `json:"units_total"`
	DatesDone        int     `json:"dates_done"`
	Rows             int     `json:"rows"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}
