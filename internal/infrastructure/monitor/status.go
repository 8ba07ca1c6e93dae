package monitor

import "time"

// Status is the latest result of the dependency checks.
type Status struct {
	Driver     string    `json:"driver"`
	Store      bool      `json:"store"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Healthy reports whether every dependency answered the last check.
func (s Status) Healthy() bool {
	return s.Store && s.Redis && s.Buffer
}
