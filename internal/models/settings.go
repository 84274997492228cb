package models

// Connection-count limits for Settings.MaxConnections.
const (
	MinConnections     = 1
	MaxConnectionsCap  = 10
	DefaultConnections = 3
)

// Settings holds the process-wide runtime settings, persisted as JSON.
type Settings struct {
	MaxConnections int `json:"max_connections"`
}

// Clamp forces MaxConnections into the allowed [1,10] range.
func (s *Settings) Clamp() {
	if s.MaxConnections < MinConnections {
		s.MaxConnections = MinConnections
	}
	if s.MaxConnections > MaxConnectionsCap {
		s.MaxConnections = MaxConnectionsCap
	}
}
