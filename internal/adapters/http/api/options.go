package api

import "github.com/okian/drillcore/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMaxEvents caps the limit accepted by GET /events.
func WithMaxEvents(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxEvents = n
		}
	}
}
