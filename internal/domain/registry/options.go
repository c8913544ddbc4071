package registry

import "log/slog"

const defaultShards = 32

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithShards sets how many independently locked partitions the tenant keyspace is split into.
func WithShards(n int) Option {
	return func(h *Hub) {
		h.config.shards = n
	}
}

// WithLogger attaches a logger for registration diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.config.logger = l
		}
	}
}
