package model

import "time"

type HubStats struct {
	TotalTenants     int            `json:"total_tenants"`
	TotalConnections int            `json:"total_connections"`
	LiveConnections  int            `json:"live_connections"`
	Uptime           time.Duration  `json:"uptime"`
	Tenants          map[string]int `json:"tenants"`
	Shards           []ShardStats   `json:"shards,omitempty"`

	// Transports counts live connections per transport ("ws", "lp").
	Transports          map[string]int `json:"transports"`
	OldestConnectionAge time.Duration  `json:"oldest_connection_age"`
}

type ShardStats struct {
	ShardID     int `json:"shard_id"`
	TenantCount int `json:"tenant_count"`
	Connections int `json:"connections"`
}
