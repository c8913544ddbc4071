package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalTenants":2,"totalConnections":3,"liveConnections":4,"uptimeSeconds":61,
			"tenants":{"A":2,"B":1},"shards":[{"shardId":0,"tenantCount":2,"connections":3}]}`))
	}))
	defer srv.Close()

	st, err := fetchStats(context.Background(), srv.Client(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, 2, st.TotalTenants)
	assert.Equal(t, 4, st.LiveConnections)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, st.Tenants)
	require.Len(t, st.Shards, 1)
	assert.Equal(t, 3, st.Shards[0].Connections)
}

func TestFetchStats_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := fetchStats(context.Background(), srv.Client(), srv.URL)
	assert.ErrorContains(t, err, "unexpected status")
}

func TestTransportMix(t *testing.T) {
	assert.Equal(t, "lp: 1  ws: 2", transportMix(map[string]int{"ws": 2, "lp": 1}))
	assert.Empty(t, transportMix(nil))
}

func TestTopTenants(t *testing.T) {
	rows := topTenants(map[string]int{"A": 1, "B": 3, "C": 3, "D": 2}, 3)

	assert.Equal(t, [][]string{
		{"Company", "Connections"},
		{"B", "3"},
		{"C", "3"},
		{"D", "2"},
	}, rows)
}
