package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
)

// statsView mirrors the GET /stats response.
type statsView struct {
	TotalTenants     int            `json:"totalTenants"`
	TotalConnections int            `json:"totalConnections"`
	LiveConnections  int            `json:"liveConnections"`
	UptimeSeconds    int64          `json:"uptimeSeconds"`
	Tenants          map[string]int `json:"tenants"`
	Transports       map[string]int `json:"transports"`
	OldestSeconds    int64          `json:"oldestConnectionSeconds"`
	Shards           []struct {
		ShardID     int `json:"shardId"`
		TenantCount int `json:"tenantCount"`
		Connections int `json:"connections"`
	} `json:"shards"`
}

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Terminal dashboard for a running relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "http://localhost:6001",
				Usage: "Base URL of the relay HTTP server",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: 2 * time.Second,
				Usage: "Refresh interval",
			},
		},
		Action: func(c *cli.Context) error {
			return runMonitor(c.Context, c.String("addr"), c.Duration("interval"))
		},
	}
}

func fetchStats(ctx context.Context, client *http.Client, baseURL string) (*statsView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/stats", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monitor: fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("monitor: fetch stats: unexpected status %s", resp.Status)
	}

	var st statsView
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("monitor: decode stats: %w", err)
	}
	return &st, nil
}

// topTenants returns up to n rows ordered by connection count, then key.
func topTenants(tenants map[string]int, n int) [][]string {
	keys := make([]string, 0, len(tenants))
	for k := range tenants {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if tenants[keys[i]] != tenants[keys[j]] {
			return tenants[keys[i]] > tenants[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}

	rows := [][]string{{"Company", "Connections"}}
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(tenants[k])})
	}
	return rows
}

// transportMix renders "lp: 1  ws: 2" in key order.
func transportMix(transports map[string]int) string {
	keys := make([]string, 0, len(transports))
	for k := range transports {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, transports[k]))
	}
	return strings.Join(parts, "  ")
}

func runMonitor(ctx context.Context, baseURL string, interval time.Duration) error {
	client := &http.Client{Timeout: interval}

	if err := ui.Init(); err != nil {
		return fmt.Errorf("monitor: terminal init: %w", err)
	}
	defer ui.Close()

	summary := widgets.NewParagraph()
	summary.Title = " " + ServiceName + " "

	shards := widgets.NewBarChart()
	shards.Title = " Connections per shard "
	shards.BarWidth = 3
	shards.BarGap = 1

	table := widgets.NewTable()
	table.Title = " Top companies "
	table.RowSeparator = false

	layout := func() {
		w, h := ui.TerminalDimensions()
		summary.SetRect(0, 0, w, 5)
		shards.SetRect(0, 5, w, 5+(h-5)/2)
		table.SetRect(0, 5+(h-5)/2, w, h)
	}

	refresh := func() {
		st, err := fetchStats(ctx, client, baseURL)
		if err != nil {
			summary.Text = err.Error()
			summary.TextStyle = ui.NewStyle(ui.ColorRed)
			ui.Render(summary)
			return
		}

		summary.TextStyle = ui.NewStyle(ui.ColorWhite)
		summary.Text = fmt.Sprintf("companies: %d   registered: %d   live: %d   uptime: %s\n%s   oldest: %s",
			st.TotalTenants, st.TotalConnections, st.LiveConnections,
			(time.Duration(st.UptimeSeconds) * time.Second).String(),
			transportMix(st.Transports),
			(time.Duration(st.OldestSeconds) * time.Second).String())

		shards.Data = shards.Data[:0]
		shards.Labels = shards.Labels[:0]
		for _, s := range st.Shards {
			shards.Data = append(shards.Data, float64(s.Connections))
			shards.Labels = append(shards.Labels, strconv.Itoa(s.ShardID))
		}

		_, h := ui.TerminalDimensions()
		table.Rows = topTenants(st.Tenants, max(1, (h-5)/2-3))

		ui.Render(summary, shards, table)
	}

	layout()
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				ui.Clear()
				layout()
				refresh()
			}
		case <-ticker.C:
			refresh()
		}
	}
}
