// Ping the upstream sports data providers and the local gateway to
// measure network latency.
//
// Measures cold-start and warm keep-alive HTTP round-trips against
// each provider endpoint, and optionally WebSocket ping/pong latency
// against a running gateway.
//
// Usage:
//
//	go run ./cmd/pingproviders               # default: 20 requests
//	go run ./cmd/pingproviders -n 50         # 50 requests per endpoint
//	go run ./cmd/pingproviders --ws          # also ping the local gateway
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liveview/liveview/internal/config"
)

const httpTimeout = 10 * time.Second

type endpoint struct {
	label string
	url   string
}

func main() {
	n := flag.Int("n", 20, "Number of requests per endpoint")
	ws := flag.Bool("ws", false, "Also measure gateway WebSocket ping/pong latency")
	flag.Parse()

	cfg := config.Load()

	endpoints := []endpoint{
		{"ESPN", "https://site.api.espn.com/apis/site/v2/sports/soccer/eng.1/scoreboard"},
		{"TheSportsDB", "https://www.thesportsdb.com/api/v1/json/3/all_leagues.php"},
		{"football-data.org", "https://api.football-data.org/v4/competitions"},
	}

	for _, ep := range endpoints {
		pingEndpoint(ep, *n)
	}
	if *ws {
		gatewayURL := fmt.Sprintf("ws://%s:%d/ws", cfg.GatewayHost, cfg.GatewayPort)
		pingGateway(gatewayURL, *n)
	}
	fmt.Println()
}

func pingEndpoint(ep endpoint, n int) {
	fmt.Printf("\n%s\n", strings.Repeat("=", 55))
	fmt.Printf("  %s\n", strings.ToUpper(ep.label))
	fmt.Printf("%s\n", strings.Repeat("=", 55))
	fmt.Printf("\n  Endpoint: %s\n", ep.url)

	fmt.Println("\n  Cold-start request (DNS + TLS + HTTP):")
	if ms, code, err := measureHTTP(ep.url, nil); err != nil {
		fmt.Printf("    FAILED: %v\n", err)
	} else {
		fmt.Printf("    %.1f ms  (HTTP %d)\n", ms, code)
	}

	fmt.Printf("\n  Warm HTTP latency (%d requests, keep-alive):\n", n)
	client := &http.Client{Timeout: httpTimeout}
	if _, _, err := measureHTTP(ep.url, client); err != nil {
		fmt.Printf("  [!] Warm-up request failed: %v\n", err)
		return
	}
	latencies := make([]float64, 0, n)
	pad := len(fmt.Sprintf("%d", n))
	for i := 1; i <= n; i++ {
		ms, code, err := measureHTTP(ep.url, client)
		if err != nil {
			fmt.Printf("  [%*d/%d]  FAILED: %v\n", pad, i, n, err)
			continue
		}
		latencies = append(latencies, ms)
		fmt.Printf("  [%*d/%d]  %7.1f ms  (HTTP %d)\n", pad, i, n, ms, code)
	}
	printStats(latencies, ep.label)
}

func pingGateway(wsURL string, n int) {
	fmt.Printf("\n%s\n", strings.Repeat("=", 55))
	fmt.Println("  GATEWAY WEBSOCKET")
	fmt.Printf("%s\n", strings.Repeat("=", 55))
	fmt.Printf("\n  Endpoint: %s\n", wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		fmt.Printf("  [!] WebSocket dial failed: %v\n", err)
		return
	}
	defer conn.Close()

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	// pong frames are only processed while a read is in flight
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	latencies := make([]float64, 0, n)
	pad := len(fmt.Sprintf("%d", n))
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second)); err != nil {
			fmt.Printf("  [!] WS ping failed: %v\n", err)
			break
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		select {
		case <-pongCh:
			ms := float64(time.Since(start).Microseconds()) / 1000
			latencies = append(latencies, ms)
			fmt.Printf("  [%*d/%d]  %7.1f ms  (WS ping/pong)\n", pad, i+1, n, ms)
		case <-time.After(5 * time.Second):
			fmt.Printf("  [!] WS pong timeout\n")
			printStats(latencies, "Gateway WebSocket")
			return
		}
	}
	printStats(latencies, "Gateway WebSocket")
}

func measureHTTP(url string, client *http.Client) (ms float64, statusCode int, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	c := client
	if c == nil {
		c = &http.Client{Timeout: httpTimeout}
	}
	start := time.Now()
	resp, err := c.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	return float64(elapsed.Microseconds()) / 1000, resp.StatusCode, nil
}

func printStats(latencies []float64, label string) {
	if len(latencies) < 2 {
		fmt.Printf("\n  Not enough %s samples for statistics.\n", label)
		return
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	mean := 0.0
	for _, v := range latencies {
		mean += v
	}
	mean /= float64(len(latencies))

	variance := 0.0
	for _, v := range latencies {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(latencies) - 1)
	stdev := math.Sqrt(variance)

	median := sorted[len(sorted)/2]
	p95Idx := int(float64(len(sorted)) * 0.95)
	if p95Idx >= len(sorted) {
		p95Idx = len(sorted) - 1
	}
	p99Idx := int(float64(len(sorted)) * 0.99)
	if p99Idx >= len(sorted) {
		p99Idx = len(sorted) - 1
	}

	fmt.Printf("\n  --- %s Stats (%d requests) ---\n", label, len(latencies))
	fmt.Printf("  Min:    %7.1f ms\n", sorted[0])
	fmt.Printf("  Max:    %7.1f ms\n", sorted[len(sorted)-1])
	fmt.Printf("  Mean:   %7.1f ms\n", mean)
	fmt.Printf("  Median: %7.1f ms\n", median)
	fmt.Printf("  Stdev:  %7.1f ms\n", stdev)
	fmt.Printf("  p95:    %7.1f ms\n", sorted[p95Idx])
	fmt.Printf("  p99:    %7.1f ms\n", sorted[p99Idx])
}
