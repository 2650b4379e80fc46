// Package main - agitator
// Load generator: simulates many concurrent players clicking through the
// studio over websockets.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/network"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	OutputPath     string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent   int64
	FramesReceived int64
	Snapshots      int64
	Rejections     int64
	Errors         int64
	Latencies      []time.Duration
	mu             sync.Mutex
}

var stageNames = []string{games.Ideas, games.Features, games.Programming, games.Mechanics}

var upgradeIDs = []boxes.UpgradeID{boxes.UpgradeBiggerHands, boxes.UpgradeBoxFactory, boxes.UpgradeRecycling}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 200*time.Millisecond, "Action interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	output := flag.String("out", "stress_test_results.json", "Where to write the JSON results")
	flag.Parse()

	config := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		OutputPath:     *output,
	}

	fmt.Println("=========================================")
	fmt.Println("AGITATOR - studio load generator")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Clients:  %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\nStarting clients...")

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("All %d clients started\n\n", config.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%s recv=%s rejected=%s errors=%s\n",
					humanize.Comma(atomic.LoadInt64(&stats.MessagesSent)),
					humanize.Comma(atomic.LoadInt64(&stats.FramesReceived)),
					humanize.Comma(atomic.LoadInt64(&stats.Rejections)),
					humanize.Comma(atomic.LoadInt64(&stats.Errors)))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	actorID := fmt.Sprintf("AGITATOR_%03d", clientID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("client %d: connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			countFrames(data, stats)
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			action := generateRandomAction(actorID)
			start := time.Now()

			if err := conn.WriteJSON(action); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}

			latency := time.Since(start)
			atomic.AddInt64(&stats.MessagesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, latency)
			stats.mu.Unlock()
		}
	}
}

// countFrames tallies each newline-separated frame in a websocket message.
func countFrames(data []byte, stats *Stats) {
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		var msg struct {
			Type network.MessageType `json:"type"`
		}
		if err := json.Unmarshal(line, &msg); err != nil {
			atomic.AddInt64(&stats.Errors, 1)
			continue
		}
		atomic.AddInt64(&stats.FramesReceived, 1)
		switch msg.Type {
		case network.MsgTypeSnapshot:
			atomic.AddInt64(&stats.Snapshots, 1)
		case network.MsgTypeError:
			atomic.AddInt64(&stats.Rejections, 1)
		}
	}
}

// generateRandomAction mostly clicks boxes and switches tasks, with the
// occasional purchase attempt.
func generateRandomAction(actorID string) network.PlayerAction {
	switch r := rand.Intn(10); {
	case r < 5:
		return network.PlayerAction{Type: network.ActionMakeBox, ActorID: actorID}
	case r < 9:
		return network.PlayerAction{Type: network.ActionSelectTask, ActorID: actorID, Target: stageNames[rand.Intn(len(stageNames))]}
	default:
		return network.PlayerAction{Type: network.ActionBuyUpgrade, ActorID: actorID, Target: string(upgradeIDs[rand.Intn(len(upgradeIDs))])}
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.FramesReceived)
	snaps := atomic.LoadInt64(&stats.Snapshots)
	rejected := atomic.LoadInt64(&stats.Rejections)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Actions Sent:      %s\n", humanize.Comma(sent))
	fmt.Printf("Frames Received:   %s (%s snapshots)\n", humanize.Comma(recv), humanize.Comma(snaps))
	fmt.Printf("Rejected Actions:  %s\n", humanize.Comma(rejected))
	fmt.Printf("Errors:            %s\n", humanize.Comma(errs))
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	if len(stats.Latencies) > 0 {
		var total time.Duration
		lo, hi := stats.Latencies[0], stats.Latencies[0]

		for _, l := range stats.Latencies {
			total += l
			lo = min(lo, l)
			hi = max(hi, l)
		}

		avg := total / time.Duration(len(stats.Latencies))

		fmt.Printf("\nWrite latency:\n")
		fmt.Printf("  Min: %v\n", lo)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", hi)
	}

	fmt.Println("\n-----------------------------------------")
	switch errRate := float64(errs) / float64(sent+1); {
	case errs == 0 && snaps > 0:
		fmt.Println("PASSED: system handled the load")
	case errRate < 0.05:
		fmt.Println("WARNING: some errors detected")
	default:
		fmt.Println("FAILED: high error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"actions_sent":       sent,
		"frames_received":    recv,
		"snapshots":          snaps,
		"rejected_actions":   rejected,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(config.OutputPath, jsonData, 0644); err != nil {
		log.Printf("failed to write results: %v", err)
		return
	}
	fmt.Printf("\nResults saved to %s\n", config.OutputPath)
}
