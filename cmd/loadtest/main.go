// Command loadtest seeds the service with synthetic songs and hammers the
// match endpoint with queries derived from their fingerprints.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Concurrency int
	Duration    time.Duration
	SeedSongs   int
	SongHashes  int
	QueryHashes int
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	matchHits     atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the fingerprint service")
	apiKey := flag.String("api-key", "", "API key sent as X-API-Key")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	seedSongs := flag.Int("seed-songs", 50, "synthetic songs to index before the run")
	songHashes := flag.Int("song-hashes", 2000, "fingerprint hashes per seeded song")
	queryHashes := flag.Int("query-hashes", 200, "hashes per match query")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		APIKey:      *apiKey,
		Concurrency: *concurrency,
		Duration:    *duration,
		SeedSongs:   *seedSongs,
		SongHashes:  *songHashes,
		QueryHashes: *queryHashes,
	}

	fmt.Println("=== Fingerprint Match Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Seed songs:  %d x %d hashes\n", cfg.SeedSongs, cfg.SongHashes)
	fmt.Println()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fingerprints, err := seed(client, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d songs\n", len(fingerprints))

	stats := runLoadTest(client, cfg, fingerprints)
	printReport(stats, cfg.Duration)
}

// seed indexes synthetic songs and returns their fingerprints for query
// generation.
func seed(client *http.Client, cfg Config) ([][]int64, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	fingerprints := make([][]int64, 0, cfg.SeedSongs)

	for i := 0; i < cfg.SeedSongs; i++ {
		hashes := make([]int64, cfg.SongHashes)
		for j := range hashes {
			hashes[j] = rng.Int63()
		}
		body, _ := json.Marshal(map[string]any{
			"title":      fmt.Sprintf("Synthetic Song %d", i),
			"artist":     fmt.Sprintf("Load Artist %d", i%10),
			"genre":      "synthetic",
			"duration":   180.0,
			"sampleRate": 44100,
			"hashes":     hashes,
		})
		status, err := post(client, cfg, "/api/v1/songs", body)
		if err != nil {
			return nil, err
		}
		if status != http.StatusCreated {
			return nil, fmt.Errorf("seeding song %d: status %d", i, status)
		}
		fingerprints = append(fingerprints, hashes)
	}
	return fingerprints, nil
}

func runLoadTest(client *http.Client, cfg Config, fingerprints [][]int64) *Stats {
	stats := NewStats()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(workerID)))

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				query := buildQuery(rng, fingerprints, cfg.QueryHashes)
				body, _ := json.Marshal(map[string]any{"hashes": query})

				start := time.Now()
				status, err := post(client, cfg, "/api/v1/match", body)
				duration := time.Since(start)
				stats.RecordRequest(duration, status, err)
				if status == http.StatusOK {
					stats.matchHits.Add(1)
				}
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// buildQuery takes a contiguous slice of a random seeded fingerprint and
// mixes in noise hashes, approximating a clip recorded from the middle of a
// song.
func buildQuery(rng *rand.Rand, fingerprints [][]int64, queryHashes int) []int64 {
	src := fingerprints[rng.Intn(len(fingerprints))]
	if queryHashes > len(src) {
		queryHashes = len(src)
	}
	offset := rng.Intn(len(src) - queryHashes + 1)
	query := make([]int64, queryHashes)
	copy(query, src[offset:offset+queryHashes])
	// ~10% noise
	for i := 0; i < queryHashes/10; i++ {
		query[rng.Intn(queryHashes)] = rng.Int63()
	}
	return query
}

func post(client *http.Client, cfg Config, path string, body []byte) (int, error) {
	req, err := http.NewRequest(http.MethodPost, cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("X-API-Key", cfg.APIKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Average:         %s\n", avg.Round(time.Microsecond))
		fmt.Printf("P50:             %s\n", percentile(latencies, 50).Round(time.Microsecond))
		fmt.Printf("P95:             %s\n", percentile(latencies, 95).Round(time.Microsecond))
		fmt.Printf("P99:             %s\n", percentile(latencies, 99).Round(time.Microsecond))
		fmt.Printf("Max:             %s\n", latencies[len(latencies)-1].Round(time.Microsecond))
	}

	stats.statusCodesMu.Lock()
	defer stats.statusCodesMu.Unlock()
	if len(stats.statusCodes) > 0 {
		fmt.Println()
		fmt.Println("=== Status Codes ===")
		codes := make([]int, 0, len(stats.statusCodes))
		for code := range stats.statusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Printf("%d: %d\n", code, stats.statusCodes[code].Load())
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
