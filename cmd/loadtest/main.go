// Command loadtest drives concurrent searches against a running searcher and
// reports throughput, latency percentiles, cache hit rate and how many
// answers came back empty or below the confidence threshold.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-queries queries.txt]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
)

var defaultQueries = []string{
	"getting started",
	"install configuration",
	"password reset",
	"api authentication",
	"deploy to production",
	"how to configure logging",
	"troubleshooting errors",
	"release notes",
	"database migration",
	"cache invalidation",
	"search ranking",
	"kafka consumer setup",
}

type runConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

type stats struct {
	total      atomic.Int64
	failed     atomic.Int64
	cached     atomic.Int64
	empty      atomic.Int64
	confident  atomic.Int64
	stale      atomic.Int64
	mu         sync.Mutex
	latencies  []time.Duration
	statusCode map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies:  make([]time.Duration, 0, 100000),
		statusCode: make(map[int]int64),
	}
}

func (s *stats) record(d time.Duration, status int, resp *executor.Response) {
	s.total.Add(1)
	s.mu.Lock()
	s.statusCode[status]++
	if status != 0 {
		s.latencies = append(s.latencies, d)
	}
	s.mu.Unlock()

	if resp == nil {
		s.failed.Add(1)
		return
	}
	if resp.Cached {
		s.cached.Add(1)
	}
	if resp.Stale {
		s.stale.Add(1)
	}
	if len(resp.Results) == 0 {
		s.empty.Add(1)
	}
	if resp.Confident {
		s.confident.Add(1)
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 5, "results requested per search")
	queryFile := flag.String("queries", "", "file with one query per line (defaults to a built-in set)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	cfg := runConfig{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
		Queries:     queries,
	}

	fmt.Println("=== docrank load test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n\n", len(cfg.Queries))

	s := run(cfg)
	if !report(s, cfg.Duration) {
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" && !strings.HasPrefix(q, "#") {
			queries = append(queries, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return queries, nil
}

func run(cfg runConfig) *stats {
	s := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := cfg.Queries[next%len(cfg.Queries)]
				next++
				searchOnce(ctx, client, cfg, query, s)
			}
		}(w)
	}
	wg.Wait()
	return s
}

func searchOnce(ctx context.Context, client *http.Client, cfg runConfig, query string, s *stats) {
	target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", cfg.BaseURL, url.QueryEscape(query), cfg.Limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		s.record(0, 0, nil)
		return
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.record(elapsed, 0, nil)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.record(elapsed, resp.StatusCode, nil)
		return
	}
	var body executor.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		s.record(elapsed, resp.StatusCode, nil)
		return
	}
	s.record(elapsed, resp.StatusCode, &body)
}

// report prints the summary and returns false when nothing succeeded.
func report(s *stats, duration time.Duration) bool {
	total := s.total.Load()
	failed := s.failed.Load()
	ok := total - failed

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", ok)
	fmt.Printf("Failed:          %d\n", failed)
	if total > 0 {
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if ok > 0 {
		fmt.Printf("Cache hit rate:  %.1f%%\n", pct(s.cached.Load(), ok))
		fmt.Printf("Empty results:   %.1f%%\n", pct(s.empty.Load(), ok))
		fmt.Printf("Confident:       %.1f%%\n", pct(s.confident.Load(), ok))
		fmt.Printf("Stale snapshot:  %d\n", s.stale.Load())
	}

	s.mu.Lock()
	latencies := append([]time.Duration(nil), s.latencies...)
	codes := make([]int, 0, len(s.statusCode))
	for code := range s.statusCode {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(s.statusCode))
	for code, n := range s.statusCode {
		counts[code] = n
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Println("\n=== Latency ===")
		fmt.Printf("Min:  %s\n", latencies[0])
		fmt.Printf("Avg:  %s\n", sum/time.Duration(len(latencies)))
		fmt.Printf("P50:  %s\n", percentile(latencies, 50))
		fmt.Printf("P95:  %s\n", percentile(latencies, 95))
		fmt.Printf("P99:  %s\n", percentile(latencies, 99))
		fmt.Printf("Max:  %s\n", latencies[len(latencies)-1])
	}

	fmt.Println("\n=== Status Codes ===")
	sort.Ints(codes)
	for _, code := range codes {
		label := fmt.Sprint(code)
		if code == 0 {
			label = "transport error"
		}
		fmt.Printf("  %s: %d\n", label, counts[code])
	}

	if ok == 0 {
		fmt.Println("\nWARNING: no searches succeeded. Is the searcher running?")
		return false
	}
	return true
}

func pct(n, of int64) float64 {
	return float64(n) / float64(of) * 100
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
