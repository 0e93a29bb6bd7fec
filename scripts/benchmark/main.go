package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
)

// CLI flags
var (
	apiURL      = flag.String("api-url", "http://localhost:3000", "rendergate base URL")
	runs        = flag.Int("runs", 3, "Number of runs per URL")
	concurrency = flag.Int("concurrency", 4, "Requests in flight at once")
	output      = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering 5 site types.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

// --- Benchmark result types ---

type runResult struct {
	Run           int    `json:"run"`
	TotalMs       int64  `json:"total_ms"`
	StatusCode    int    `json:"status_code"`
	ContentLength int    `json:"content_length"`
	ContentType   string `json:"content_type"`
	Cookies       int    `json:"cookies"`
	Download      bool   `json:"download"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs       float64 `json:"total_ms"`
	P95Ms         int64   `json:"p95_ms"`
	ContentLength float64 `json:"content_length"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Busy     int          `json:"busy"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp   string      `json:"timestamp"`
	APIURL      string      `json:"api_url"`
	RunsPerURL  int         `json:"runs_per_url"`
	Concurrency int         `json:"concurrency"`
	WallMs      int64       `json:"wall_ms"`
	Results     []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== rendergate Benchmark Suite ===")
	fmt.Printf("API URL:      %s\n", *apiURL)
	fmt.Printf("Runs/URL:     %d\n", *runs)
	fmt.Printf("Concurrency:  %d\n", *concurrency)
	fmt.Printf("Output:       %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure rendergate is running (e.g. go run ./cmd/rendergate)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		APIURL:      *apiURL,
		RunsPerURL:  *runs,
		Concurrency: *concurrency,
	}

	results := make([]urlResult, len(testURLs))
	for i, t := range testURLs {
		results[i] = urlResult{URL: t.URL, Label: t.Label, Runs: make([]runResult, *runs)}
	}

	client := &http.Client{Timeout: 90 * time.Second}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)

	start := time.Now()
	for i, t := range testURLs {
		for run := 1; run <= *runs; run++ {
			g.Go(func() error {
				rr := benchmarkURL(ctx, client, t.URL, run)
				mu.Lock()
				results[i].Runs[run-1] = rr
				if rr.StatusCode == http.StatusServiceUnavailable {
					results[i].Busy++
				}
				mu.Unlock()

				if rr.Success {
					fmt.Printf("[%s] run %d: OK  %dms  %s bytes\n", t.Label, run, rr.TotalMs, formatInt(rr.ContentLength))
				} else {
					fmt.Printf("[%s] run %d: FAILED (%d) %s\n", t.Label, run, rr.StatusCode, rr.Error)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	report.WallMs = time.Since(start).Milliseconds()

	for i := range results {
		results[i].Averages = computeAverages(results[i].Runs)
	}
	report.Results = results
	fmt.Println()

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(ctx context.Context, client *http.Client, target string, run int) runResult {
	rr := runResult{Run: run}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *apiURL+"/?url="+url.QueryEscape(target), nil)
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	rr.TotalMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = fmt.Sprintf("read error: %v", err)
		return rr
	}

	rr.StatusCode = resp.StatusCode
	rr.ContentLength = len(body)
	rr.ContentType = resp.Header.Get("Content-Type")
	rr.Cookies = len(resp.Cookies())
	rr.Download = strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Disposition")), "attachment")
	rr.Success = resp.StatusCode == http.StatusOK
	if !rr.Success {
		rr.Error = truncate(strings.TrimSpace(string(body)), 80)
	}

	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var avg urlAverages
	var latencies []int64

	for _, r := range runs {
		if !r.Success {
			continue
		}
		latencies = append(latencies, r.TotalMs)
		avg.TotalMs += float64(r.TotalMs)
		avg.ContentLength += float64(r.ContentLength)
	}

	if len(latencies) == 0 {
		return nil
	}

	n := float64(len(latencies))
	avg.TotalMs /= n
	avg.ContentLength /= n

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	idx := int(float64(len(latencies))*0.95+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	avg.P95Ms = latencies[idx]
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tP95\tContent Len\tBusy\n")
	fmt.Fprintf(w, "───\t───────────\t───\t───────────\t────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t%d\n", truncate(r.URL, 40), r.Busy)
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%dms\t%s\t%d\n",
			truncate(r.URL, 40),
			int64(r.Averages.TotalMs),
			r.Averages.P95Ms,
			formatInt(int(r.Averages.ContentLength)),
			r.Busy,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
