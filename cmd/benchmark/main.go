// Benchmark tool for load-testing Kestrel with synthetic applications.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 5000
//
// This tool:
//  1. Generates deterministic synthetic applicants. The mock bureau
//     derives the whole credit profile from the last four digits of the
//     identity number, so sweeping seeds covers every risk tier.
//  2. Sends each application to POST /credit-checks concurrently
//  3. Reports the decision distribution, latency percentiles and
//     throughput
//
// Run against a server started with KESTREL_MOCK_BUREAU=true unless you
// really want to bill live bureau enquiries.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Application is one synthetic credit-check job.
type Application struct {
	ApplicationID  string
	IdentityNumber string
	Seed           int
}

// CreditCheckRequest is the Kestrel API request format
type CreditCheckRequest struct {
	ApplicationID string    `json:"applicationId"`
	Applicant     Applicant `json:"applicant"`
	Inputs        Inputs    `json:"inputs"`
}

type Applicant struct {
	UserID         string `json:"userId"`
	IdentityNumber string `json:"identityNumber"`
	Surname        string `json:"surname"`
	Forename       string `json:"forename"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"dateOfBirth"`
	Address1       string `json:"address1"`
	PostalCode     string `json:"postalCode"`
}

type Inputs struct {
	GrossMonthlyIncome float64  `json:"grossMonthlyIncome"`
	MonthsInCurrentJob *float64 `json:"monthsInCurrentJob"`
	ContractType       string   `json:"contractType"`
	EmploymentSector   string   `json:"employmentSector"`
	EmployerName       string   `json:"employerName"`
	EmployerMatch      string   `json:"employerMatch"`
	NewBorrower        bool     `json:"newBorrower"`
}

// DecisionResponse is the Kestrel API response format
type DecisionResponse struct {
	ID             string   `json:"id"`
	CreditScore    int      `json:"creditScore"`
	RiskCategory   string   `json:"riskCategory"`
	Recommendation string   `json:"recommendation"`
	RiskFlags      []string `json:"riskFlags"`
}

// Metrics tracks benchmark results
type Metrics struct {
	Approved int64
	Review   int64
	Declined int64
	Flagged  int64 // decisions carrying at least one risk flag

	TotalProcessed int64
	TotalErrors    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) recordLatency(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	count := flag.Int("count", 5000, "Number of applications to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seedStart := flag.Int("seed-start", 0, "First identity-number seed (0-9999)")
	verbose := flag.Bool("verbose", false, "Print each decision")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KESTREL BENCHMARK - Synthetic Credit Checks           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Count:       %d\n", *count)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Seed Start:  %d\n", *seedStart)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  KESTREL_MOCK_BUREAU=true go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	apps := generateApplications(*count, *seedStart)
	fmt.Printf("✓ Generated %d synthetic applications\n", len(apps))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(apps, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateApplications builds one application per seed. Each application
// gets a unique identity number so no report is served from cache and
// every request exercises the full pipeline.
func generateApplications(count, seedStart int) []Application {
	apps := make([]Application, 0, count)
	for i := 0; i < count; i++ {
		seed := (seedStart + i) % 10000
		apps = append(apps, Application{
			ApplicationID:  fmt.Sprintf("bench-%06d", i),
			IdentityNumber: fmt.Sprintf("800101500%04d", seed),
			Seed:           seed,
		})
	}
	return apps
}

func runBenchmark(apps []Application, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Application, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for app := range work {
				start := time.Now()
				result, err := evaluateApplication(client, baseURL, app)
				elapsed := time.Since(start)

				metrics.recordLatency(elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: seed %04d -> %v\n", app.Seed, err)
					}
					continue
				}

				switch result.Recommendation {
				case "approve":
					atomic.AddInt64(&metrics.Approved, 1)
				case "review":
					atomic.AddInt64(&metrics.Review, 1)
				case "decline":
					atomic.AddInt64(&metrics.Declined, 1)
				}
				if len(result.RiskFlags) > 0 {
					atomic.AddInt64(&metrics.Flagged, 1)
				}

				if verbose {
					fmt.Printf("seed %04d | score %3d | %-16s | %-7s | flags %d | %v\n",
						app.Seed,
						result.CreditScore,
						result.RiskCategory,
						result.Recommendation,
						len(result.RiskFlags),
						elapsed.Round(time.Millisecond),
					)
				}
			}
		}()
	}

	for _, app := range apps {
		work <- app
	}
	close(work)

	wg.Wait()

	return metrics
}

func evaluateApplication(client *http.Client, baseURL string, app Application) (*DecisionResponse, error) {
	tenure := 40.0
	req := CreditCheckRequest{
		ApplicationID: app.ApplicationID,
		Applicant: Applicant{
			UserID:         "bench-user",
			IdentityNumber: app.IdentityNumber,
			Surname:        "Benchmark",
			Forename:       "Load",
			Gender:         "M",
			DateOfBirth:    "19800101",
			Address1:       "1 Benchmark Street",
			PostalCode:     "0001",
		},
		Inputs: Inputs{
			GrossMonthlyIncome: 25000,
			MonthsInCurrentJob: &tenure,
			ContractType:       "PERMANENT",
			EmploymentSector:   "PRIVATE",
			EmployerName:       "Benchmark Holdings",
			EmployerMatch:      "Benchmark Holdings",
			NewBorrower:        true,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/credit-checks", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result DecisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DECISION DISTRIBUTION\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	decided := m.Approved + m.Review + m.Declined
	if decided > 0 {
		fmt.Printf("   Approved:         %d (%.2f%%)\n", m.Approved, 100*float64(m.Approved)/float64(decided))
		fmt.Printf("   Review:           %d (%.2f%%)\n", m.Review, 100*float64(m.Review)/float64(decided))
		fmt.Printf("   Declined:         %d (%.2f%%)\n", m.Declined, 100*float64(m.Declined)/float64(decided))
		fmt.Printf("   With Risk Flags:  %d (%.2f%%)\n", m.Flagged, 100*float64(m.Flagged)/float64(decided))
	}
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	m.mu.Lock()
	latencies := append([]time.Duration(nil), m.latencies...)
	m.mu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if len(latencies) > 0 {
		var total time.Duration
		for _, d := range latencies {
			total += d
		}
		avg := total / time.Duration(len(latencies))
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %v\n", avg.Round(time.Microsecond))
		fmt.Printf("   p50 Latency:      %v\n", percentile(latencies, 0.50).Round(time.Microsecond))
		fmt.Printf("   p95 Latency:      %v\n", percentile(latencies, 0.95).Round(time.Microsecond))
		fmt.Printf("   p99 Latency:      %v\n", percentile(latencies, 0.99).Round(time.Microsecond))
		fmt.Printf("   Throughput:       %.2f checks/sec\n", tps)
	}

	fmt.Println()
}
