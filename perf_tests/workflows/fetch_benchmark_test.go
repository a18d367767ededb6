package workflows_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"
)

// Configuration from environment
var (
	algoflowURL   = getEnv("ALGOFLOW_URL", "http://localhost:8080")
	adminPassword = getEnv("PERF_ADMIN_PASSWORD", "")
	numCalls      = getEnvInt("PERF_NUM_CALLS", 10000)
	concurrency   = getEnvInt("PERF_CONCURRENCY", 10)
)

// login exchanges the admin password for a bearer token
func login() (string, error) {
	body, _ := json.Marshal(map[string]string{"password": adminPassword})
	resp, err := http.Post(algoflowURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Helper to create HTTP request with bearer token
func makeAuthedRequest(method, url, token string) (*http.Response, error) {
	client := &http.Client{}
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)

	return client.Do(req)
}

// BenchmarkFetchWorkflows measures workflow list fetch performance
// through the full API chain (auth middleware, repository, Postgres).
//
// Usage:
//
//	# Start the API with rate limiting off for load runs
//	RATE_LIMIT_ENABLED=false ./algoflow
//
//	PERF_ADMIN_PASSWORD=... go test -bench=BenchmarkFetchWorkflows -benchtime=10000x
//
// Metrics: ops/sec, throughput, latency per op
func BenchmarkFetchWorkflows(b *testing.B) {
	// Skip if the API is not running
	resp, err := http.Get(algoflowURL + "/health")
	if err != nil {
		b.Skip("AlgoFlow API not running")
	}
	resp.Body.Close()

	if adminPassword == "" {
		b.Skip("PERF_ADMIN_PASSWORD not set")
	}

	token, err := login()
	if err != nil {
		b.Fatalf("Login failed: %v", err)
	}

	b.Logf("Benchmarking workflow fetch: %d iterations", b.N)
	b.Logf("  Target: %s", algoflowURL)

	// Track metrics
	var totalBytes int64

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		resp, err := makeAuthedRequest("GET", algoflowURL+"/api/workflows", token)
		if err != nil {
			b.Fatalf("Request failed: %v", err)
		}

		// Read response body (measure actual data transfer)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			b.Fatalf("Failed to read response: %v", err)
		}

		totalBytes += int64(len(body))

		if resp.StatusCode == http.StatusTooManyRequests {
			b.Fatalf("Rate limited: restart the API with RATE_LIMIT_ENABLED=false for load runs")
		}
		if resp.StatusCode != 200 {
			b.Fatalf("Unexpected status: %d", resp.StatusCode)
		}
	}

	b.StopTimer()

	// Calculate metrics
	elapsed := b.Elapsed()
	opsPerSec := float64(b.N) / elapsed.Seconds()
	throughputMBps := float64(totalBytes) / elapsed.Seconds() / 1024 / 1024

	b.ReportMetric(opsPerSec, "ops/sec")
	b.ReportMetric(throughputMBps, "MB/s")
	b.ReportMetric(float64(elapsed.Nanoseconds()/int64(b.N))/1e6, "ms/op")
}

// TestFetchWorkflowsConcurrent measures list fetch performance under load
// with multiple concurrent clients sharing one session token.
func TestFetchWorkflowsConcurrent(t *testing.T) {
	// Skip if the API is not running
	resp, err := http.Get(algoflowURL + "/health")
	if err != nil {
		t.Skip("AlgoFlow API not running")
	}
	resp.Body.Close()

	if adminPassword == "" {
		t.Skip("PERF_ADMIN_PASSWORD not set")
	}

	token, err := login()
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	t.Logf("Concurrent fetch test:")
	t.Logf("  Total calls: %d", numCalls)
	t.Logf("  Concurrency: %d", concurrency)
	t.Logf("  Target: %s", algoflowURL)

	start := time.Now()

	// Create workers
	callsPerWorker := numCalls / concurrency
	doneChan := make(chan workerStats, concurrency)

	for w := 0; w < concurrency; w++ {
		go func(workerID int) {
			stats := workerStats{
				workerID: workerID,
			}

			workerStart := time.Now()

			for i := 0; i < callsPerWorker; i++ {
				reqStart := time.Now()

				resp, err := makeAuthedRequest("GET", algoflowURL+"/api/workflows", token)
				if err != nil {
					stats.errors++
					continue
				}

				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()

				if resp.StatusCode != 200 {
					stats.errors++
					continue
				}

				reqDuration := time.Since(reqStart)

				stats.totalCalls++
				stats.totalBytes += int64(len(body))
				stats.totalLatency += reqDuration

				// Track latency extremes (simple)
				if reqDuration < stats.minLatency || stats.minLatency == 0 {
					stats.minLatency = reqDuration
				}
				if reqDuration > stats.maxLatency {
					stats.maxLatency = reqDuration
				}
			}

			stats.duration = time.Since(workerStart)
			doneChan <- stats
		}(w)
	}

	// Collect results
	var totalStats workerStats
	for i := 0; i < concurrency; i++ {
		stats := <-doneChan
		totalStats.totalCalls += stats.totalCalls
		totalStats.totalBytes += stats.totalBytes
		totalStats.totalLatency += stats.totalLatency
		totalStats.errors += stats.errors

		if stats.minLatency < totalStats.minLatency || totalStats.minLatency == 0 {
			totalStats.minLatency = stats.minLatency
		}
		if stats.maxLatency > totalStats.maxLatency {
			totalStats.maxLatency = stats.maxLatency
		}
	}

	elapsed := time.Since(start)

	// Check if any calls succeeded
	if totalStats.totalCalls == 0 {
		t.Fatalf("All requests failed! Errors: %d\n"+
			"Hint: start the API with RATE_LIMIT_ENABLED=false for load runs",
			totalStats.errors)
	}

	// Calculate metrics
	opsPerSec := float64(totalStats.totalCalls) / elapsed.Seconds()
	throughputMBps := float64(totalStats.totalBytes) / elapsed.Seconds() / 1024 / 1024
	avgLatency := totalStats.totalLatency / time.Duration(totalStats.totalCalls)

	t.Logf("\n========================================")
	t.Logf("Performance Results:")
	t.Logf("========================================")
	t.Logf("Total calls:     %d", totalStats.totalCalls)
	t.Logf("Errors:          %d", totalStats.errors)
	t.Logf("Duration:        %s", elapsed)
	t.Logf("Throughput:      %.2f ops/sec", opsPerSec)
	t.Logf("Data transferred: %.2f MB/s", throughputMBps)
	t.Logf("\nLatency:")
	t.Logf("  Min:     %s", totalStats.minLatency)
	t.Logf("  Average: %s", avgLatency)
	t.Logf("  Max:     %s", totalStats.maxLatency)
	t.Logf("========================================\n")
}

type workerStats struct {
	workerID     int
	totalCalls   int
	totalBytes   int64
	totalLatency time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	errors       int
	duration     time.Duration
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
