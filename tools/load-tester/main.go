package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// scenario describes the synthetic traffic. Each template takes two integer
// verbs; the service is expected to fold every rendering of one template into
// one key per service.
type scenario struct {
	Services  int      `yaml:"services"`
	Hosts     int      `yaml:"hosts"`
	Templates []string `yaml:"templates"`
}

var defaultTemplates = []string{
	"Connection timed out after %dms (connId=%d)",
	"Deadlock found when trying to get lock; txId=%d retry=%d",
	"Upstream responded HTTP 503 after %dms, attempt %d",
	"NullPointerException at com.shop.OrderService.place(OrderService.java:%d) order %d",
}

func loadScenario(path string, services, hosts int) (scenario, error) {
	sc := scenario{Services: services, Hosts: hosts, Templates: defaultTemplates}
	if path == "" {
		return sc, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read scenario: %w", err)
	}
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Services <= 0 || sc.Hosts <= 0 || len(sc.Templates) == 0 {
		return sc, fmt.Errorf("scenario %s needs positive services, hosts and at least one template", path)
	}
	return sc, nil
}

type event struct {
	ServiceName string `json:"service_name"`
	HostName    string `json:"host_name"`
	IP          string `json:"ip,omitempty"`
	LogLevel    string `json:"log_level"`
	Message     string `json:"message"`
	OccurredAt  string `json:"occurred_at"`
}

func main() {
	targetURL := flag.String("url", "http://localhost:8080/ingest", "Target URL for ingestion")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Requests per second limit")
	batch := flag.Int("batch", 1, "Events per request; values above 1 send NDJSON")
	services := flag.Int("services", 3, "Number of distinct service names")
	hosts := flag.Int("hosts", 5, "Number of distinct host names")
	compress := flag.Bool("gzip", false, "Send gzip-encoded request bodies")
	scenarioPath := flag.String("scenario", "", "Optional YAML file with services, hosts and templates")
	flag.Parse()

	sc, err := loadScenario(*scenarioPath, *services, *hosts)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Batch: %d", *concurrency, *duration, *rps, *batch)

	var wg sync.WaitGroup
	var successCount, errorCount, eventCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				body, contentType := buildBody(sc, *batch, *compress)
				req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, body)
				if err != nil {
					continue // Should not happen
				}
				req.Header.Set("Content-Type", contentType)
				if *compress {
					req.Header.Set("Content-Encoding", "gzip")
				}

				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					errorCount.Add(1)
					continue
				}

				if resp.StatusCode == http.StatusAccepted {
					successCount.Add(1)
					eventCount.Add(int64(*batch))
				} else {
					errorCount.Add(1)
				}
				resp.Body.Close()
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (202 Accepted): %d", successCount.Load())
	log.Printf("Events accepted: %d", eventCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
	log.Printf("Expected distinct keys: at most %d", sc.Services*len(sc.Templates))
}

func buildBody(sc scenario, batch int, compress bool) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	var zw *gzip.Writer
	var enc *json.Encoder
	if compress {
		zw = gzip.NewWriter(&buf)
		enc = json.NewEncoder(zw)
	} else {
		enc = json.NewEncoder(&buf)
	}
	for i := 0; i < batch; i++ {
		_ = enc.Encode(randomEvent(sc))
	}
	if zw != nil {
		_ = zw.Close()
	}
	if batch == 1 {
		return &buf, "application/json"
	}
	return &buf, "application/x-ndjson"
}

func randomEvent(sc scenario) event {
	host := rand.IntN(sc.Hosts)
	return event{
		ServiceName: fmt.Sprintf("svc-%d", rand.IntN(sc.Services)),
		HostName:    fmt.Sprintf("host-%d", host),
		IP:          fmt.Sprintf("10.0.%d.%d", host/250, host%250+1),
		LogLevel:    "ERROR",
		Message:     fmt.Sprintf(sc.Templates[rand.IntN(len(sc.Templates))], 100+rand.IntN(9900), 100+rand.IntN(9900)),
		OccurredAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}
