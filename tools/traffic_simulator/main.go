// Traffic Simulator drives synthetic load against a running server: it asks
// for decisions, fires the impression pixel for every served ad and clicks a
// configurable fraction of them. Handy for watching the metrics endpoint,
// filling ClickHouse with realistic event streams and smoke-testing frequency
// caps under concurrency.
//
// Usage:
//
//	go run ./tools/traffic_simulator -server=http://localhost:8787 \
//	    -placements=header,sidebar -users=50 -requests=1000 -concurrency=8
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/models"
	"github.com/openadstack/addecide/internal/observability"
)

var (
	server       = flag.String("server", "http://localhost:8787", "server base URL")
	placementCSV = flag.String("placements", "header,sidebar,content_rect", "comma separated placement codes")
	users        = flag.Int("users", 25, "distinct anon ids to rotate through")
	totalReq     = flag.Int("requests", 500, "total decision requests")
	conc         = flag.Int("concurrency", 4, "concurrent workers")
	clickRate    = flag.Float64("click-rate", 0.05, "fraction of served ads that get clicked")
	seed         = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
)

var userAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	"Mozilla/5.0 (iPad; CPU OS 15_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.2 Mobile/15E148 Safari/604.1",
}

var userIPs = []string{"192.0.2.1", "198.51.100.1", "203.0.113.1"}

type counters struct {
	requests    atomic.Int64
	served      atomic.Int64
	noAd        atomic.Int64
	errors      atomic.Int64
	impressions atomic.Int64
	clicks      atomic.Int64
}

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	placements := strings.Split(*placementCSV, ",")
	anonIDs := make([]string, *users)
	for i := range anonIDs {
		anonIDs[i] = uuid.NewString()
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        *conc * 2,
			MaxIdleConnsPerHost: *conc * 2,
		},
	}
	// Clicks 302 to advertiser pages we must not actually fetch.
	clickClient := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	work := make(chan int)
	var c counters
	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < *conc; w++ {
		wg.Add(1)
		go func(workerSeed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(workerSeed))
			for range work {
				simulateOne(r, client, clickClient, logger, placements, anonIDs, &c)
			}
		}(*seed + int64(w))
	}

	for i := 0; i < *totalReq; i++ {
		work <- i
	}
	close(work)
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("requests:    %d (%.1f/s)\n", c.requests.Load(), float64(c.requests.Load())/elapsed.Seconds())
	fmt.Printf("served:      %d\n", c.served.Load())
	fmt.Printf("no_ad:       %d\n", c.noAd.Load())
	fmt.Printf("errors:      %d\n", c.errors.Load())
	fmt.Printf("impressions: %d\n", c.impressions.Load())
	fmt.Printf("clicks:      %d\n", c.clicks.Load())
}

func simulateOne(r *rand.Rand, client, clickClient *http.Client, logger *zap.Logger, placements, anonIDs []string, c *counters) {
	c.requests.Add(1)

	req := models.DecisionRequest{
		PlacementCode: placements[r.Intn(len(placements))],
		AnonID:        anonIDs[r.Intn(len(anonIDs))],
	}
	ua := userAgents[r.Intn(len(userAgents))]

	resp, err := decide(client, req, ua, userIPs[r.Intn(len(userIPs))])
	if err != nil {
		c.errors.Add(1)
		logger.Warn("decide request", zap.Error(err))
		return
	}

	switch resp.Status {
	case models.DecisionStatusOK:
		c.served.Add(1)
	case models.DecisionStatusNoAd:
		c.noAd.Add(1)
		return
	default:
		c.errors.Add(1)
		return
	}

	// A real client renders the ad and the impression pixel fires.
	pixelURL := resp.Decision.ImpressionTrackingURL
	if strings.HasPrefix(pixelURL, "/") {
		pixelURL = *server + pixelURL
	}
	if err := firePixel(client, pixelURL+"&anon_id="+req.AnonID, ua); err != nil {
		logger.Warn("impression pixel", zap.Error(err))
	} else {
		c.impressions.Add(1)
	}

	if r.Float64() < *clickRate {
		clickURL := resp.Decision.ClickTrackingURL
		if strings.HasPrefix(clickURL, "/") {
			clickURL = *server + clickURL
		}
		if err := firePixel(clickClient, clickURL+"&anon_id="+req.AnonID, ua); err != nil {
			logger.Warn("click", zap.Error(err))
		} else {
			c.clicks.Add(1)
		}
	}
}

func decide(client *http.Client, req models.DecisionRequest, ua, ip string) (*models.DecisionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, *server+"/api/ads/decide", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", ua)
	httpReq.Header.Set("X-Forwarded-For", ip)

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decide status %d", httpResp.StatusCode)
	}
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	var resp models.DecisionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func firePixel(client *http.Client, url, ua string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", ua)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
