package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type transaction struct {
	Amount         int64  `json:"amount"`
	ValueDate      string `json:"valueDate"`
	PaymentPurpose string `json:"paymentPurpose"`
	EntryText      string `json:"entryText"`
	PayeePayerName string `json:"payeePayerName"`
}

type importRequest struct {
	Transactions []transaction `json:"transactions"`
}

type loadConfig struct {
	BaseURL         string
	AccountIDs      []int64
	User            string
	ImportsPerSec   int
	DurationSeconds int
	Workers         int
	BatchSize       int
	// ResendRatio of imports replay an earlier batch to exercise dedup.
	ResendRatio float64
}

type stats struct {
	created   atomic.Int64
	conflicts atomic.Int64
	errors    atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *stats) observe(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func (s *stats) sorted() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]time.Duration(nil), s.latencies...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type job struct {
	accountID int64
	body      []byte
}

func batch(seq, size int) []byte {
	day := time.Now().AddDate(0, 0, -(seq % 14)).Format("2006-01-02")
	req := importRequest{Transactions: make([]transaction, size)}
	for i := range req.Transactions {
		req.Transactions[i] = transaction{
			Amount:         -int64(100 + seq*size + i),
			ValueDate:      day,
			PaymentPurpose: fmt.Sprintf("load %d/%d", seq, i),
			EntryText:      "LASTSCHRIFT",
			PayeePayerName: fmt.Sprintf("Merchant %d", i%25),
		}
	}
	b, err := json.Marshal(req)
	if err != nil {
		panic(err)
	}
	return b
}

func send(client *http.Client, cfg loadConfig, j job, st *stats) {
	url := fmt.Sprintf("%s/accounts/%d/transactions", cfg.BaseURL, j.accountID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(j.body))
	if err != nil {
		st.errors.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Authenticated-User", cfg.User)

	start := time.Now()
	resp, err := client.Do(req)
	st.observe(time.Since(start))
	if err != nil {
		st.errors.Add(1)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		st.created.Add(1)
	case http.StatusConflict:
		// account lock held by a concurrent import
		st.conflicts.Add(1)
	default:
		st.errors.Add(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)) * p)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func accountIDs(raw string) []int64 {
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func main() {
	cfg := loadConfig{
		BaseURL:         envOr("TARGET_URL", "http://localhost:3000/api/v1"),
		AccountIDs:      accountIDs(envOr("ACCOUNT_IDS", "1")),
		User:            envOr("IMPORT_USER", "loadtest"),
		ImportsPerSec:   envInt("IMPORTS_PER_SECOND", 50),
		DurationSeconds: envInt("DURATION_SECONDS", 30),
		Workers:         envInt("CONCURRENT_WORKERS", 20),
		BatchSize:       envInt("BATCH_SIZE", 25),
		ResendRatio:     envFloat("RESEND_RATIO", 0.2),
	}
	if len(cfg.AccountIDs) == 0 {
		fmt.Println("ACCOUNT_IDS must list at least one account id")
		os.Exit(1)
	}

	fmt.Println("Starting import load test...")
	fmt.Printf("Target: %s accounts=%v\n", cfg.BaseURL, cfg.AccountIDs)
	fmt.Printf("Imports/s: %d, batch size: %d, workers: %d, duration: %ds, resend ratio: %.2f\n",
		cfg.ImportsPerSec, cfg.BatchSize, cfg.Workers, cfg.DurationSeconds, cfg.ResendRatio)
	fmt.Println(strings.Repeat("-", 50))

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Workers,
			MaxIdleConnsPerHost: cfg.Workers,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 60 * time.Second,
	}

	st := &stats{}
	jobs := make(chan job, cfg.ImportsPerSec)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				send(client, cfg, j, st)
			}
		}()
	}

	var sent []job
	start := time.Now()
	seq := 0
	for sec := 0; sec < cfg.DurationSeconds; sec++ {
		tick := time.Now()
		for i := 0; i < cfg.ImportsPerSec; i++ {
			var j job
			if len(sent) > 0 && float64(seq%100)/100 < cfg.ResendRatio {
				j = sent[seq%len(sent)]
			} else {
				j = job{accountID: cfg.AccountIDs[seq%len(cfg.AccountIDs)], body: batch(seq, cfg.BatchSize)}
				sent = append(sent, j)
			}
			jobs <- j
			seq++
		}

		fmt.Printf("[%ds] created: %d | conflicts: %d | errors: %d\n",
			sec+1, st.created.Load(), st.conflicts.Load(), st.errors.Load())
		if d := time.Since(tick); d < time.Second {
			time.Sleep(time.Second - d)
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	lat := st.sorted()
	total := st.created.Load() + st.conflicts.Load() + st.errors.Load()

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("IMPORT LOAD TEST RESULTS")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Duration: %.2fs\n", elapsed.Seconds())
	fmt.Printf("Imports: %d (created %d, conflicts %d, errors %d)\n", total, st.created.Load(), st.conflicts.Load(), st.errors.Load())
	fmt.Printf("Imports/s: %.2f, rows/s: %.2f\n", float64(total)/elapsed.Seconds(), float64(st.created.Load()*int64(cfg.BatchSize))/elapsed.Seconds())
	fmt.Printf("Latency p50=%s p95=%s p99=%s max=%s\n",
		percentile(lat, 0.50), percentile(lat, 0.95), percentile(lat, 0.99), percentile(lat, 1))
}
