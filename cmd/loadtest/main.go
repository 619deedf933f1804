// Command loadtest drives POST /payments concurrently against a
// running gateway, for exercising the end-to-end scenarios by hand.
// Adapted from the teacher's root stress.go: the fire-and-forget
// goroutine-pool-plus-semaphore shape is kept, correlation ids move
// from fmt.Sprintf to google/uuid, and counts/targets become flags.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type paymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

func main() {
	var (
		target      = flag.String("url", "http://localhost:9999/payments", "POST /payments endpoint to hammer")
		total       = flag.Int("requests", 500, "total number of requests to send")
		concurrency = flag.Int("concurrency", 20, "number of in-flight requests")
		amount      = flag.Float64("amount", 19.90, "amount in decimal currency units per payment")
	)
	flag.Parse()

	var success, timeouts, errorCount atomic.Int64

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	client := &http.Client{Timeout: 2 * time.Second}

	start := time.Now()

	for i := 0; i < *total; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			payload := paymentRequest{
				CorrelationID: uuid.NewString(),
				Amount:        *amount,
			}
			body, _ := json.Marshal(payload)

			req, err := http.NewRequest(http.MethodPost, *target, bytes.NewReader(body))
			if err != nil {
				errorCount.Add(1)
				return
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					timeouts.Add(1)
				} else {
					errorCount.Add(1)
				}
				return
			}
			defer resp.Body.Close()

			respBody, _ := io.ReadAll(resp.Body)
			if resp.StatusCode == http.StatusOK {
				success.Add(1)
			} else {
				fmt.Printf("unexpected status %d: %s\n", resp.StatusCode, string(respBody))
				errorCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("requests: %d\nsuccess: %d\ntimeouts: %d\nerrors: %d\nelapsed: %s\n",
		*total, success.Load(), timeouts.Load(), errorCount.Load(), elapsed)
}
