package listener

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chtzvt/forestbatch/internal/batch"
)

// webhookPayload is the JSON body POSTed to the configured URL for each
// delivered batch.
type webhookPayload struct {
	IDs              []string `json:"ids"`
	ShardID          string   `json:"shard_id"`
	JobBatchNumber   int64    `json:"job_batch_number"`
	ShardBatchNumber int64    `json:"shard_batch_number"`
	JobTicket        string   `json:"job_ticket"`
}

// newWebhookListener POSTs each batch to the configured URL, retrying
// transient failures with exponential backoff.
func newWebhookListener(opts map[string]interface{}) (SuccessListener, error) {
	url := toString(opts["url"], "")
	if url == "" {
		return nil, fmt.Errorf("listener: webhook listener requires non-empty \"url\" option")
	}
	maxRetries := 3
	if v, ok := opts["max_retries"].(int); ok && v > 0 {
		maxRetries = v
	}
	client := &http.Client{Timeout: 10 * time.Second}

	return func(b batch.Batch) error {
		body, err := json.Marshal(webhookPayload{
			IDs:              b.IDs,
			ShardID:          b.Shard.ID,
			JobBatchNumber:   b.JobBatchNumber,
			ShardBatchNumber: b.ShardBatchNumber,
			JobTicket:        b.JobTicket,
		})
		if err != nil {
			return fmt.Errorf("listener: marshal webhook payload: %w", err)
		}

		var lastErr error
		backoff := 200 * time.Millisecond
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(backoff)
				backoff *= 2
			}
			req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("listener: build webhook request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				lastErr = err
				continue
			}
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("listener: webhook returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("listener: webhook delivery failed after %d attempts: %w", maxRetries+1, lastErr)
	}, nil
}

func init() {
	Register("webhook", newWebhookListener)
}
