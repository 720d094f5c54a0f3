package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"jobscout/internal/logging/types"
)

// BetterstackAdapter ships batched entries to a Betterstack (Logtail) source
type BetterstackAdapter struct {
	name       string
	config     BetterstackConfig
	httpClient *http.Client

	mu            sync.Mutex
	buffer        []BetterstackLogEntry
	healthy       bool
	lastError     error
	lastErrorTime time.Time

	sendMu sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// BetterstackConfig represents configuration for the Betterstack adapter.
// RetryDelay is multiplied by the attempt number.
type BetterstackConfig struct {
	SourceToken   string        `yaml:"source_token"`
	Endpoint      string        `yaml:"endpoint"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Timeout       time.Duration `yaml:"timeout"`
}

// BetterstackLogEntry represents a log entry in Betterstack format
type BetterstackLogEntry struct {
	Timestamp time.Time              `json:"dt"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewBetterstackAdapter creates the adapter and starts its flush loop
func NewBetterstackAdapter(name string, config BetterstackConfig) (*BetterstackAdapter, error) {
	if config.SourceToken == "" {
		return nil, fmt.Errorf("source_token is required for Betterstack adapter")
	}
	if config.Endpoint == "" {
		config.Endpoint = "https://in.logs.betterstack.com"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	a := &BetterstackAdapter{
		name:       name,
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		buffer:     make([]BetterstackLogEntry, 0, config.BatchSize),
		healthy:    true,
		stopCh:     make(chan struct{}),
	}

	a.wg.Add(1)
	go a.flushLoop()
	return a, nil
}

// Write buffers the entry. A full batch or an error-level entry flushes
// immediately.
func (a *BetterstackAdapter) Write(entry *types.LogEntry) error {
	a.mu.Lock()
	a.buffer = append(a.buffer, BetterstackLogEntry{
		Timestamp: entry.Timestamp,
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Fields:    entry.Fields,
	})
	flush := len(a.buffer) >= a.config.BatchSize || entry.Level.Enabled(types.ErrorLevel)
	a.mu.Unlock()

	if flush {
		return a.Flush()
	}
	return nil
}

// Flush sends everything buffered so far
func (a *BetterstackAdapter) Flush() error {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	a.mu.Lock()
	batch := a.buffer
	a.buffer = make([]BetterstackLogEntry, 0, a.config.BatchSize)
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := a.send(batch)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.healthy = false
		a.lastError = err
		a.lastErrorTime = time.Now()
		return fmt.Errorf("failed to send %d log entries to Betterstack: %w", len(batch), err)
	}
	a.healthy = true
	a.lastError = nil
	return nil
}

func (a *BetterstackAdapter) flushLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = a.Flush()
		case <-a.stopCh:
			return
		}
	}
}

// Close stops the flush loop and sends what is left
func (a *BetterstackAdapter) Close() error {
	select {
	case <-a.stopCh:
		return nil
	default:
		close(a.stopCh)
	}
	a.wg.Wait()

	err := a.Flush()
	a.httpClient.CloseIdleConnections()
	return err
}

// Health returns the health status of the adapter
func (a *BetterstackAdapter) Health() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.healthy {
		return fmt.Errorf("adapter unhealthy: %v (last error at %v)", a.lastError, a.lastErrorTime)
	}
	return nil
}

// Name returns the name of the adapter
func (a *BetterstackAdapter) Name() string {
	return a.name
}

func (a *BetterstackAdapter) send(batch []BetterstackLogEntry) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal log batch: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * a.config.RetryDelay) // linear backoff
		}

		req, err := http.NewRequest(http.MethodPost, a.config.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create HTTP request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+a.config.SourceToken)
		req.Header.Set("User-Agent", "jobscout/1.0")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		retryable, err := handleResponse(resp)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return lastErr
}

// handleResponse reports the status as an error and whether it is worth retrying
func handleResponse(resp *http.Response) (bool, error) {
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return false, fmt.Errorf("unauthorized: invalid source token")
	case http.StatusTooManyRequests:
		return true, fmt.Errorf("rate limited: %s", string(body))
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	default:
		return false, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}
}
