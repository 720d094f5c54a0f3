package hybrid

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"jobscout/internal/logging/types"
)

// BlockedDomains remembers hosts that answered the primary engine with a bot
// challenge. The list survives restarts when a path is set.
type BlockedDomains struct {
	path    string
	domains map[string]time.Time // domain -> first seen time
	mu      sync.RWMutex
	logger  types.Logger
}

// NewBlockedDomains loads the list at path. An empty path keeps it in memory.
func NewBlockedDomains(path string, logger types.Logger) *BlockedDomains {
	b := &BlockedDomains{
		path:    path,
		domains: make(map[string]time.Time),
		logger:  logger,
	}

	if err := b.load(); err != nil {
		b.logger.Error("Failed to load blocked domains from file", map[string]interface{}{
			"file":  path,
			"error": err.Error(),
		})
	}
	return b
}

// Contains checks if the URL's host is known to block the primary engine
func (b *BlockedDomains) Contains(urlStr string) bool {
	domain, err := extractDomain(urlStr)
	if err != nil {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.domains[domain]
	return exists
}

// Add records the URL's host and persists the list
func (b *BlockedDomains) Add(urlStr string) error {
	domain, err := extractDomain(urlStr)
	if err != nil {
		return fmt.Errorf("failed to extract domain from URL %s: %w", urlStr, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.domains[domain]; exists {
		return nil
	}
	b.domains[domain] = time.Now().UTC()

	b.logger.Info("Added blocked domain", map[string]interface{}{
		"domain":      domain,
		"total_count": len(b.domains),
	})
	return b.save()
}

// Len returns the number of known blocked domains
func (b *BlockedDomains) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.domains)
}

func (b *BlockedDomains) load() error {
	if b.path == "" {
		return nil
	}
	file, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open blocked domains file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		firstSeen := time.Now().UTC()
		if len(parts) > 1 {
			if parsed, err := time.Parse(time.RFC3339, parts[1]); err == nil {
				firstSeen = parsed
			}
		}
		b.domains[parts[0]] = firstSeen
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading blocked domains file: %w", err)
	}

	b.logger.Debug("Loaded blocked domains", map[string]interface{}{"count": len(b.domains)})
	return nil
}

// save must be called with mu held
func (b *BlockedDomains) save() error {
	if b.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(b.path)
	if err != nil {
		return fmt.Errorf("failed to create blocked domains file: %w", err)
	}
	defer file.Close()

	domains := make([]string, 0, len(b.domains))
	for d := range b.domains {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "# Hosts that challenge plain HTTP fetches (automatically managed)\n")
	fmt.Fprintf(w, "# Format: domain\\tfirst_seen_timestamp\n\n")
	for _, d := range domains {
		fmt.Fprintf(w, "%s\t%s\n", d, b.domains[d].Format(time.RFC3339))
	}
	return w.Flush()
}

func extractDomain(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("no hostname found in URL")
	}
	return strings.TrimPrefix(hostname, "www."), nil
}
