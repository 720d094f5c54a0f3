package headed

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
)

// BrowserManager lazily launches browsers and hands out fresh pages
type BrowserManager struct {
	config       *config.Config
	launcher     *launcher.Launcher
	browsers     []*rod.Browser
	mu           sync.Mutex
	maxInstances int
	logger       types.Logger
}

// BrowserInstance is a page borrowed from a managed browser
type BrowserInstance struct {
	Browser *rod.Browser
	Page    *rod.Page
	manager *BrowserManager
}

// NewBrowserManager creates a new browser manager
func NewBrowserManager(cfg *config.Config) *BrowserManager {
	logger := logging.GetGlobalLogger().WithField("engine", "headed")

	l := launcher.New().
		Headless(cfg.Scraper.HeadlessMode).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	if chromePath := getSystemChromePath(); chromePath != "" {
		l = l.Bin(chromePath)
		logger.Info("Using system Chrome browser", map[string]interface{}{
			"chrome_path": chromePath,
		})
	} else {
		logger.Warn("System Chrome not found, Rod will download browser")
	}

	if cfg.Scraper.UserAgent != "" {
		l = l.Set("user-agent", cfg.Scraper.UserAgent)
	}

	return &BrowserManager{
		config:       cfg,
		launcher:     l,
		maxInstances: 1,
		logger:       logger,
	}
}

// GetBrowser returns a new page on a healthy browser, launching one if needed
func (bm *BrowserManager) GetBrowser(ctx context.Context) (*BrowserInstance, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for _, browser := range bm.browsers {
		if !bm.isBrowserHealthy(browser) {
			continue
		}
		page, err := bm.createPage(browser)
		if err != nil {
			bm.logger.Warn("Failed to create page from existing browser", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		return &BrowserInstance{Browser: browser, Page: page, manager: bm}, nil
	}

	if len(bm.browsers) >= bm.maxInstances {
		bm.dropUnhealthy()
		if len(bm.browsers) >= bm.maxInstances {
			return nil, fmt.Errorf("browser pool exhausted, max instances: %d", bm.maxInstances)
		}
	}

	browser, err := bm.createBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	page, err := bm.createPage(browser)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	bm.browsers = append(bm.browsers, browser)

	return &BrowserInstance{Browser: browser, Page: page, manager: bm}, nil
}

func (bm *BrowserManager) createBrowser(ctx context.Context) (*rod.Browser, error) {
	url, err := bm.launcher.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	bm.logger.Info("New browser instance created")
	return browser, nil
}

func (bm *BrowserManager) createPage(browser *rod.Browser) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if bm.config.Scraper.StealthMode {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, err
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		bm.logger.Warn("Failed to set viewport", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if bm.config.Scraper.UserAgent != "" {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      bm.config.Scraper.UserAgent,
			AcceptLanguage: "en-GB,en;q=0.9",
		})
		if err != nil {
			bm.logger.Warn("Failed to set user agent", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return page, nil
}

// Release closes the borrowed page
func (bi *BrowserInstance) Release() {
	if bi.Page != nil {
		_ = bi.Page.Close()
	}
}

// Navigate loads url and returns the HTTP status of the main document.
// A status of zero means the browser did not report one.
func (bi *BrowserInstance) Navigate(ctx context.Context, url string, timeout time.Duration) (int, error) {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := bi.Page.Context(navCtx)

	status := 0
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		return true
	})

	if err := page.Navigate(url); err != nil {
		return 0, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	wait()

	if err := page.WaitLoad(); err != nil {
		return status, fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}

	bi.manager.logger.Debug("Navigated to URL", map[string]interface{}{
		"url":    url,
		"status": status,
	})
	return status, nil
}

// GetPageHTML returns the full HTML content of the current page
func (bi *BrowserInstance) GetPageHTML() (string, error) {
	html, err := bi.Page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	return html, nil
}

func (bm *BrowserManager) isBrowserHealthy(browser *rod.Browser) bool {
	_, err := browser.Pages()
	return err == nil
}

func (bm *BrowserManager) dropUnhealthy() {
	healthy := bm.browsers[:0]
	for _, b := range bm.browsers {
		if bm.isBrowserHealthy(b) {
			healthy = append(healthy, b)
			continue
		}
		_ = b.Close()
	}
	bm.browsers = healthy
}

// Cleanup closes every browser
func (bm *BrowserManager) Cleanup() {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for _, b := range bm.browsers {
		if err := b.Close(); err != nil {
			bm.logger.Debug("Failed to close browser", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	bm.browsers = nil
	bm.launcher.Cleanup()
}

// getSystemChromePath finds the system-installed Chrome/Chromium browser
func getSystemChromePath() string {
	for _, env := range []string{"CHROME_BIN", "CHROME_PATH"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}

	commonPaths := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/opt/google/chrome/chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	if path, found := launcher.LookPath(); found {
		return path
	}
	return ""
}
