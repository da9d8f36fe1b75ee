package whatsapp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const (
	webURL = "https://web.whatsapp.com"

	// Selectors on WhatsApp Web. The QR element carries the pairing code in
	// data-ref; the side pane only exists once a device is linked; the
	// modal popup appears for numbers not registered on WhatsApp.
	selQRCode   = "div[data-ref]"
	selSidePane = "#side"
	selComposer = `div[contenteditable="true"][data-tab="10"]`
	selPopup    = `div[data-animate-modal-popup="true"]`

	navigateTimeout = 45 * time.Second
	pollInterval    = 2 * time.Second
)

// Client drives WhatsApp Web in a headless browser. The chromium profile
// directory persists the pairing across restarts, so the QR scan is only
// needed once.
type Client struct {
	dataDir  string
	headless bool
	logger   *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	ready   bool
	qr      string
	closed  bool
}

func NewClient(dataDir string, headless bool, logger *zap.Logger) *Client {
	return &Client{
		dataDir:  dataDir,
		headless: headless,
		logger:   logger,
	}
}

// Init launches the browser, opens WhatsApp Web and starts watching for the
// pairing state. It returns once the page is open; readiness is reported
// asynchronously through Ready and QR.
func (c *Client) Init() error {
	l := launcher.New().
		Headless(c.headless).
		UserDataDir(c.dataDir).
		NoSandbox(true)

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connecting to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: webURL})
	if err != nil {
		browser.Close()
		return fmt.Errorf("opening whatsapp web: %w", err)
	}

	c.mu.Lock()
	c.browser = browser
	c.page = page
	c.mu.Unlock()

	go c.watchPairing()
	return nil
}

// watchPairing polls the page until a linked session appears, keeping the
// current QR code available for the pairing endpoint.
func (c *Client) watchPairing() {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		page := c.page
		c.mu.Unlock()

		if has, _, _ := page.Has(selSidePane); has {
			c.mu.Lock()
			if !c.ready {
				c.logger.Info("whatsapp session linked")
			}
			c.ready = true
			c.qr = ""
			c.mu.Unlock()
			time.Sleep(10 * pollInterval)
			continue
		}

		if has, el, _ := page.Has(selQRCode); has {
			if ref, err := el.Attribute("data-ref"); err == nil && ref != nil {
				c.mu.Lock()
				c.ready = false
				c.qr = *ref
				c.mu.Unlock()
			}
		}
		time.Sleep(pollInterval)
	}
}

// Ready reports whether the session is linked and sends can proceed.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// QR returns the current pairing code, if one is being displayed.
func (c *Client) QR() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qr, c.qr != ""
}

// Send normalizes the number and delivers one message through the open
// session. Invalid and unregistered numbers are skipped, never errors.
func (c *Client) Send(ctx context.Context, phone, message string) SendResult {
	formatted, ok := FormatKenyanNumber(phone)
	if !ok {
		return skipped(phone, "invalid phone number format")
	}

	c.mu.Lock()
	page, ready := c.page, c.ready
	c.mu.Unlock()
	if page == nil || !ready {
		return failed(formatted, "whatsapp client not initialized")
	}

	target := fmt.Sprintf("%s/send?phone=%s&text=%s", webURL, formatted, url.QueryEscape(message))
	p := page.Context(ctx).Timeout(navigateTimeout)

	if err := p.Navigate(target); err != nil {
		return failed(formatted, fmt.Sprintf("navigation failed: %v", err))
	}
	if err := p.WaitLoad(); err != nil {
		return failed(formatted, fmt.Sprintf("page load failed: %v", err))
	}

	// Either the composer appears with the draft prefilled, or WhatsApp
	// shows the invalid-number popup. Whichever comes first decides.
	el, err := p.Race().
		Element(selComposer).
		Element(selPopup).
		Do()
	if err != nil {
		return failed(formatted, fmt.Sprintf("chat did not open: %v", err))
	}
	if matches, _ := el.Matches(selPopup); matches {
		return skipped(formatted, "not registered on WhatsApp")
	}

	if err := el.Focus(); err != nil {
		return failed(formatted, fmt.Sprintf("composer focus failed: %v", err))
	}
	if err := p.Keyboard.Type(input.Enter); err != nil {
		return failed(formatted, fmt.Sprintf("send keystroke failed: %v", err))
	}

	c.logger.Debug("message sent", zap.String("phone", formatted))
	return sent(formatted)
}

// Close shuts the browser down. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.ready = false
	if c.browser != nil {
		c.browser.Close()
		c.browser = nil
		c.page = nil
	}
}

var _ Sender = (*Client)(nil)
