// internal/controller/status_controller.go
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/riftfi/reactivation-backend/internal/errors"
	"github.com/riftfi/reactivation-backend/internal/model"
	"github.com/riftfi/reactivation-backend/internal/service"
	"github.com/riftfi/reactivation-backend/internal/store"
)

// QRSource exposes the WhatsApp pairing state to the HTTP surface.
type QRSource interface {
	QR() (string, bool)
	Ready() bool
}

// StatusController serves the operational endpoints: status, category
// breakdown, manual trigger, tracker reset, logs and QR pairing.
type StatusController struct {
	Batch     *service.BatchService
	Scheduler *service.Scheduler
	Tracker   *store.SentTracker
	SendLog   *store.SendLog
	WhatsApp  QRSource
	Logger    *zap.Logger
	StartedAt time.Time
}

// Status is the dashboard endpoint.
func (c *StatusController) Status(w http.ResponseWriter, r *http.Request) {
	whatsappState := "initializing"
	if c.WhatsApp.Ready() {
		whatsappState = "connected"
	} else if _, ok := c.WhatsApp.QR(); ok {
		whatsappState = "waiting_for_scan"
	}

	resp := map[string]interface{}{
		"status":      "running",
		"whatsapp":    whatsappState,
		"uptime":      time.Since(c.StartedAt).Seconds(),
		"isRunning":   c.Batch.Running(),
		"lastRun":     c.Batch.LastRun(),
		"nextRunTime": nil,
		"stats": map[string]interface{}{
			"counters":     c.Batch.Stats(),
			"totalTracked": c.Tracker.Len(),
		},
	}
	if next := c.Scheduler.NextRun(); !next.IsZero() {
		resp["nextRunTime"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

// Categories reports per-category totals against the tracker.
func (c *StatusController) Categories(w http.ResponseWriter, r *http.Request) {
	users, err := c.Batch.Overview(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":      len(users),
		"tracked":    c.Tracker.Len(),
		"categories": service.Breakdown(users, c.Tracker),
	})
}

// Run triggers a batch in the background. 409 while one is active, 400
// when the delivery channel is not paired yet.
func (c *StatusController) Run(w http.ResponseWriter, r *http.Request) {
	if c.Batch.Running() {
		http.Error(w, "Batch already running", http.StatusConflict)
		return
	}
	if !c.WhatsApp.Ready() {
		http.Error(w, "WhatsApp not connected. Visit /qr first.", http.StatusBadRequest)
		return
	}

	var body struct {
		Category *string `json:"category"`
		Limit    int     `json:"limit"`
		DryRun   bool    `json:"dry_run"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	opts := service.RunOptions{Limit: body.Limit, DryRun: body.DryRun}
	if body.Category != nil {
		if !model.ValidCategory(*body.Category) {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}
		cat := model.Category(*body.Category)
		opts.Category = &cat
	}

	// The run outlives the request; detach from its context.
	go func() {
		if _, err := c.Batch.RunBatch(context.Background(), opts); err != nil &&
			!errors.Is(err, appErrors.ErrBatchRunning) {
			c.Logger.Error("manual batch failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Batch started"})
}

// Reset clears the sent tracker; every user becomes eligible again.
func (c *StatusController) Reset(w http.ResponseWriter, r *http.Request) {
	if err := c.Batch.ResetCampaign(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Sent tracker reset. All users will be re-messaged.",
	})
}

// Logs returns the tail of the send log.
func (c *StatusController) Logs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	writeJSON(w, http.StatusOK, c.SendLog.Tail(limit))
}

// QR renders the pairing page.
func (c *StatusController) QR(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if c.WhatsApp.Ready() {
		fmt.Fprint(w, `<html><body style="font-family:monospace;text-align:center;padding:50px"><h1>WhatsApp Connected</h1><p>Already authenticated and ready.</p><a href="/">Dashboard</a></body></html>`)
		return
	}

	qr, ok := c.WhatsApp.QR()
	if !ok {
		fmt.Fprint(w, `<html><body style="font-family:monospace;text-align:center;padding:50px"><h1>Waiting for QR...</h1><p>WhatsApp is initializing. Refresh in a few seconds.</p><script>setTimeout(()=>location.reload(),3000)</script></body></html>`)
		return
	}

	qrImageURL := "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=" + url.QueryEscape(qr)
	fmt.Fprintf(w, `<html><body style="font-family:monospace;text-align:center;padding:30px">
    <h1>Scan QR Code with WhatsApp</h1>
    <p>Open WhatsApp &gt; Linked Devices &gt; Link a Device</p>
    <img src="%s" style="margin:20px"/>
    <p>Waiting for scan...</p>
    <script>setTimeout(()=>location.reload(),5000)</script>
  </body></html>`, qrImageURL)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
