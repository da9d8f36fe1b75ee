package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/riftfi/reactivation-backend/internal/errors"
	"github.com/riftfi/reactivation-backend/internal/model"
	"github.com/riftfi/reactivation-backend/internal/store"
	"github.com/riftfi/reactivation-backend/internal/whatsapp"
)

// Mock collaborators

type stubRepo struct {
	users []model.User
	err   error
}

func (r *stubRepo) FetchUsersWithDetails(ctx context.Context) ([]model.User, error) {
	return r.users, r.err
}

type stubGenerator struct {
	fn func(u model.CategorizedUser) (string, error)
}

func (g *stubGenerator) Generate(ctx context.Context, u model.CategorizedUser) (string, error) {
	if g.fn != nil {
		return g.fn(u)
	}
	return "hello " + u.FirstName, nil
}

type scriptedSender struct {
	ready   bool
	results map[string]string // phone -> status
	reasons map[string]string
	sends   []string
}

func (s *scriptedSender) Send(ctx context.Context, phone, message string) whatsapp.SendResult {
	s.sends = append(s.sends, phone)
	status, ok := s.results[phone]
	if !ok {
		status = whatsapp.StatusSent
	}
	return whatsapp.SendResult{
		Phone:     phone,
		Status:    status,
		Error:     s.reasons[phone],
		Timestamp: time.Now().UTC(),
	}
}

func (s *scriptedSender) Ready() bool { return s.ready }

type fixture struct {
	svc     *BatchService
	repo    *stubRepo
	sender  *scriptedSender
	tracker *store.SentTracker
	sendLog *store.SendLog
	sleeps  []time.Duration
	dataDir string
}

func newFixture(t *testing.T, users []model.User) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	f := &fixture{
		repo:    &stubRepo{users: users},
		sender:  &scriptedSender{ready: true, results: map[string]string{}, reasons: map[string]string{}},
		tracker: store.LoadSentTracker(filepath.Join(dir, "sent_users.json"), logger),
		sendLog: store.NewSendLog(filepath.Join(dir, "send_log.json"), logger),
		dataDir: dir,
	}

	cfg := DefaultBatchConfig()
	cfg.MinDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	cfg.MinSessionBreak = 20 * time.Millisecond
	cfg.MaxSessionBreak = 20 * time.Millisecond

	f.svc = NewBatchService(f.repo, &stubGenerator{}, f.sender, f.tracker, f.sendLog, nil, cfg, logger)
	f.svc.sleep = func(ctx context.Context, d time.Duration) {
		f.sleeps = append(f.sleeps, d)
	}
	return f
}

func dormantUser(id, phone string) model.User {
	last := now.Add(-45 * 24 * time.Hour)
	return model.User{
		ID:          id,
		DisplayName: "Test User",
		PhoneNumber: phone,
		KYCVerified: true,
		OnrampCount: 5,
		LastOnramp:  &last,
	}
}

func TestRunBatchFailedSendStaysRetryable(t *testing.T) {
	users := []model.User{
		dormantUser("u1", "0711000001"),
		dormantUser("u2", "0711000002"),
		dormantUser("u3", "0711000003"),
	}
	f := newFixture(t, users)
	f.sender.results["0711000002"] = whatsapp.StatusFailed
	f.sender.reasons["0711000002"] = "timed out"

	report, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Skipped)

	// Failed user must remain eligible for a future run.
	assert.True(t, f.tracker.Contains("u1"))
	assert.False(t, f.tracker.Contains("u2"))
	assert.True(t, f.tracker.Contains("u3"))

	// Only real sends hit the durable log.
	assert.Len(t, f.sendLog.Tail(0), 2)
}

func TestRunBatchSkippedIsMarkedPermanently(t *testing.T) {
	users := []model.User{dormantUser("u1", "0711000001")}
	f := newFixture(t, users)
	f.sender.results["0711000001"] = whatsapp.StatusSkipped
	f.sender.reasons["0711000001"] = "not registered on WhatsApp"

	report, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Sent)
	// Bad numbers are never retried.
	assert.True(t, f.tracker.Contains("u1"))
	// Skips do not reach the send log.
	assert.Empty(t, f.sendLog.Tail(0))
}

func TestRunBatchGeneratorErrorDoesNotAbort(t *testing.T) {
	users := []model.User{
		dormantUser("u1", "0711000001"),
		dormantUser("u2", "0711000002"),
	}
	f := newFixture(t, users)
	f.svc.Generator = &stubGenerator{fn: func(u model.CategorizedUser) (string, error) {
		if u.ID == "u1" {
			return "", errors.New("llm unavailable")
		}
		return "msg", nil
	}}

	report, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, model.StatusError, report.Outcomes[0].Status)
	assert.Equal(t, model.StatusSent, report.Outcomes[1].Status)
	// Generation failures never touch the tracker.
	assert.False(t, f.tracker.Contains("u1"))
}

func TestRunBatchGeneratorPanicIsolated(t *testing.T) {
	users := []model.User{
		dormantUser("u1", "0711000001"),
		dormantUser("u2", "0711000002"),
	}
	f := newFixture(t, users)
	f.svc.Generator = &stubGenerator{fn: func(u model.CategorizedUser) (string, error) {
		if u.ID == "u1" {
			panic("boom")
		}
		return "msg", nil
	}}

	report, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
}

func TestRunBatchHonorsCap(t *testing.T) {
	var users []model.User
	for i := 0; i < 8; i++ {
		users = append(users, dormantUser(fmt.Sprintf("u%d", i), fmt.Sprintf("07110000%02d", i)))
	}
	f := newFixture(t, users)
	f.svc.Config.DailyCap = 3

	report, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Sent)
	assert.Len(t, f.sender.sends, 3)
}

func TestRunBatchLimitBelowCap(t *testing.T) {
	var users []model.User
	for i := 0; i < 8; i++ {
		users = append(users, dormantUser(fmt.Sprintf("u%d", i), fmt.Sprintf("07110000%02d", i)))
	}
	f := newFixture(t, users)

	report, err := f.svc.RunBatch(context.Background(), RunOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sent)
}

func TestRunBatchRejectsConcurrentTrigger(t *testing.T) {
	f := newFixture(t, []model.User{dormantUser("u1", "0711000001")})

	f.svc.mu.Lock()
	f.svc.running = true
	f.svc.mu.Unlock()

	_, err := f.svc.RunBatch(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, appErrors.ErrBatchRunning)
}

func TestRunBatchRefusesWhenSenderNotReady(t *testing.T) {
	f := newFixture(t, []model.User{dormantUser("u1", "0711000001")})
	f.sender.ready = false

	_, err := f.svc.RunBatch(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, appErrors.ErrSenderNotReady)
	assert.Empty(t, f.sender.sends)
}

func TestRunBatchFetchErrorIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.err = errors.New("connection refused")

	report, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.Error(t, err)

	var fetchErr *appErrors.ErrFetchUsers
	assert.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, f.sender.sends)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Error)
}

func TestRunBatchCampaignComplete(t *testing.T) {
	f := newFixture(t, []model.User{dormantUser("u1", "0711000001")})
	require.NoError(t, f.tracker.MarkSent("u1", model.CategoryDormant))

	report, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, report.Complete)
	assert.Empty(t, f.sender.sends)
}

func TestRunBatchDryRun(t *testing.T) {
	users := []model.User{
		dormantUser("u1", "0711000001"),
		dormantUser("u2", "0711000002"),
	}
	f := newFixture(t, users)
	f.sender.ready = false // dry runs don't need the channel

	report, err := f.svc.RunBatch(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Sent)
	require.Len(t, report.Outcomes, 2)
	for _, o := range report.Outcomes {
		assert.Equal(t, model.StatusDryRun, o.Status)
		assert.NotEmpty(t, o.Message)
	}
	assert.Empty(t, f.sender.sends)
	assert.Equal(t, 0, f.tracker.Len())
	assert.Empty(t, f.sleeps)

	// Dry-run output lands in its own dated file.
	pattern := filepath.Join(f.dataDir, "dry_run_DORMANT_*.json")
	matches, err := filepath.Glob(pattern)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	_, statErr := os.Stat(matches[0])
	assert.NoError(t, statErr)
}

func TestRunBatchPacingCadence(t *testing.T) {
	var users []model.User
	for i := 0; i < 12; i++ {
		users = append(users, dormantUser(fmt.Sprintf("u%02d", i), fmt.Sprintf("07110001%02d", i)))
	}
	f := newFixture(t, users)

	report, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 12, report.Sent)

	// One pause between each consecutive pair, none after the last user.
	require.Len(t, f.sleeps, 11)
	for i, d := range f.sleeps {
		if i == 9 { // after the 10th successful send
			assert.Equal(t, 20*time.Millisecond, d, "sleep %d should be a session break", i)
		} else {
			assert.Equal(t, time.Millisecond, d, "sleep %d should be a normal delay", i)
		}
	}
}

func TestRunBatchTargetedCategory(t *testing.T) {
	noKYC := model.User{ID: "n1", PhoneNumber: "0711000009", DisplayName: "No Kyc"}
	f := newFixture(t, []model.User{dormantUser("u1", "0711000001"), noKYC})

	cat := model.CategoryNoKYC
	report, err := f.svc.RunBatch(context.Background(), RunOptions{Category: &cat})
	require.NoError(t, err)

	assert.Equal(t, model.CategoryNoKYC, report.Category)
	assert.Equal(t, 1, report.Sent)
	assert.True(t, f.tracker.Contains("n1"))
	assert.False(t, f.tracker.Contains("u1"))
}

func TestRunBatchCumulativeStats(t *testing.T) {
	f := newFixture(t, []model.User{
		dormantUser("u1", "0711000001"),
		dormantUser("u2", "0711000002"),
	})
	f.svc.Config.DailyCap = 1

	_, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)
	_, err = f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)

	stats := f.svc.Stats()
	assert.Equal(t, 2, stats.TotalSent)
	assert.Equal(t, 2, stats.BatchesRun)
}

func TestResetCampaign(t *testing.T) {
	f := newFixture(t, []model.User{dormantUser("u1", "0711000001")})

	_, err := f.svc.RunBatch(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, f.tracker.Len())

	require.NoError(t, f.svc.ResetCampaign())
	assert.Equal(t, 0, f.tracker.Len())
	assert.Equal(t, model.CampaignStats{}, f.svc.Stats())
}
