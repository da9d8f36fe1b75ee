// internal/service/batch_service.go
package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/riftfi/reactivation-backend/internal/errors"
	"github.com/riftfi/reactivation-backend/internal/generator"
	"github.com/riftfi/reactivation-backend/internal/model"
	"github.com/riftfi/reactivation-backend/internal/notify"
	"github.com/riftfi/reactivation-backend/internal/repository"
	"github.com/riftfi/reactivation-backend/internal/store"
	"github.com/riftfi/reactivation-backend/internal/whatsapp"
)

// BatchConfig carries the pacing and sizing policy for a run. The delay
// ranges are deliberate behavior, not tuning knobs: they emulate human
// usage cadence on the delivery channel.
type BatchConfig struct {
	AdminPhone        string
	DailyCap          int
	SessionBreakEvery int
	MinDelay          time.Duration
	MaxDelay          time.Duration
	MinSessionBreak   time.Duration
	MaxSessionBreak   time.Duration
}

// DefaultBatchConfig returns the production pacing policy.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		DailyCap:          50,
		SessionBreakEvery: 10,
		MinDelay:          8 * time.Second,
		MaxDelay:          15 * time.Second,
		MinSessionBreak:   2 * time.Minute,
		MaxSessionBreak:   5 * time.Minute,
	}
}

// RunOptions modify a single run. The zero value is a normal scheduled
// batch: auto-picked category, daily cap, real sends.
type RunOptions struct {
	// Category forces a specific segment instead of the priority scan.
	Category *model.Category
	// Limit lowers the cap for this run; the daily cap still applies.
	Limit int
	// DryRun generates messages without sending, marking or pacing.
	DryRun bool
}

// BatchService drives one messaging run at a time: fetch, categorize, pick
// a segment, generate and deliver with human-like pacing, and keep the
// sent tracker consistent with what actually went out.
type BatchService struct {
	UserRepo  repository.UserRepositoryInterface
	Generator generator.Generator
	Sender    whatsapp.Sender
	Tracker   *store.SentTracker
	SendLog   *store.SendLog
	Events    *notify.Publisher
	Logger    *zap.Logger
	Config    BatchConfig

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	mu      sync.Mutex
	running bool
	lastRun *model.RunReport
	stats   model.CampaignStats
}

// NewBatchService wires a batch runner with real clock and sleeper.
func NewBatchService(
	userRepo repository.UserRepositoryInterface,
	gen generator.Generator,
	sender whatsapp.Sender,
	tracker *store.SentTracker,
	sendLog *store.SendLog,
	events *notify.Publisher,
	cfg BatchConfig,
	logger *zap.Logger,
) *BatchService {
	return &BatchService{
		UserRepo:  userRepo,
		Generator: gen,
		Sender:    sender,
		Tracker:   tracker,
		SendLog:   sendLog,
		Events:    events,
		Logger:    logger,
		Config:    cfg,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// RunBatch executes one run. A second trigger while a batch is active is
// rejected with ErrBatchRunning, never queued.
func (s *BatchService) RunBatch(ctx context.Context, opts RunOptions) (*model.RunReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, appErrors.ErrBatchRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if !opts.DryRun && !s.Sender.Ready() {
		return nil, appErrors.ErrSenderNotReady
	}

	startedAt := s.now()
	report := &model.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
		DryRun:    opts.DryRun,
	}

	users, err := s.UserRepo.FetchUsersWithDetails(ctx)
	if err != nil {
		fatal := appErrors.NewFetchUsers(err)
		report.Error = fatal.Error()
		s.finishRun(report)
		s.Events.Publish(notify.BatchEvent{
			Type: notify.EventBatchFailed, RunID: report.RunID, Error: fatal.Error(),
		})
		s.alertAdmin(ctx, opts, fmt.Sprintf("[Rift Auto] ERROR: %v", fatal))
		return report, fatal
	}

	categorized := CategorizeAll(users, startedAt)
	s.logSummary(categorized)

	pick := s.selectSegment(categorized, opts)
	if pick == nil {
		s.Logger.Info("all users messaged, campaign complete",
			zap.Int("tracked", s.Tracker.Len()))
		report.Complete = true
		s.finishRun(report)
		s.Events.Publish(notify.BatchEvent{
			Type: notify.EventCampaignDone, RunID: report.RunID,
		})
		s.alertAdmin(ctx, opts, fmt.Sprintf(
			"[Rift Auto] All %d users have been messaged. Campaign complete.", s.Tracker.Len()))
		return report, nil
	}

	batch := pick.Users
	limit := s.Config.DailyCap
	if opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}
	if len(batch) > limit {
		batch = batch[:limit]
	}
	report.Category = pick.Category

	s.Logger.Info("batch starting",
		zap.String("run_id", report.RunID),
		zap.String("category", string(pick.Category)),
		zap.Int("batch", len(batch)),
		zap.Int("unsent", len(pick.Users)),
		zap.Bool("dry_run", opts.DryRun))

	s.Events.Publish(notify.BatchEvent{
		Type: notify.EventBatchStarted, RunID: report.RunID, Category: pick.Category,
	})
	s.alertAdmin(ctx, opts, fmt.Sprintf(
		"[Rift Auto] Starting batch:\nCategory: %s\nUsers: %d/%d unsent\nCampaign progress: %d/%d",
		pick.Category, len(batch), len(pick.Users), s.Tracker.Len(), len(categorized)))

	s.processBatch(ctx, batch, pick.Category, opts, report)

	report.Duration = s.now().Sub(startedAt)
	s.finishRun(report)

	if opts.DryRun && len(report.Outcomes) > 0 {
		if path, err := s.SendLog.WriteDryRun(report.Outcomes, pick.Category); err != nil {
			s.Logger.Error("writing dry run log", zap.Error(err))
		} else {
			s.Logger.Info("dry run log written", zap.String("path", path))
		}
	}

	s.Events.Publish(notify.BatchEvent{
		Type:     notify.EventBatchCompleted,
		RunID:    report.RunID,
		Category: pick.Category,
		Sent:     report.Sent,
		Skipped:  report.Skipped,
		Failed:   report.Failed,
	})
	s.alertAdmin(ctx, opts, fmt.Sprintf(
		"[Rift Auto] Batch complete:\nCategory: %s\nSent: %d\nSkipped: %d\nFailed: %d\nDuration: %.1fmin\nCampaign progress: %d",
		pick.Category, report.Sent, report.Skipped, report.Failed,
		report.Duration.Minutes(), s.Tracker.Len()))

	return report, nil
}

// processBatch walks the capped user list in order, isolating every
// per-user failure so the loop always reaches the next user.
func (s *BatchService) processBatch(ctx context.Context, batch []model.CategorizedUser, category model.Category, opts RunOptions, report *model.RunReport) {
	for i, user := range batch {
		s.Logger.Info("processing user",
			zap.Int("n", i+1), zap.Int("of", len(batch)),
			zap.String("user_id", user.ID), zap.String("phone", user.PhoneNumber))

		outcome := model.SendLogEntry{
			UserID:    user.ID,
			Phone:     user.PhoneNumber,
			Name:      user.FirstName,
			Category:  category,
			Timestamp: s.now().UTC(),
		}

		message, err := s.generateSafe(ctx, user)
		if err != nil {
			report.Failed++
			outcome.Status = model.StatusError
			outcome.Error = err.Error()
			report.Outcomes = append(report.Outcomes, outcome)
			s.Logger.Error("message generation failed",
				zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		outcome.Message = message

		if opts.DryRun {
			outcome.Status = model.StatusDryRun
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		result := s.Sender.Send(ctx, user.PhoneNumber, message)
		outcome.Phone = result.Phone
		outcome.Error = result.Error

		switch result.Status {
		case whatsapp.StatusSent:
			report.Sent++
			outcome.Status = model.StatusSent
			s.markSent(user.ID, category)
			if err := s.SendLog.Append(outcome); err != nil {
				s.Logger.Error("appending send log", zap.Error(err))
			}
			s.forwardToAdmin(ctx, i+1, len(batch), user, message)
		case whatsapp.StatusSkipped:
			// Invalid or unregistered numbers are marked sent so they are
			// never retried. Product decision.
			report.Skipped++
			outcome.Status = model.StatusSkipped
			s.markSent(user.ID, category)
			s.Logger.Warn("user skipped",
				zap.String("user_id", user.ID), zap.String("reason", result.Error))
		default:
			// Failed sends stay out of the tracker: eligible for a future run.
			report.Failed++
			outcome.Status = model.StatusFailed
			s.Logger.Warn("send failed",
				zap.String("user_id", user.ID), zap.String("reason", result.Error))
		}
		report.Outcomes = append(report.Outcomes, outcome)

		// Pacing. Every Nth successful send earns a session break; no delay
		// after the last user.
		if i < len(batch)-1 {
			if report.Sent > 0 && report.Sent%s.Config.SessionBreakEvery == 0 {
				d := randomDuration(s.Config.MinSessionBreak, s.Config.MaxSessionBreak)
				s.Logger.Info("session break", zap.Duration("for", d))
				s.sleep(ctx, d)
			} else {
				s.sleep(ctx, randomDuration(s.Config.MinDelay, s.Config.MaxDelay))
			}
		}

		if ctx.Err() != nil {
			s.Logger.Warn("batch interrupted", zap.Error(ctx.Err()))
			return
		}
	}
}

// generateSafe converts generator panics into errors so one bad user can
// never abort the batch.
func (s *BatchService) generateSafe(ctx context.Context, user model.CategorizedUser) (message string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	return s.Generator.Generate(ctx, user)
}

func (s *BatchService) markSent(userID string, category model.Category) {
	if err := s.Tracker.MarkSent(userID, category); err != nil {
		// The mark is what makes repeated runs idempotent; a persist
		// failure must be visible.
		s.Logger.Error("persisting sent tracker",
			zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *BatchService) selectSegment(users []model.CategorizedUser, opts RunOptions) *Pick {
	if opts.Category != nil {
		var unsent []model.CategorizedUser
		for _, u := range users {
			if u.Category == *opts.Category && !s.Tracker.Contains(u.ID) {
				unsent = append(unsent, u)
			}
		}
		if len(unsent) == 0 {
			return nil
		}
		return &Pick{Category: *opts.Category, Users: unsent}
	}
	return PickCategory(users, s.Tracker)
}

func (s *BatchService) finishRun(report *model.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = report
	if !report.DryRun {
		s.stats.TotalSent += report.Sent
		s.stats.TotalSkipped += report.Skipped
		s.stats.TotalFailed += report.Failed
		s.stats.BatchesRun++
	}
}

func (s *BatchService) alertAdmin(ctx context.Context, opts RunOptions, text string) {
	if opts.DryRun || s.Config.AdminPhone == "" {
		return
	}
	if result := s.Sender.Send(ctx, s.Config.AdminPhone, text); result.Status != whatsapp.StatusSent {
		s.Logger.Warn("admin alert not delivered", zap.String("status", result.Status))
	}
}

func (s *BatchService) forwardToAdmin(ctx context.Context, n, total int, user model.CategorizedUser, message string) {
	if s.Config.AdminPhone == "" {
		return
	}
	name := user.FirstName
	if name == "" {
		name = "Unknown"
	}
	fwd := fmt.Sprintf("[%d/%d] %s (%s):\n\n%s", n, total, name, user.PhoneNumber, message)
	s.Sender.Send(ctx, s.Config.AdminPhone, fwd)
}

func (s *BatchService) logSummary(users []model.CategorizedUser) {
	fields := make([]zap.Field, 0, len(model.AllCategories)+1)
	for cat, count := range Summarize(users) {
		fields = append(fields, zap.Int(string(cat), count))
	}
	fields = append(fields, zap.Int("total", len(users)))
	s.Logger.Info("category summary", fields...)
}

// Running reports whether a batch is currently executing.
func (s *BatchService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastRun returns the most recent run report, or nil.
func (s *BatchService) LastRun() *model.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Stats returns the cumulative counters for this process.
func (s *BatchService) Stats() model.CampaignStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ResetCampaign clears the sent tracker and the cumulative counters.
func (s *BatchService) ResetCampaign() error {
	if err := s.Tracker.Reset(); err != nil {
		return err
	}
	s.mu.Lock()
	s.stats = model.CampaignStats{}
	s.mu.Unlock()
	return nil
}

// Overview fetches and categorizes without sending anything, for the
// summary surfaces.
func (s *BatchService) Overview(ctx context.Context) ([]model.CategorizedUser, error) {
	users, err := s.UserRepo.FetchUsersWithDetails(ctx)
	if err != nil {
		return nil, appErrors.NewFetchUsers(err)
	}
	return CategorizeAll(users, s.now()), nil
}

func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
