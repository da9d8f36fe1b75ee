// cmd/reactivate/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riftfi/reactivation-backend/internal/config"
	"github.com/riftfi/reactivation-backend/internal/db"
	"github.com/riftfi/reactivation-backend/internal/generator"
	"github.com/riftfi/reactivation-backend/internal/model"
	"github.com/riftfi/reactivation-backend/internal/repository"
	"github.com/riftfi/reactivation-backend/internal/service"
	"github.com/riftfi/reactivation-backend/internal/store"
	"github.com/riftfi/reactivation-backend/internal/whatsapp"
)

var (
	flagCategory string
	flagDryRun   bool
	flagLimit    int
	flagSummary  bool
)

func main() {
	root := &cobra.Command{
		Use:   "reactivate",
		Short: "Run one WhatsApp reactivation batch from the terminal",
		RunE:  run,
	}
	root.Flags().StringVarP(&flagCategory, "category", "c", "", "user category to target")
	root.Flags().BoolVarP(&flagDryRun, "dry-run", "d", false, "generate messages without sending them")
	root.Flags().IntVarP(&flagLimit, "limit", "l", 0, "max number of messages to send")
	root.Flags().BoolVarP(&flagSummary, "summary", "s", false, "only show category summary, do not send")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close()

	userRepo := &repository.UserRepository{DB: conn}
	tracker := store.LoadSentTracker(filepath.Join(cfg.DataDir, "sent_users.json"), logger)
	sendLog := store.NewSendLog(filepath.Join(cfg.DataDir, "send_log.json"), logger)

	ctx := context.Background()

	if flagSummary {
		users, err := userRepo.FetchUsersWithDetails(ctx)
		if err != nil {
			return err
		}
		categorized := service.CategorizeAll(users, time.Now())
		printSummary(categorized)
		return nil
	}

	if flagCategory == "" {
		fmt.Println("Specify a --category to target. Use --summary to see counts.")
		fmt.Println("Example: reactivate --category NO_KYC --dry-run")
		return nil
	}
	if !model.ValidCategory(flagCategory) {
		return fmt.Errorf("unknown category %q", flagCategory)
	}
	category := model.Category(flagCategory)

	gen := generator.NewOpenAIGenerator(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)

	var sender whatsapp.Sender = noopSender{}
	if !flagDryRun {
		client := whatsapp.NewClient(cfg.WhatsApp.DataDir, cfg.WhatsApp.Headless, logger)
		if err := client.Init(); err != nil {
			return fmt.Errorf("starting whatsapp client: %w", err)
		}
		defer client.Close()

		fmt.Println("Waiting for WhatsApp session (scan the QR from a previous pairing if needed)...")
		if !waitReady(client, 2*time.Minute) {
			return fmt.Errorf("whatsapp session not ready; pair via the server's /qr endpoint first")
		}
		sender = client
	}

	batch := service.NewBatchService(
		userRepo,
		gen,
		sender,
		tracker,
		sendLog,
		nil,
		service.BatchConfig{
			AdminPhone:        cfg.Campaign.AdminPhone,
			DailyCap:          cfg.Campaign.DailyCap,
			SessionBreakEvery: cfg.Campaign.SessionBreakEvery,
			MinDelay:          cfg.Campaign.MinDelay,
			MaxDelay:          cfg.Campaign.MaxDelay,
			MinSessionBreak:   cfg.Campaign.MinSessionBreak,
			MaxSessionBreak:   cfg.Campaign.MaxSessionBreak,
		},
		logger,
	)

	report, err := batch.RunBatch(ctx, service.RunOptions{
		Category: &category,
		Limit:    flagLimit,
		DryRun:   flagDryRun,
	})
	if err != nil {
		return err
	}

	if report.Complete {
		fmt.Printf("No unsent users in %s. Nothing to do.\n", category)
		return nil
	}
	fmt.Printf("%s: %d sent, %d skipped, %d failed (%.1f min)\n",
		report.Category, report.Sent, report.Skipped, report.Failed, report.Duration.Minutes())
	return nil
}

func printSummary(users []model.CategorizedUser) {
	fmt.Println("\n--- User Category Summary ---")
	summary := service.Summarize(users)
	for _, cat := range model.AllCategories {
		fmt.Printf("  %s: %d\n", cat, summary[cat])
	}
	fmt.Printf("  TOTAL: %d\n\n", len(users))
}

func waitReady(client *whatsapp.Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client.Ready() {
			return true
		}
		time.Sleep(2 * time.Second)
	}
	return false
}

// noopSender backs dry runs, which never reach the send path.
type noopSender struct{}

func (noopSender) Send(ctx context.Context, phone, message string) whatsapp.SendResult {
	return whatsapp.SendResult{Phone: phone, Status: whatsapp.StatusSkipped, Error: "dry run", Timestamp: time.Now().UTC()}
}

func (noopSender) Ready() bool { return true }
