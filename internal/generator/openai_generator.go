package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/riftfi/reactivation-backend/internal/model"
)

const systemPrompt = `You are a friendly, casual WhatsApp outreach assistant for Rift, a fintech app in Kenya.

Rift's key benefits:
- Save in US dollars — protects your money from KES devaluation
- Earn 10% APY on dollar savings — your money grows
- Privacy protected — no personal details revealed when transacting
- Pay anywhere — tills, paybills, or send money via M-Pesa
- Passive income — earn 0.3% of every transaction your referrals make, for as long as you're both active
- Weekly reward pool — transact $50/week for a chance to win $10 every Sunday

Rules for writing messages:
- Keep it SHORT. Max 3-4 sentences. This is WhatsApp, not email.
- Sound like a real person, not a company. Use casual Kenyan English. Light slang is okay.
- Use the person's first name.
- Do NOT use bullet points or lists.
- Do NOT say "Hey [Name]!" — vary your greetings.
- Include ONE clear call to action.
- Do NOT use markdown formatting.
- Lightly use emojis, max 1-2 per message.
- Never mention that this message was AI-generated.
- When directing users to take any action (KYC, deposit, referrals, etc.), always include this link: https://wallet.riftfi.xyz
- Do NOT make up or promise any links other than https://wallet.riftfi.xyz — this is the only app link.`

var categoryInstructions = map[model.Category]string{
	model.CategoryNoKYC:               `This user signed up but hasn't completed KYC. Gently nudge them to finish it. Mention it only takes 2 minutes. Emphasize they're missing out on saving in dollars and earning 10% APY. Make it feel like a friendly reminder, not pressure.`,
	model.CategoryKYCNoTransactions:   `This user completed KYC but hasn't transacted yet. Encourage them to make their first deposit. Mention they can start with as little as $5. Highlight that KES is losing value and their money is safer in dollars on Rift.`,
	model.CategoryKYCLowActivity:      `This user has made a few transactions. Encourage consistency. Mention the weekly reward pool ($10 every Sunday if you transact $50/week). Make them feel like they're almost there.`,
	model.CategoryActiveNoReferrals:   `This user is active but hasn't referred anyone. Push the referral program hard. Mention they can earn 0.3% on everything their referrals transact. Frame it as free passive income they're leaving on the table.`,
	model.CategoryActiveWithReferrals: `This user is active and has referred people. Celebrate their earnings so far. Encourage them to refer more. Mention that the more people they refer, the more passive income they earn. Make them feel like a VIP.`,
	model.CategoryDormant:             `This user was active but hasn't transacted in over 30 days. Re-engage them. Mention how much KES has devalued recently. Remind them their Rift wallet is waiting. Keep it light and not guilt-trippy.`,
}

// OpenAIGenerator generates messages through the OpenAI chat-completion API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAIGenerator(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

// Generate builds the per-user prompt and requests one message. Errors
// surface to the caller; there is no retry here.
func (g *OpenAIGenerator) Generate(ctx context.Context, user model.CategorizedUser) (string, error) {
	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: buildUserPrompt(user),
				},
			},
			MaxTokens:   g.maxTokens,
			Temperature: float32(g.temperature),
		},
	)
	if err != nil {
		g.logger.Error("chat completion failed",
			zap.String("user_id", user.ID), zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildUserPrompt(user model.CategorizedUser) string {
	name := user.FirstName
	if name == "" {
		name = "there"
	}
	lastActive := "Never"
	if user.LastTxn != nil {
		lastActive = user.LastTxn.Format("Jan 2, 2006")
	}

	return fmt.Sprintf(`Generate a WhatsApp message for this Rift user:
Name: %s
Category: %s
Transactions: %d (%d deposits, %d withdrawals)
Total volume: KES %s
Last active: %s
Referrals: %d
Referral earnings: KES %s
%s`,
		name,
		user.Category,
		user.TotalTxns,
		user.OnrampCount,
		user.OfframpCount,
		user.TotalVolume().StringFixed(2),
		lastActive,
		user.ReferralCount,
		user.ReferralEarningsKES.StringFixed(2),
		categoryInstructions[user.Category],
	)
}

var _ Generator = (*OpenAIGenerator)(nil)
