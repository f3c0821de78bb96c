package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketing-brain/internal/brain"
)

// Notification 封装一次周期的告警上下文。
type Notification struct {
	OrganizationID string
	AsOf           time.Time
	Level          brain.RiskLevel
	Score          int
	OpportunityUSD decimal.Decimal
	Risks          []brain.RiskSummary
	Headlines      []string
}

// NewNotification summarises a cycle for alerting.
func NewNotification(result brain.CycleResult) Notification {
	headlines := make([]string, 0, len(result.Curiosity.TopActions))
	for _, action := range result.Curiosity.TopActions {
		headlines = append(headlines, action.Renderings.Executive)
	}
	return Notification{
		OrganizationID: result.OrganizationID,
		AsOf:           result.Timestamp,
		Level:          result.Oracle.GlobalRiskLevel,
		Score:          result.Oracle.GlobalRiskScore,
		OpportunityUSD: decimal.NewFromFloat(result.Curiosity.TotalOpportunityUSD).Round(2),
		Risks:          result.Oracle.LegacyRisks,
		Headlines:      headlines,
	}
}

// ShouldAlert reports whether level reaches the configured minimum.
func ShouldAlert(level, minLevel brain.RiskLevel) bool {
	return level.Rank() >= minLevel.Rank() && level.Rank() > brain.RiskGreen.Rank()
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().
		Str("organization_id", note.OrganizationID).
		Time("as_of", note.AsOf).
		Str("level", string(note.Level)).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Marketing Brain] %s risk\n", strings.ToUpper(string(note.Level))))
	builder.WriteString(fmt.Sprintf("Organization: %s\n", note.OrganizationID))
	builder.WriteString(fmt.Sprintf("Cycle: %s UTC\n", note.AsOf.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Risk score: %d/100\n", note.Score))
	builder.WriteString(fmt.Sprintf("Opportunity: $%s\n", note.OpportunityUSD.StringFixed(2)))
	if len(note.Risks) > 0 {
		builder.WriteString("Risks:\n")
		for _, risk := range note.Risks {
			builder.WriteString(fmt.Sprintf("- [%s] %s\n", risk.Severity, risk.Message))
		}
	}
	if len(note.Headlines) > 0 {
		builder.WriteString("Top actions:\n")
		for i, headline := range note.Headlines {
			builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, headline))
		}
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
