package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramAPI is the Telegram Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig holds configuration for Telegram alerter.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Timeout  time.Duration
	APIBase  string // Defaults to DefaultTelegramAPI
}

// TelegramAlerter sends alerts via Telegram.
type TelegramAlerter struct {
	cfg    TelegramConfig
	client *http.Client
	now    func() time.Time
}

// NewTelegramAlerter creates a new Telegram alerter.
func NewTelegramAlerter(cfg TelegramConfig) *TelegramAlerter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTelegramAPI
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	return &TelegramAlerter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// Name returns the name of the alerter.
func (t *TelegramAlerter) Name() string {
	return "telegram"
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Alert sends an alert via Telegram.
func (t *TelegramAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	return t.send(ctx, t.formatMessage(severity, message, fields...))
}

// SendExecutionSummary sends a formatted report of one parent order.
func (t *TelegramAlerter) SendExecutionSummary(ctx context.Context, s ExecutionSummary) error {
	return t.send(ctx, t.formatExecutionSummary(s))
}

func (t *TelegramAlerter) send(ctx context.Context, text string) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:    t.cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIBase, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var telegramResp telegramResponse
	if err := json.Unmarshal(respBody, &telegramResp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if !telegramResp.OK {
		return fmt.Errorf("telegram API error: %s", telegramResp.Description)
	}

	return nil
}

func (t *TelegramAlerter) formatMessage(severity Severity, message string, fields ...any) string {
	text := fmt.Sprintf("%s <b>[%s]</b>\n%s", severity.Emoji(), severity.String(), html.EscapeString(message))

	if details := FormatFields(fields...); details != "" {
		text += "\n\n<b>Details:</b>\n" + html.EscapeString(details)
	}

	text += fmt.Sprintf("\n\n<i>%s</i>", t.now().Format("2006-01-02 15:04:05 MST"))
	return text
}

func (t *TelegramAlerter) formatExecutionSummary(s ExecutionSummary) string {
	status := "✅ Completed"
	if s.Degraded {
		status = "⚠️ Degraded"
	}

	text := fmt.Sprintf(`📊 <b>Execution Summary</b>
<b>%s %s %d</b> via %s
<b>Parent:</b> %s

<b>Fills:</b>
• Filled: %d / %d (%s%%)
• Avg Price: %s
• Child Orders: %d

<b>Cost:</b>
• Benchmark: %s
• Cost/Share: %s
• Liquidated: %d (penalty %s)

<b>Status:</b> %s
<b>Elapsed:</b> %s`,
		html.EscapeString(strings.ToUpper(s.Side)),
		html.EscapeString(s.Symbol),
		s.TargetQty,
		html.EscapeString(s.Strategy),
		html.EscapeString(s.ParentID),
		s.FilledQty,
		s.TargetQty,
		s.FillRatePct.StringFixed(1),
		s.AvgPrice.StringFixed(4),
		s.ChildOrders,
		s.BenchmarkPrice.StringFixed(4),
		s.CostPerShare.StringFixed(4),
		s.PenaltyQty,
		s.Penalty.StringFixed(3),
		status,
		s.Elapsed.Round(time.Millisecond),
	)

	if s.Err != "" {
		text += "\n<b>Error:</b> " + html.EscapeString(s.Err)
	}
	return text
}
