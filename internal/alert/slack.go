// Package alert delivers critical-finding notifications to Slack via an
// incoming webhook. Delivery failures are reported to the caller for
// logging but are never fatal to a detection run.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/leakage-detector/internal/domain"
)

const maxHighlighted = 5

// Notifier posts run alerts to a Slack incoming webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// NewNotifier registers the webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

type payload struct {
	Text string `json:"text"`
}

// NotifyCritical posts a headline message when the scored set contains
// Critical findings. With none present it sends nothing and returns nil.
func (n *Notifier) NotifyCritical(ctx context.Context, summary domain.ExecutiveSummary, scored []domain.ScoredFlag) error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack notifier misconfigured")
	}

	var critical []domain.ScoredFlag
	for _, f := range scored {
		if f.Severity == domain.SeverityCritical {
			critical = append(critical, f)
		}
	}
	if len(critical) == 0 {
		return nil
	}

	body, err := json.Marshal(payload{Text: buildMessage(summary, critical)})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack error: %s", resp.Status)
	}
	return nil
}

func buildMessage(summary domain.ExecutiveSummary, critical []domain.ScoredFlag) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, ":rotating_light: *Procurement leakage alert*: %d Critical finding(s)\n", len(critical))
	fmt.Fprintf(&b, "Estimated leakage: £%.2f across %d flags (%d transactions analysed, %s to %s)\n",
		summary.HeadlineGBP, summary.TotalFlags, summary.TotalTransactionsAnalysed,
		summary.DateRange.Start.Format("2006-01-02"), summary.DateRange.End.Format("2006-01-02"))

	shown := critical
	if len(shown) > maxHighlighted {
		shown = shown[:maxHighlighted]
	}
	for _, f := range shown {
		fmt.Fprintf(&b, "• %s | %s | £%.2f | %s\n",
			f.Transaction.TransactionID, f.Transaction.SupplierName, f.LeakageGBP, f.Detail)
	}
	if rest := len(critical) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "…and %d more Critical finding(s) in the full report.\n", rest)
	}
	return b.String()
}
