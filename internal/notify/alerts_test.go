package notify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

type captureSender struct {
	titles   []string
	messages []string
}

func (c *captureSender) Send(_ context.Context, title, message string) error {
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, []string{EventExit}, discardLogger())

	if err := n.Notify(context.Background(), EventSpike, "spike", "msg"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.titles) != 0 {
		t.Fatalf("filtered event was delivered: %v", sender.titles)
	}

	if err := n.Notify(context.Background(), EventExit, "exit", "msg"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.titles) != 1 || sender.titles[0] != "exit" {
		t.Fatalf("allowed event not delivered: %v", sender.titles)
	}
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, nil, discardLogger())

	if err := n.Notify(context.Background(), EventWhale, "whale", "msg"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.titles) != 1 {
		t.Fatalf("event with empty filter not delivered")
	}
}

func TestSpikeAlertRendersDirectionSign(t *testing.T) {
	sender := &captureSender{}
	a := NewAlerts(NewNotifier([]Sender{sender}, nil, discardLogger()))

	result := domain.SpikeResult{
		Question: "Will it rain tomorrow?",
		Spikes: []domain.Spike{{
			Type:          domain.SpikeTypePrice,
			Direction:     domain.SpikeDirectionDown,
			Outcome:       "Yes",
			Previous:      0.60,
			Current:       0.57,
			ChangePercent: 5.0,
		}},
	}
	if err := a.SpikeDetected(context.Background(), result); err != nil {
		t.Fatalf("SpikeDetected: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("messages = %v, want 1", sender.messages)
	}
	if !strings.Contains(sender.messages[0], "-5.00%") {
		t.Errorf("down spike should render a negative percent, got %q", sender.messages[0])
	}
}

func TestConsoleSenderWritesTimestampedLine(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleSenderTo(&buf)

	if err := c.Send(context.Background(), "Spike: market", "up 4%"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Spike: market") || !strings.Contains(out, "up 4%") {
		t.Errorf("console output missing content: %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	long := strings.Repeat("x", 100)
	got := truncate(long, 20)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate long = %q (len %d)", got, len(got))
	}
}

func TestShortWallet(t *testing.T) {
	w := "0x1234567890abcdef1234567890abcdef12345678"
	got := shortWallet(w)
	if got != "0x1234...5678" {
		t.Errorf("shortWallet = %q", got)
	}
}
