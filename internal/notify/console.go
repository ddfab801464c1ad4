package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleSender prints notifications to a writer, stdout by default. It is
// always available and needs no configuration, so it is the fallback channel
// when no webhook or bot token is set.
type ConsoleSender struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsoleSender creates a ConsoleSender writing to stdout.
func NewConsoleSender() *ConsoleSender {
	return &ConsoleSender{out: os.Stdout, now: time.Now}
}

// NewConsoleSenderTo creates a ConsoleSender writing to the given writer.
func NewConsoleSenderTo(out io.Writer) *ConsoleSender {
	return &ConsoleSender{out: out, now: time.Now}
}

// Send prints the notification with a timestamp.
func (c *ConsoleSender) Send(_ context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UTC().Format("2006-01-02 15:04:05")
	if _, err := fmt.Fprintf(c.out, "[%s] %s\n%s\n", ts, title, message); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (c *ConsoleSender) Name() string {
	return "console"
}
