package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestFileSender_WritesHTMLAndText(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSender(dir, "pos@example.com")
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }

	err := s.Send(context.Background(), Message{
		To:      "guest@example.com",
		Subject: "Your receipt",
		HTML:    "<p>thanks</p>",
		Text:    "thanks",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	html, err := os.ReadFile(filepath.Join(dir, "receipt_1700000000000.html"))
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if string(html) != "<p>thanks</p>" {
		t.Errorf("html: got %q", html)
	}

	text, err := os.ReadFile(filepath.Join(dir, "receipt_1700000000000.txt"))
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	if !strings.Contains(string(text), "To: guest@example.com") || !strings.HasSuffix(string(text), "thanks") {
		t.Errorf("text: got %q", text)
	}
}

func TestFileSender_SameMillisecondDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSender(dir, "")
	s.now = func() time.Time { return time.UnixMilli(42) }

	for i := 0; i < 2; i++ {
		if err := s.Send(context.Background(), Message{To: "a@b.c", HTML: "x"}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.html"))
	if len(matches) != 2 {
		t.Errorf("html files: got %d, want 2", len(matches))
	}
}

func TestFileSender_ConcurrentSendsKeepEveryReceipt(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSender(dir, "")
	s.now = func() time.Time { return time.UnixMilli(42) }

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Send(context.Background(), Message{To: "a@b.c", HTML: fmt.Sprintf("receipt-%d", i)})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.html"))
	if len(matches) != n {
		t.Fatalf("html files: got %d, want %d", len(matches), n)
	}
	seen := make(map[string]bool)
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			t.Fatalf("read %s: %v", m, err)
		}
		seen[string(b)] = true
	}
	if len(seen) != n {
		t.Errorf("distinct receipts: got %d, want %d", len(seen), n)
	}
}

func TestFileSender_NoRecipient(t *testing.T) {
	s := NewFileSender(t.TempDir(), "")
	if err := s.Send(context.Background(), Message{}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

type mockPublisher struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
}

func (m *mockPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	m.exchange, m.key, m.msg = exchange, key, msg
	return m.err
}

func TestAMQPSender_Publishes(t *testing.T) {
	pub := &mockPublisher{}
	s := NewAMQPSender(pub, "receipts", "pos@example.com")

	if err := s.Send(context.Background(), Message{To: "guest@example.com", Subject: "Receipt"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if pub.key != "receipts" || pub.exchange != "" {
		t.Errorf("route: got %q/%q, want default exchange to receipts", pub.exchange, pub.key)
	}
	if pub.msg.DeliveryMode != amqp091.Persistent {
		t.Errorf("delivery mode: got %d, want persistent", pub.msg.DeliveryMode)
	}

	var got Message
	if err := json.Unmarshal(pub.msg.Body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.From != "pos@example.com" {
		t.Errorf("from: got %q, want default sender", got.From)
	}
}

func TestAMQPSender_PublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("channel closed")}
	s := NewAMQPSender(pub, "receipts", "")

	if err := s.Send(context.Background(), Message{To: "a@b.c"}); err == nil {
		t.Fatal("expected publish error")
	}
}
