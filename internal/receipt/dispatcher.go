package receipt

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tablepos/api/internal/notify"
)

const dispatchTimeout = 30 * time.Second

// Dispatcher renders receipts and sends them. Failures are logged and never
// reach the caller: a payment that committed stays committed.
type Dispatcher struct {
	sender notify.Sender
	from   string
	wg     sync.WaitGroup
}

func NewDispatcher(sender notify.Sender, from string) *Dispatcher {
	return &Dispatcher{sender: sender, from: from}
}

// Dispatch renders r and sends it to r.CustomerEmail. It reports whether the
// sender accepted the message.
func (d *Dispatcher) Dispatch(ctx context.Context, r Receipt) bool {
	if r.CustomerEmail == "" {
		return false
	}

	html, text, err := Render(r)
	if err != nil {
		log.Printf("ERROR: render receipt for order %s: %v", r.OrderID, err)
		return false
	}

	err = d.sender.Send(ctx, notify.Message{
		To:      r.CustomerEmail,
		From:    d.from,
		Subject: r.Subject(),
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		log.Printf("ERROR: send receipt for order %s to %s: %v", r.OrderID, r.CustomerEmail, err)
		return false
	}
	return true
}

// DispatchAsync sends r in the background on a context detached from the
// request. It reports whether a send was started.
func (d *Dispatcher) DispatchAsync(r Receipt) bool {
	if r.CustomerEmail == "" {
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		d.Dispatch(ctx, r)
	}()
	return true
}

// Wait blocks until every background send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
