package notify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileSender writes each message as receipt_<unixmillis>.html and .txt into
// Dir. It serves as a local mock mailbox.
type FileSender struct {
	Dir  string
	From string

	now func() time.Time
}

// NewFileSender creates a FileSender rooted at dir.
func NewFileSender(dir, from string) *FileSender {
	return &FileSender{Dir: dir, From: from, now: time.Now}
}

func (s *FileSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create mailbox dir: %w", err)
	}

	from := msg.From
	if from == "" {
		from = s.From
	}

	f, base, err := s.claim()
	if err != nil {
		return fmt.Errorf("create html: %w", err)
	}
	_, err = f.WriteString(msg.HTML)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	header := fmt.Sprintf("To: %s\nFrom: %s\nSubject: %s\n\n", msg.To, from, msg.Subject)
	if err := os.WriteFile(filepath.Join(s.Dir, base+".txt"), []byte(header+msg.Text), 0o644); err != nil {
		return fmt.Errorf("write text: %w", err)
	}

	log.Printf("receipt for %s written to %s", msg.To, filepath.Join(s.Dir, base+".html"))
	return nil
}

// claim creates the .html file under the first free stem for the current
// millisecond. O_EXCL makes the choice atomic, so concurrent sends never
// share a stem.
func (s *FileSender) claim() (*os.File, string, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	stem := "receipt_" + strconv.FormatInt(now().UnixMilli(), 10)
	name := stem
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(s.Dir, name+".html"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
		name = fmt.Sprintf("%s_%d", stem, i)
	}
}
