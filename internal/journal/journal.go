// Package journal appends committed ledger operations to
// zstd-compressed JSONL files with hourly rotation. The sqlite store
// is the source of truth; the journal is the operator's grep-able
// history.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"paulette.land/internal/registry"
)

type Writer struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

// RecordOp implements registry.AuditSink. The registry has already
// committed; a journal failure is logged by losing the line, never by
// failing the operation.
func (w *Writer) RecordOp(rec registry.OpRecord) {
	_ = w.Write(rec)
}

func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour)
	f, err := os.OpenFile(filepath.Join(w.baseDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriter(enc)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	if w.f == nil {
		return nil
	}
	var first error
	if err := w.w.Flush(); err != nil && first == nil {
		first = err
	}
	if err := w.enc.Close(); err != nil && first == nil {
		first = err
	}
	if err := w.f.Close(); err != nil && first == nil {
		first = err
	}
	w.f = nil
	w.enc = nil
	w.w = nil
	w.curHour = ""
	return first
}
