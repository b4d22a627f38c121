package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"landmass/internal/world"
)

// TickLogger appends one JSON line per tick to zstd-compressed files, one per
// UTC hour: <dir>/ticks-YYYY-MM-DD-HH.jsonl.zst.
type TickLogger struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
}

func NewTickLogger(dir string) *TickLogger {
	return &TickLogger{dir: dir, now: time.Now}
}

func (l *TickLogger) RecordTick(st world.TickStats) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if hour := l.now().UTC().Format("2006-01-02-15"); hour != l.hour {
		if err := l.rotate(hour); err != nil {
			return err
		}
	}
	return l.enc.Encode(st)
}

// Path returns the file ticks currently go to, or "" before the first tick.
func (l *TickLogger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hour == "" {
		return ""
	}
	return filepath.Join(l.dir, "ticks-"+l.hour+".jsonl.zst")
}

func (l *TickLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeFile()
}

func (l *TickLogger) rotate(hour string) error {
	if err := l.closeFile(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(l.dir, "ticks-"+hour+".jsonl.zst"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.zw, l.enc, l.hour = f, zw, json.NewEncoder(zw), hour
	return nil
}

// closeFile ends the zstd frame and closes the current file.
func (l *TickLogger) closeFile() error {
	if l.f == nil {
		return nil
	}
	err := l.zw.Close()
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f, l.zw, l.enc = nil, nil, nil
	return err
}
