package persist

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// JournalRecord is one chunk lifecycle entry.
type JournalRecord struct {
	Time    time.Time `json:"t"`
	Session uint64    `json:"session"`
	Kind    string    `json:"kind"` // join, leave, create, settle, evict, reset, violation
	X       int32     `json:"x,omitempty"`
	Y       int32     `json:"y,omitempty"`
	Start   int       `json:"start,omitempty"`
	Gen     uint64    `json:"gen,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Journal appends lifecycle records as zstd-compressed JSON lines, one file
// per UTC hour: <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst.
type Journal struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	pending int
}

func NewJournal(baseDir, prefix string) *Journal {
	return &Journal{baseDir: baseDir, prefix: prefix, now: time.Now}
}

// Append buffers one record. Records reach disk on Flush, rotation or Close.
func (j *Journal) Append(rec JournalRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if rec.Time.IsZero() {
		rec.Time = j.now()
	}
	hour := rec.Time.UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	j.pending++
	return nil
}

// Flush pushes buffered records through the compressor to the file and
// returns how many were written.
func (j *Journal) Flush() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w == nil || j.pending == 0 {
		return 0, nil
	}
	if err := j.w.Flush(); err != nil {
		return 0, fmt.Errorf("flush journal buffer: %w", err)
	}
	if err := j.enc.Flush(); err != nil {
		return 0, fmt.Errorf("flush journal encoder: %w", err)
	}
	n := j.pending
	j.pending = 0
	return n, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	path := j.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("create journal encoder: %w", err)
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 64*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err error
	if j.w != nil {
		err = j.w.Flush()
	}
	if j.enc != nil {
		if cerr := j.enc.Close(); err == nil {
			err = cerr
		}
		j.enc = nil
	}
	if j.f != nil {
		if cerr := j.f.Close(); err == nil {
			err = cerr
		}
		j.f = nil
	}
	j.w = nil
	j.curHour = ""
	j.pending = 0
	return err
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}

// ReadJournal decodes every record in one journal file.
func ReadJournal(path string) ([]JournalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeJournal(f)
}

// DecodeJournal decodes zstd-compressed JSON lines from r.
func DecodeJournal(r io.Reader) ([]JournalRecord, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open journal decoder: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var out []JournalRecord
	for sc.Scan() {
		var rec JournalRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("decode journal line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
