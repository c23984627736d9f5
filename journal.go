package costbasis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// maxLineSize bounds a journal line, a sell across many lots makes long lines.
const maxLineSize = 4 << 20

// Journal is a Store appending one JSON line per entry to a file. The file
// stays human readable and diff friendly.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal returns a journal backed by path. The file is created on the
// first commit.
func NewJournal(path string) *Journal { return &Journal{path: path} }

// Path returns the journal file.
func (j *Journal) Path() string { return j.path }

// Commit appends e to the journal file.
func (j *Journal) Commit(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open journal %q for writing: %w", j.path, err)
	}
	if err := EncodeEntry(f, e); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("cannot sync journal %q: %w", j.path, err)
	}
	return f.Close()
}

// Load replays the journal. A missing file is an empty journal.
func (j *Journal) Load(ctx context.Context) ([]State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open journal %q for reading: %w", j.path, err)
	}
	defer f.Close()

	entries, err := DecodeEntries(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read journal %q: %w", j.path, err)
	}
	return replay(entries), nil
}

// EncodeEntry writes e as a single JSON line.
func EncodeEntry(w io.Writer, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s entry of %s: %w", e.Kind, e.Key, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write %s entry of %s: %w", e.Kind, e.Key, err)
	}
	return nil
}

// DecodeEntries reads JSONL entries from r. Empty lines are skipped.
func DecodeEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	n := 0
	for scanner.Scan() {
		n++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		switch e.Kind {
		case EntryBuy, EntrySell, EntryAction:
		default:
			return nil, fmt.Errorf("line %d: entry kind %q: %w", n, e.Kind, ErrUnknownKind)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
