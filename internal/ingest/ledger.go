package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Ledger records the names of files that were indexed, one per line
type Ledger struct {
	path string
}

// NewLedger creates a ledger backed by the file at path
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Processed returns the recorded file names. A missing ledger is empty.
func (l *Ledger) Processed() (map[string]struct{}, error) {
	processed := make(map[string]struct{})

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return processed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			processed[name] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	return processed, nil
}

// Record appends a file name to the ledger
func (l *Ledger) Record(name string) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}

	if _, err := fmt.Fprintln(f, name); err != nil {
		f.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return f.Close()
}

// Forget removes a file name from the ledger so the next run indexes it again
func (l *Ledger) Forget(name string) error {
	processed, err := l.Processed()
	if err != nil {
		return err
	}
	if _, ok := processed[name]; !ok {
		return nil
	}
	delete(processed, name)

	names := make([]string, 0, len(processed))
	for n := range processed {
		names = append(names, n)
	}
	sort.Strings(names)

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*")
	if err != nil {
		return fmt.Errorf("failed to rewrite ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to rewrite ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to rewrite ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("failed to rewrite ledger: %w", err)
	}
	return nil
}
