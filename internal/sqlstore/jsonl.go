package sqlstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

// JSONLFile returns the export file name for a table.
func JSONLFile(table string) string {
	return table + ".jsonl"
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Export writes every row of every table to <dir>/<table>.jsonl, one JSON
// object per line. It returns the number of rows written per table.
func (b *Backend) Export(ctx context.Context, dir string) (map[string]int, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	counts := make(map[string]int, len(types.StandardTableNames))
	for _, name := range types.StandardTableNames {
		def := tableDefs[name]
		rows, err := b.selectRows(ctx, db, def, nil)
		if err != nil {
			return counts, err
		}
		records := make([]json.RawMessage, 0, len(rows))
		for _, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return counts, fmt.Errorf("encoding %s row: %w", name, err)
			}
			records = append(records, data)
		}
		if err := writeJSONL(filepath.Join(dir, JSONLFile(name)), records); err != nil {
			return counts, err
		}
		counts[name] = len(records)
	}
	return counts, nil
}

// Import loads <dir>/<table>.jsonl files written by Export, parents first so
// foreign keys hold. Missing files are skipped, as are rows whose key is
// already stored. It returns the number of rows inserted per table.
func (b *Backend) Import(ctx context.Context, dir string) (map[string]int, error) {
	if _, err := b.handle(); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(types.StandardTableNames))
	for _, name := range types.StandardTableNames {
		def := tableDefs[name]
		records, err := readJSONL(filepath.Join(dir, JSONLFile(name)))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return counts, err
		}
		table := &Table{def: def, backend: b}
		for _, rec := range records {
			row := def.newRow()
			if err := json.Unmarshal(rec, row); err != nil {
				continue
			}
			_, err := table.Insert(ctx, row)
			if errors.Is(err, types.ErrDuplicate) {
				continue
			}
			if err != nil {
				return counts, fmt.Errorf("importing %s: %w", name, err)
			}
			counts[name]++
		}
	}
	return counts, nil
}
