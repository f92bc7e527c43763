package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"planetgen/internal/editor"
)

func readLines(t *testing.T, path string) []editor.RegenEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	var out []editor.RegenEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e editor.RegenEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "regen")
	now := time.Date(2026, 3, 4, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	_ = w.Write(editor.RegenEntry{Seq: 1})
	_ = w.Write(editor.RegenEntry{Seq: 2})
	now = now.Add(2 * time.Minute)
	_ = w.Write(editor.RegenEntry{Seq: 3})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	first := readLines(t, filepath.Join(dir, "regen-2026-03-04-10.jsonl.zst"))
	second := readLines(t, filepath.Join(dir, "regen-2026-03-04-11.jsonl.zst"))
	if len(first) != 2 || len(second) != 1 || second[0].Seq != 3 {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 2; i++ {
		w := NewJSONLZstdWriter(dir, "regen")
		w.now = func() time.Time { return now }
		_ = w.Write(editor.RegenEntry{Seq: uint64(i)})
		_ = w.Close()
	}
	got := readLines(t, filepath.Join(dir, "regen-2026-03-04-10.jsonl.zst"))
	if len(got) != 2 || got[1].Seq != 2 {
		t.Fatalf("entries=%+v", got)
	}
}

func TestRegenLogger_WritesUnderLogsDir(t *testing.T) {
	dataDir := t.TempDir()
	l := NewRegenLogger(dataDir)
	if err := l.WriteRegen(editor.RegenEntry{Seq: 9, Digest: "abc"}); err != nil {
		t.Fatalf("WriteRegen: %v", err)
	}
	_ = l.Close()
	matches, _ := filepath.Glob(filepath.Join(dataDir, "logs", "regen-*.jsonl.zst"))
	if len(matches) != 1 {
		t.Fatalf("files=%v", matches)
	}
	if got := readLines(t, matches[0]); len(got) != 1 || got[0].Digest != "abc" {
		t.Fatalf("entries=%+v", got)
	}
}
