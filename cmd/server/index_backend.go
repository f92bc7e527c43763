package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"planetgen/internal/editor"
	"planetgen/internal/persistence/indexdb"
	"planetgen/internal/persistence/snapshot"
)

type runtimeIndex interface {
	editor.RegenSink
	editor.SaveIndex
	Close() error
	List(ctx context.Context, name string, limit int) ([]indexdb.SaveRow, error)
	Latest(ctx context.Context) (indexdb.SaveRow, bool, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("PG_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "planet.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported PG_INDEX_BACKEND: %s", backend)
	}
}

// multiRegenSink fans regeneration records out to the JSONL log and the index.
type multiRegenSink struct {
	a editor.RegenSink
	b editor.RegenSink
}

func (m multiRegenSink) WriteRegen(e editor.RegenEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteRegen(e)
	}
	if m.b != nil {
		_ = m.b.WriteRegen(e)
	}
	return err
}

// latestSave picks the snapshot to resume from: the index when available,
// otherwise the newest file in the saves directory.
func latestSave(ctx context.Context, idx runtimeIndex, saveDir string) string {
	if idx != nil {
		if row, ok, err := idx.Latest(ctx); err == nil && ok {
			if _, err := os.Stat(row.Path); err == nil {
				return row.Path
			}
		}
	}
	ents, err := os.ReadDir(saveDir)
	if err != nil {
		return ""
	}
	var best string
	var bestMod int64
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			bestMod = mod
			best = filepath.Join(saveDir, e.Name())
		}
	}
	return best
}

func loadSave(path string) (snapshot.SaveStateV1, error) {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return snapshot.SaveStateV1{}, err
	}
	return snap, nil
}
