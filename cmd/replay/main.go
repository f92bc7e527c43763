package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"planetgen/internal/editor"
	"planetgen/internal/persistence/snapshot"
	"planetgen/internal/terrain/sphere"
)

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to .snap.zst")
		logsDir  = flag.String("logs", "", "logs dir containing regen-*.jsonl.zst (optional)")
		seq      = flag.Uint64("seq", 0, "require the match to be this regen seq (optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	g, err := snapshot.Import(snap.Shape)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}
	surf, err := sphere.Sample(g, snap.Render.PlanetResolution)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sample:", err)
		os.Exit(1)
	}
	digest := surf.Digest()

	fmt.Printf("snapshot v%d name=%q saved_at=%s layers=%d radius=%g sea_level=%g resolution=%d min=%.6f max=%.6f digest=%s\n",
		snap.Header.Version, snap.Header.Name, snap.Header.SavedAt, g.LayerCount(), g.Radius, g.SeaLevel,
		surf.Resolution, surf.Min, surf.Max, digest)

	if *logsDir == "" {
		return
	}

	files, err := listRegenFiles(*logsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list logs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no regen files found in", *logsDir)
		os.Exit(1)
	}

	var scanned int
	var matches []editor.RegenEntry
	for _, path := range files {
		err := scanRegenFile(path, func(e editor.RegenEntry) {
			scanned++
			if e.Digest == digest && (*seq == 0 || e.Seq == *seq) {
				matches = append(matches, e)
			}
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
	}
	if len(matches) == 0 {
		fmt.Fprintf(os.Stderr, "replay mismatch: digest %s not found in %d regen entries\n", digest, scanned)
		os.Exit(1)
	}
	for _, m := range matches {
		fmt.Printf("match seq=%d time=%s cause=%s\n", m.Seq, m.Time, m.Cause)
	}
	fmt.Printf("replay ok: scanned=%d matches=%d\n", scanned, len(matches))
}

func listRegenFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "regen-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func scanRegenFile(path string, fn func(editor.RegenEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry editor.RegenEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		fn(entry)
	}
	return sc.Err()
}
