package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/persistence/snapshot"
	"planetgen/internal/terrain/layerbuf"
	"planetgen/internal/terrain/shape"
	"planetgen/internal/terrain/sphere"
	"planetgen/internal/tuning"
)

func main() {
	var (
		configPath   = flag.String("config", "./configs/planet.yaml", "planet config path (ignored with -snapshot)")
		snapPath     = flag.String("snapshot", "", "path to .snap.zst to bake instead of the config (optional)")
		resolution   = flag.Int("resolution", 0, "vertices per face edge (default: config/snapshot resolution)")
		outPath      = flag.String("out", "", "write the baked planet as a snapshot (optional)")
		name         = flag.String("name", "bake", "snapshot name used with -out")
		bufferPath   = flag.String("buffer", "", "write the packed layer buffer (optional)")
		verifyMirror = flag.Bool("verify_mirror", false, "re-evaluate every vertex through the packed layer buffer and compare")
	)
	flag.Parse()

	in, err := loadInput(*configPath, *snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	if *resolution > 0 {
		in.render.PlanetResolution = *resolution
	}

	surf, err := sphere.Sample(in.gen, in.render.PlanetResolution)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sample:", err)
		os.Exit(1)
	}
	fmt.Printf("baked layers=%d resolution=%d vertices=%d min=%.6f max=%.6f digest=%s\n",
		in.gen.LayerCount(), surf.Resolution, surf.VertexCount(), surf.Min, surf.Max, surf.Digest())

	if *verifyMirror || *bufferPath != "" {
		buf, err := layerbuf.Pack(in.gen)
		if err != nil {
			fmt.Fprintln(os.Stderr, "pack:", err)
			os.Exit(1)
		}
		if *verifyMirror {
			if err := verify(buf, surf); err != nil {
				fmt.Fprintln(os.Stderr, "verify mirror:", err)
				os.Exit(1)
			}
			fmt.Println("mirror ok")
		}
		if *bufferPath != "" {
			b, _ := buf.MarshalBinary()
			if err := os.MkdirAll(filepath.Dir(*bufferPath), 0o755); err != nil {
				fmt.Fprintln(os.Stderr, "write buffer:", err)
				os.Exit(1)
			}
			if err := os.WriteFile(*bufferPath, b, 0o644); err != nil {
				fmt.Fprintln(os.Stderr, "write buffer:", err)
				os.Exit(1)
			}
			fmt.Printf("wrote buffer %s (%d bytes)\n", *bufferPath, len(b))
		}
	}

	if *outPath != "" {
		state := snapshot.NewSaveState(*name, in.gen, in.colors, in.render)
		if err := snapshot.WriteSnapshot(*outPath, state); err != nil {
			fmt.Fprintln(os.Stderr, "write snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("wrote snapshot %s\n", *outPath)
	}
}

type input struct {
	gen    *shape.Generator
	colors snapshot.ColorsV1
	render snapshot.RenderV1
}

func loadInput(configPath, snapPath string) (input, error) {
	if p := strings.TrimSpace(snapPath); p != "" {
		snap, err := snapshot.ReadSnapshot(p)
		if err != nil {
			return input{}, err
		}
		g, err := snapshot.Import(snap.Shape)
		if err != nil {
			return input{}, err
		}
		return input{gen: g, colors: snap.Colors, render: snap.Render}, nil
	}
	cfg, err := tuning.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return input{}, err
		}
		cfg = tuning.Defaults()
	}
	g, err := cfg.Build()
	if err != nil {
		return input{}, err
	}
	return input{
		gen:    g,
		colors: snapshot.ColorsV1{PlanetColor: cfg.PlanetColor},
		render: snapshot.RenderV1{PlanetResolution: cfg.Resolution, LightEulerRot: cfg.LightEulerRot},
	}, nil
}

// verify checks the packed buffer reproduces every sampled elevation bit for bit.
func verify(buf *layerbuf.Buffer, surf *sphere.Surface) error {
	for fi := range surf.Faces {
		face := &surf.Faces[fi]
		pts := make([]mgl32.Vec3, 0, len(face.Elevations))
		for y := 0; y < surf.Resolution; y++ {
			for x := 0; x < surf.Resolution; x++ {
				pts = append(pts, face.UnitPoint(x, y, surf.Resolution))
			}
		}
		got, err := buf.Evaluate(pts)
		if err != nil {
			return err
		}
		for i, e := range face.Elevations {
			if got[i] != e {
				return fmt.Errorf("face %d vertex %d: mirror=%v live=%v", fi, i, got[i], e)
			}
		}
	}
	return nil
}
