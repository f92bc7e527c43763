// Package editor owns the live shape generator. All structural edits and
// regenerations run on one goroutine; other goroutines talk to it through
// request channels.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"planetgen/internal/persistence/snapshot"
	"planetgen/internal/protocol"
	"planetgen/internal/terrain/shape"
	"planetgen/internal/terrain/sphere"
)

// RegenEntry describes one regeneration pass.
type RegenEntry struct {
	Time       string  `json:"time"`
	Seq        uint64  `json:"seq"`
	Cause      string  `json:"cause"`
	Resolution int     `json:"resolution"`
	Layers     int     `json:"layers"`
	Min        float32 `json:"min"`
	Max        float32 `json:"max"`
	Digest     string  `json:"digest"`
	DurationMS int64   `json:"duration_ms"`
}

type RegenSink interface {
	WriteRegen(RegenEntry) error
}

type SaveIndex interface {
	RecordSave(path string, state snapshot.SaveStateV1, regen RegenEntry)
}

type Config struct {
	Generator *shape.Generator
	Colors    snapshot.ColorsV1
	Render    snapshot.RenderV1

	SaveDir string
	Sink    RegenSink
	Index   SaveIndex
	Logger  *log.Logger
}

// EditError carries a wire error code for a rejected request.
type EditError struct {
	Code string
	Err  error
}

func (e *EditError) Error() string { return e.Err.Error() }
func (e *EditError) Unwrap() error { return e.Err }

func badRequest(format string, args ...any) *EditError {
	return &EditError{Code: protocol.ErrBadRequest, Err: fmt.Errorf(format, args...)}
}

type editReq struct {
	ops  []protocol.EditOp
	resp chan editResp
}

type editResp struct {
	regen RegenEntry
	err   error
}

type saveReq struct {
	name string
	resp chan saveResp
}

type saveResp struct {
	path string
	err  error
}

type stateReq struct {
	resp chan stateResp
}

type stateResp struct {
	state protocol.PlanetState
	regen RegenEntry
}

type Service struct {
	gen    *shape.Generator
	colors snapshot.ColorsV1
	render snapshot.RenderV1

	saveDir string
	sink    RegenSink
	index   SaveIndex
	log     *log.Logger

	seq  uint64
	last RegenEntry

	edit  chan editReq
	save  chan saveReq
	state chan stateReq
}

// New validates the initial configuration and performs the first
// regeneration so State always has a surface to report.
func New(cfg Config) (*Service, error) {
	if cfg.Generator == nil {
		return nil, errors.New("editor: nil generator")
	}
	if cfg.Render.PlanetResolution == 0 {
		cfg.Render.PlanetResolution = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[editor] ", log.LstdFlags)
	}
	s := &Service{
		gen:     cfg.Generator.Clone(),
		colors:  cfg.Colors,
		render:  cfg.Render,
		saveDir: cfg.SaveDir,
		sink:    cfg.Sink,
		index:   cfg.Index,
		log:     logger,
		edit:    make(chan editReq, 16),
		save:    make(chan saveReq, 4),
		state:   make(chan stateReq, 16),
	}
	if _, err := s.regenerate("init"); err != nil {
		return nil, err
	}
	return s, nil
}

// Run serves requests until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.edit:
			regen, err := s.applyEdit(req.ops)
			req.resp <- editResp{regen: regen, err: err}
		case req := <-s.save:
			path, err := s.saveNow(req.name)
			req.resp <- saveResp{path: path, err: err}
		case req := <-s.state:
			req.resp <- stateResp{state: s.planetState(), regen: s.last}
		}
	}
}

// Edit applies ops atomically and regenerates. On error the live generator
// is unchanged.
func (s *Service) Edit(ctx context.Context, ops []protocol.EditOp) (RegenEntry, error) {
	resp := make(chan editResp, 1)
	select {
	case s.edit <- editReq{ops: ops, resp: resp}:
	case <-ctx.Done():
		return RegenEntry{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.regen, r.err
	case <-ctx.Done():
		return RegenEntry{}, ctx.Err()
	}
}

// Save writes a snapshot and returns its path.
func (s *Service) Save(ctx context.Context, name string) (string, error) {
	resp := make(chan saveResp, 1)
	select {
	case s.save <- saveReq{name: name, resp: resp}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-resp:
		return r.path, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// State returns the current planet state and the latest regeneration.
func (s *Service) State(ctx context.Context) (protocol.PlanetState, RegenEntry, error) {
	resp := make(chan stateResp, 1)
	select {
	case s.state <- stateReq{resp: resp}:
	case <-ctx.Done():
		return protocol.PlanetState{}, RegenEntry{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.state, r.regen, nil
	case <-ctx.Done():
		return protocol.PlanetState{}, RegenEntry{}, ctx.Err()
	}
}

func (s *Service) applyEdit(ops []protocol.EditOp) (RegenEntry, error) {
	if len(ops) == 0 {
		return RegenEntry{}, badRequest("empty edit")
	}
	g := s.gen.Clone()
	colors := s.colors
	render := s.render
	for i, op := range ops {
		if err := applyOp(g, &colors, &render, op); err != nil {
			return RegenEntry{}, wrapOpErr(i, op.Op, err)
		}
	}
	if err := g.Validate(); err != nil {
		return RegenEntry{}, &EditError{Code: protocol.ErrConfig, Err: err}
	}

	prevGen, prevColors, prevRender := s.gen, s.colors, s.render
	s.gen, s.colors, s.render = g, colors, render
	regen, err := s.regenerate("edit")
	if err != nil {
		s.gen, s.colors, s.render = prevGen, prevColors, prevRender
		return RegenEntry{}, err
	}
	return regen, nil
}

func wrapOpErr(i int, op string, err error) error {
	var ee *EditError
	if errors.As(err, &ee) {
		return &EditError{Code: ee.Code, Err: fmt.Errorf("op %d (%s): %w", i, op, ee.Err)}
	}
	var ce *shape.ConfigurationError
	if errors.As(err, &ce) {
		return &EditError{Code: protocol.ErrConfig, Err: fmt.Errorf("op %d (%s): %w", i, op, err)}
	}
	return &EditError{Code: protocol.ErrBadRequest, Err: fmt.Errorf("op %d (%s): %w", i, op, err)}
}

func applyOp(g *shape.Generator, colors *snapshot.ColorsV1, render *snapshot.RenderV1, op protocol.EditOp) error {
	switch op.Op {
	case protocol.OpSetRadius:
		if op.Value == nil {
			return badRequest("missing value")
		}
		g.Radius = *op.Value
	case protocol.OpSetSeaLevel:
		if op.Value == nil {
			return badRequest("missing value")
		}
		g.SeaLevel = *op.Value
	case protocol.OpSetResolution:
		if op.Resolution < sphere.MinResolution || op.Resolution > sphere.MaxResolution {
			return badRequest("resolution %d outside [%d,%d]", op.Resolution, sphere.MinResolution, sphere.MaxResolution)
		}
		render.PlanetResolution = op.Resolution
	case protocol.OpSetPlanetColor:
		if op.Color == nil {
			return badRequest("missing color")
		}
		colors.PlanetColor = *op.Color
	case protocol.OpSetLight:
		if op.Color == nil {
			return badRequest("missing euler rotation")
		}
		render.LightEulerRot = *op.Color
	case protocol.OpAddLayer:
		l := shape.NewLayer()
		if op.Layer != nil {
			var err error
			if l, err = layerFromState(*op.Layer); err != nil {
				return err
			}
		}
		return g.AddLayer(l)
	case protocol.OpRemoveLayer:
		return g.RemoveLayer(op.Index)
	case protocol.OpMoveLayer:
		return g.MoveLayer(op.Index, op.To)
	case protocol.OpSetLayer:
		if op.Layer == nil {
			return badRequest("missing layer")
		}
		l, err := layerFromState(*op.Layer)
		if err != nil {
			return err
		}
		return g.SetLayer(op.Index, l)
	default:
		return badRequest("unknown op %q", op.Op)
	}
	return nil
}

func (s *Service) regenerate(cause string) (RegenEntry, error) {
	start := time.Now()
	surf, err := sphere.Sample(s.gen, s.render.PlanetResolution)
	if err != nil {
		var ce *shape.ConfigurationError
		if errors.As(err, &ce) {
			return RegenEntry{}, &EditError{Code: protocol.ErrConfig, Err: err}
		}
		return RegenEntry{}, &EditError{Code: protocol.ErrBadRequest, Err: err}
	}
	s.seq++
	e := RegenEntry{
		Time:       start.UTC().Format(time.RFC3339Nano),
		Seq:        s.seq,
		Cause:      cause,
		Resolution: surf.Resolution,
		Layers:     s.gen.LayerCount(),
		Min:        surf.Min,
		Max:        surf.Max,
		Digest:     surf.Digest(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	s.last = e
	if s.sink != nil {
		if err := s.sink.WriteRegen(e); err != nil {
			s.log.Printf("regen log: %v", err)
		}
	}
	s.log.Printf("regen seq=%d cause=%s res=%d layers=%d min=%.4f max=%.4f took=%dms",
		e.Seq, cause, e.Resolution, e.Layers, e.Min, e.Max, e.DurationMS)
	return e, nil
}

func (s *Service) saveNow(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", badRequest("missing save name")
	}
	if s.saveDir == "" {
		return "", &EditError{Code: protocol.ErrInternal, Err: errors.New("saving disabled")}
	}
	state := snapshot.NewSaveState(name, s.gen, s.colors, s.render)
	path := filepath.Join(s.saveDir, fmt.Sprintf("%s-%d.snap.zst", sanitizeName(name), time.Now().UTC().UnixNano()))
	if err := snapshot.WriteSnapshot(path, state); err != nil {
		return "", &EditError{Code: protocol.ErrInternal, Err: fmt.Errorf("write snapshot: %w", err)}
	}
	if s.index != nil {
		s.index.RecordSave(path, state, s.last)
	}
	s.log.Printf("saved %q -> %s", name, path)
	return path, nil
}

func (s *Service) planetState() protocol.PlanetState {
	st := protocol.PlanetState{
		Radius:        s.gen.Radius,
		SeaLevel:      s.gen.SeaLevel,
		Resolution:    s.render.PlanetResolution,
		PlanetColor:   s.colors.PlanetColor,
		LightEulerRot: s.render.LightEulerRot,
	}
	for _, l := range s.gen.Layers() {
		st.Layers = append(st.Layers, layerState(l))
	}
	return st
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// RegenMsg converts an entry to its wire form.
func RegenMsg(id string, e RegenEntry) protocol.RegenMsg {
	return protocol.RegenMsg{
		Type:            protocol.TypeRegen,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Seq:             e.Seq,
		Resolution:      e.Resolution,
		Layers:          e.Layers,
		Min:             e.Min,
		Max:             e.Max,
		Digest:          e.Digest,
		DurationMS:      e.DurationMS,
	}
}
