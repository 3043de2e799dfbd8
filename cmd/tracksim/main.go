// tracksim runs a scripted tracking session against the simulated anchor and
// plane backends, reconciling provider deltas every poll and recording each
// trackable's lifecycle to a sqlite session database.
//
// Usage:
//
//	tracksim -db session.db -frames 120 -rate 33ms -verbose
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tracksync/internal/config"
	"github.com/banshee-data/tracksync/internal/db"
	"github.com/banshee-data/tracksync/internal/xr"
	"github.com/banshee-data/tracksync/internal/xr/anchors"
	"github.com/banshee-data/tracksync/internal/xr/planes"
	"github.com/banshee-data/tracksync/internal/xr/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to session config JSON (optional)")
	dbPath := flag.String("db", "", "Path to the session sqlite database (overrides config)")
	migrationsDir := flag.String("migrations", "", "Path to the migrations directory (overrides config)")
	frames := flag.Int("frames", -1, "Number of polls to run, 0 for until interrupted (overrides config)")
	rate := flag.Duration("rate", 0, "Poll interval (overrides config)")
	anchorCount := flag.Int("anchors", -1, "Anchors to place at session start (overrides config)")
	validate := flag.Bool("validate", false, "Validate provider change sets each poll")
	verbose := flag.Bool("verbose", false, "Enable diagnostic logging")
	trace := flag.Bool("trace", false, "Enable trace logging (implies -verbose)")
	flag.Parse()

	cfg := config.EmptySessionConfig()
	if *configPath != "" {
		loaded, err := config.LoadSessionConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Explicit flags take precedence over the config file.
	if *dbPath == "" {
		*dbPath = cfg.GetDBPath()
	}
	if *migrationsDir == "" {
		*migrationsDir = cfg.GetMigrationsDir()
	}
	if *frames < 0 {
		*frames = cfg.GetFrameCount()
	}
	if *rate <= 0 {
		*rate = cfg.GetPollInterval()
	}
	if *anchorCount < 0 {
		*anchorCount = cfg.GetAnchorCount()
	}
	if !*validate {
		*validate = cfg.GetValidateChangeSets()
	}
	if !*verbose {
		*verbose = cfg.GetVerbose()
	}
	if !*trace {
		*trace = cfg.GetTrace()
	}

	diagOut := io.Writer(io.Discard)
	traceOut := io.Writer(io.Discard)
	if *verbose || *trace {
		diagOut = os.Stderr
	}
	if *trace {
		traceOut = os.Stderr
	}
	xr.SetLogWriters(os.Stderr, diagOut, traceOut)
	xr.SetChangeSetValidation(*validate)

	if err := run(cfg, *dbPath, *migrationsDir, *frames, *rate, *anchorCount); err != nil {
		fmt.Fprintf(os.Stderr, "tracksim: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.SessionConfig, dbPath, migrationsDir string, frames int, rate time.Duration, anchorCount int) error {
	database, err := db.NewDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.MigrateUp(migrationsDir); err != nil {
		return fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	store := sqlite.NewStore(database.DB)

	// Anchor pipeline: simulated sync-add backend with configured drift.
	anchorProvider := anchors.NewSimulatedProvider()
	dx, dy, dz := cfg.GetAnchorDrift()
	anchorProvider.Drift = r3.Vec{X: dx, Y: dy, Z: dz}
	anchorSubsystem := xr.NewSubsystem(anchorProvider.Descriptor(), anchorProvider)
	anchorManager := anchors.NewManager(xr.ManagerConfig[anchors.Data]{
		Subsystem: anchorSubsystem,
		Observer:  sqlite.NewRecorder[anchors.Data](store, "anchor", nil),
	})

	// Plane pipeline: scripted detection backend, polling only.
	planeProvider := planes.NewSimulatedProvider()
	planeSubsystem := xr.NewSubsystem(planes.Descriptor(), planeProvider)
	planeManager := xr.NewManager(xr.ManagerConfig[planes.Data]{
		Subsystem: planeSubsystem,
		Observer:  sqlite.NewRecorder[planes.Data](store, "plane", nil),
	})

	if err := anchorSubsystem.Start(); err != nil {
		return fmt.Errorf("start anchor subsystem: %w", err)
	}
	defer anchorSubsystem.Destroy()
	if err := planeSubsystem.Start(); err != nil {
		return fmt.Errorf("start plane subsystem: %w", err)
	}
	defer planeSubsystem.Destroy()

	placed := make([]*anchors.Anchor, 0, anchorCount)
	for i := 0; i < anchorCount; i++ {
		pose := xr.NewPose(r3.Vec{X: float64(i), Z: -1}, xr.IdentityPose().Orientation)
		a, err := anchorManager.AddAnchor(pose)
		if err != nil {
			return fmt.Errorf("place anchor %d: %w", i, err)
		}
		placed = append(placed, a)
	}

	scene := newScenario(planeProvider, anchorManager, placed, frames)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	start := time.Now()
	frame := 0
	for {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "interrupted, stopping session")
			return finish(store, cfg, anchorManager, planeManager, frame, start)
		case <-ticker.C:
		}
		frame++

		scene.step(frame)
		if err := anchorManager.Poll(); err != nil {
			return fmt.Errorf("anchor poll %d: %w", frame, err)
		}
		if err := planeManager.Poll(); err != nil {
			return fmt.Errorf("plane poll %d: %w", frame, err)
		}

		if frames > 0 && frame >= frames {
			return finish(store, cfg, anchorManager, planeManager, frame, start)
		}
	}
}

// scenario injects scripted provider events at fixed frames so every
// reconciliation path (add, update, remove, merge) shows up in a session.
type scenario struct {
	planes  *planes.SimulatedProvider
	anchors *anchors.Manager
	placed  []*anchors.Anchor
	frames  int

	floor xr.TrackableID
	wall  xr.TrackableID
}

func newScenario(p *planes.SimulatedProvider, a *anchors.Manager, placed []*anchors.Anchor, frames int) *scenario {
	return &scenario{planes: p, anchors: a, placed: placed, frames: frames}
}

func (s *scenario) step(frame int) {
	if s.frames <= 0 {
		// Open-ended session: script against a fixed 300-frame window.
		s.frames = 300
	}

	// Key frames scale with session length so short runs still hit every
	// event.
	at := func(fraction float64) int {
		f := int(fraction * float64(s.frames))
		if f < 1 {
			f = 1
		}
		return f
	}

	switch frame {
	case at(0.05):
		s.floor = s.planes.ScriptDetect(xr.NewPose(r3.Vec{Y: -1.4}, xr.IdentityPose().Orientation), 1.0, 1.0, planes.ClassificationFloor)
	case at(0.15):
		s.wall = s.planes.ScriptDetect(xr.NewPose(r3.Vec{Z: -2}, xr.IdentityPose().Orientation), 0.8, 2.0, planes.ClassificationWall)
	case at(0.3):
		s.planes.ScriptGrow(s.floor, 0.6, 0.6)
	case at(0.5):
		if len(s.placed) > 0 {
			s.anchors.RemoveAnchor(s.placed[0].ID())
		}
	case at(0.7):
		s.planes.ScriptMerge(s.floor, s.wall)
	}
}

func finish(store *sqlite.Store, cfg *config.SessionConfig, anchorManager *anchors.Manager, planeManager *xr.Manager[planes.Data], frame int, start time.Time) error {
	pruned := int64(0)
	for _, kind := range []string{"anchor", "plane"} {
		n, err := store.PruneRemoved(kind, cfg.GetRemovedTTL(), time.Now())
		if err != nil {
			return fmt.Errorf("prune %s rows: %w", kind, err)
		}
		pruned += n
	}

	fmt.Printf("session complete: %d polls in %s\n", frame, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  anchors live: %d (pending %d)\n", anchorManager.Core().Len(), anchorManager.Core().PendingLen())
	fmt.Printf("  planes live:  %d\n", planeManager.Len())
	fmt.Printf("  pruned rows:  %d\n", pruned)
	return nil
}
