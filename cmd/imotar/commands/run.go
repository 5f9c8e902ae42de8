package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/NV7150/ImOTAR-sub000/config"
	"github.com/NV7150/ImOTAR-sub000/depth"
	"github.com/NV7150/ImOTAR-sub000/history"
	"github.com/NV7150/ImOTAR-sub000/infer"
	"github.com/NV7150/ImOTAR-sub000/logger"
	"github.com/NV7150/ImOTAR-sub000/source"
	"github.com/NV7150/ImOTAR-sub000/stream"
	"github.com/NV7150/ImOTAR-sub000/telemetry"
)

// quiesceTicks is how many consecutive idle ticks the loop waits before
// deciding the pipeline has drained. A queued pair starts within one
// tick, so three covers start latency plus margin.
const quiesceTicks = 3

// statusEvery paces the status line so it stays readable at any tick
// rate.
const statusEvery = time.Second

// RunCmd runs the pipeline in the foreground.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the depth refinement pipeline",
	Long: `Run the tick loop against the synthetic color and depth sources.

Each tick the gate adapter pairs freshly observed frames, advances the
in-flight job a bounded number of executor steps, and promotes a
finalized job once the completion delay has elapsed. Lifecycle events
are written to the job ledger and, when enabled, broadcast over the
telemetry WebSocket.

Signals:
  SIGINT once    pause: one last stepping pass, then hold
  SIGINT twice   abort: invalidate the job, write the abort fill, drain
  SIGTERM        abort immediately

Examples:
  imotar run                   # Run until interrupted
  imotar run --frames 300      # Stop after 300 frames per stream
  imotar run --telemetry       # Serve live events regardless of config`,
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, _ := cmd.Flags().GetInt("frames")
		forceTelemetry, _ := cmd.Flags().GetBool("telemetry")
		return runPipeline(frames, forceTelemetry)
	},
}

func init() {
	RunCmd.Flags().Int("frames", -1, "Frames to emit per stream (overrides source.frames; 0 = unbounded)")
	RunCmd.Flags().Bool("telemetry", false, "Enable the WebSocket telemetry hub regardless of config")
}

// signalGate maps interrupt signals onto the scheduler gate. It is the
// only mutable shared state between the signal handler and the tick
// loop.
type signalGate struct {
	state atomic.Value
	fill  float32
}

func newSignalGate(fill float32) *signalGate {
	g := &signalGate{fill: fill}
	g.state.Store(depth.GateRun)
	return g
}

func (g *signalGate) State() depth.GateState { return g.state.Load().(depth.GateState) }

func (g *signalGate) AbortFill() float32 { return g.fill }

func (g *signalGate) Set(s depth.GateState) { g.state.Store(s) }

func runPipeline(frameOverride int, forceTelemetry bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if frameOverride >= 0 {
		cfg.Source.Frames = frameOverride
	}

	// Pairing core.
	syncer, err := stream.NewSynchronizer(stream.SynchronizerConfig{
		MaxSkew:         time.Duration(cfg.Sync.MaxSkewMS) * time.Millisecond,
		ColorStaleAfter: time.Duration(cfg.Sync.ColorStaleAfterMS) * time.Millisecond,
		DepthStaleAfter: time.Duration(cfg.Sync.DepthStaleAfterMS) * time.Millisecond,
	}, nil)
	if err != nil {
		return err
	}

	// Executor and output plane.
	refiner, err := infer.NewRefiner(infer.RefinerConfig{
		Width:     cfg.Executor.Width,
		Height:    cfg.Executor.Height,
		Passes:    cfg.Executor.Passes,
		Lambda:    cfg.Executor.Lambda,
		EdgeScale: cfg.Executor.EdgeScale,
	})
	if err != nil {
		return err
	}
	output, err := depth.NewOutputBuffer(cfg.Executor.Width, cfg.Executor.Height)
	if err != nil {
		return err
	}

	// Job ledger.
	database, err := openHistoryDB(cfg.GetHistoryPath())
	if err != nil {
		return err
	}
	defer database.Close()
	store, err := history.NewStore(database, cfg.History.Retention, nil)
	if err != nil {
		return err
	}
	sinks := depth.MultiSink{store}

	// Telemetry hub.
	var hub *telemetry.Hub
	if cfg.Telemetry.Enabled || forceTelemetry {
		hub, err = telemetry.NewHub(cfg.GetTelemetryAddr(), cfg.GetTelemetryAllowedOrigins(), nil)
		if err != nil {
			return err
		}
		if err := hub.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			hub.Shutdown(shutdownCtx)
		}()
		sinks = append(sinks, telemetry.NewSink(hub))
	}

	// Scheduler and gate.
	proc, err := depth.NewProcessor(
		depth.ProcessorConfig{PromoteDelayTicks: cfg.Pipeline.PromoteDelayTicks},
		refiner, output, syncer, sinks, nil,
	)
	if err != nil {
		return err
	}
	gate := newSignalGate(float32(cfg.Pipeline.AbortFill))
	adapter, err := depth.NewGateAdapter(proc, gate, cfg.Pipeline.StepsPerTick, sinks, nil)
	if err != nil {
		return err
	}

	// Hot-reload steps-per-tick when the user config changes.
	if path := config.GetUserConfigPath(); path != "" {
		if watcher, werr := config.NewWatcher(path); werr == nil {
			config.SetGlobalWatcher(watcher)
			watcher.OnReload(func(c *config.Config) error {
				return adapter.SetStepsPerTick(c.Pipeline.StepsPerTick)
			})
			watcher.Start()
			defer watcher.Stop()
		} else {
			logger.Debugw("config watcher unavailable",
				logger.FieldFile, path,
				logger.FieldError, werr,
			)
		}
	}

	// Frame sources.
	jitter := time.Duration(cfg.Source.JitterMS) * time.Millisecond
	colorSrc, err := source.NewColor(source.Config{
		FPS:    cfg.Source.ColorFPS,
		Jitter: jitter,
		Frames: cfg.Source.Frames,
		Width:  cfg.Source.ColorWidth,
		Height: cfg.Source.ColorHeight,
	}, nil)
	if err != nil {
		return err
	}
	depthSrc, err := source.NewDepth(source.Config{
		FPS:    cfg.Source.DepthFPS,
		Jitter: jitter,
		Frames: cfg.Source.Frames,
		Width:  cfg.Source.DepthWidth,
		Height: cfg.Source.DepthHeight,
	}, nil)
	if err != nil {
		return err
	}
	colorSrc.OnFrame(proc.ObserveColor)
	depthSrc.OnFrame(proc.ObserveDepth)

	printRunBanner(cfg, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srcWG sync.WaitGroup
	srcWG.Add(2)
	go func() {
		defer srcWG.Done()
		if rerr := colorSrc.Run(ctx); rerr != nil && ctx.Err() == nil {
			logger.Warnw("color source stopped", logger.FieldError, rerr)
		}
	}()
	go func() {
		defer srcWG.Done()
		if rerr := depthSrc.Run(ctx); rerr != nil && ctx.Err() == nil {
			logger.Warnw("depth source stopped", logger.FieldError, rerr)
		}
	}()
	sourcesDone := make(chan struct{})
	go func() {
		srcWG.Wait()
		close(sourcesDone)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	tick := time.NewTicker(time.Duration(cfg.Pipeline.TickIntervalMS) * time.Millisecond)
	defer tick.Stop()
	status := time.NewTicker(statusEvery)
	defer status.Stop()

	var statsC <-chan time.Time
	if hub != nil && cfg.Telemetry.SystemIntervalMS > 0 {
		statsTick := time.NewTicker(time.Duration(cfg.Telemetry.SystemIntervalMS) * time.Millisecond)
		defer statsTick.Stop()
		statsC = statsTick.C
	}

	srcDone := false
	idleTicks := 0
	interrupts := 0

	for {
		select {
		case <-tick.C:
			adapter.Tick()

			idle := proc.CurrentJobID().IsNone()
			drainedAbort := gate.State() == depth.GateAbortFast && idle
			finishedRun := gate.State() == depth.GateRun && srcDone && idle
			if drainedAbort || finishedRun {
				idleTicks++
			} else {
				idleTicks = 0
			}
			if idleTicks >= quiesceTicks {
				cancel()
				printRunSummary(proc)
				return nil
			}

		case <-status.C:
			printStatus(proc, adapter)

		case <-statsC:
			hub.PublishStats(proc.Stats(), proc.SyncStats())

		case <-sourcesDone:
			srcDone = true
			sourcesDone = nil
			logger.Infow("sources finished",
				"color_frames", colorSrc.Emitted(),
				"depth_frames", depthSrc.Emitted(),
			)

		case sig := <-sigCh:
			interrupts++
			if interrupts >= 3 {
				pterm.Error.Println("forced exit before drain completed")
				cancel()
				return nil
			}
			if sig == syscall.SIGTERM || gate.State() != depth.GateRun {
				gate.Set(depth.GateAbortFast)
				pterm.Warning.Println("aborting: invalidating the in-flight job and draining")
			} else {
				gate.Set(depth.GatePauseDrain)
				pterm.Warning.Println("pausing after one drain pass (interrupt again to abort)")
			}
		}
	}
}

func printRunBanner(cfg *config.Config, hub *telemetry.Hub) {
	pterm.Info.Printf("imotar pipeline starting\n")
	pterm.Printf("  tick interval:   %d ms\n", cfg.Pipeline.TickIntervalMS)
	pterm.Printf("  steps per tick:  %d\n", cfg.Pipeline.StepsPerTick)
	pterm.Printf("  promote delay:   %d ticks\n", cfg.Pipeline.PromoteDelayTicks)
	pterm.Printf("  max skew:        %d ms\n", cfg.Sync.MaxSkewMS)
	pterm.Printf("  executor grid:   %dx%d, %d passes\n", cfg.Executor.Width, cfg.Executor.Height, cfg.Executor.Passes)
	pterm.Printf("  sources:         color %.3g fps / depth %.3g fps", cfg.Source.ColorFPS, cfg.Source.DepthFPS)
	if cfg.Source.Frames > 0 {
		pterm.Printf(", %d frames each", cfg.Source.Frames)
	}
	pterm.Println()
	pterm.Printf("  ledger:          %s\n", cfg.GetHistoryPath())
	if hub != nil {
		pterm.Printf("  telemetry:       ws://%s/ws\n", hub.Addr())
	}
	pterm.Println()
	pterm.Printf("Press Ctrl+C once to pause, twice to abort\n\n")
}

func printStatus(proc *depth.Processor, adapter *depth.GateAdapter) {
	st := proc.Stats()
	ss := proc.SyncStats()
	pterm.Printf("tick %-7d gate %-11s state %-9s jobs %d/%d/%d (started/completed/faulted)  steps %-6d pairs %-5d gen %d\n",
		st.Tick,
		adapter.LastState(),
		st.State,
		st.JobsStarted, st.JobsCompleted, st.JobsFaulted,
		st.StepsExecuted,
		ss.PairsYielded,
		st.OutputGeneration,
	)
}

func printRunSummary(proc *depth.Processor) {
	st := proc.Stats()
	ss := proc.SyncStats()
	pterm.Println()
	pterm.Success.Printf("pipeline drained at tick %d\n", st.Tick)
	pterm.Printf("  jobs:    %d started, %d completed, %d invalidated, %d faulted\n",
		st.JobsStarted, st.JobsCompleted, st.JobsInvalidated, st.JobsFaulted)
	pterm.Printf("  steps:   %d executed\n", st.StepsExecuted)
	pterm.Printf("  pairs:   %d yielded (%d color / %d depth frames observed)\n",
		ss.PairsYielded, ss.ColorObserved, ss.DepthObserved)
	pterm.Printf("  output:  generation %d\n", st.OutputGeneration)
}
