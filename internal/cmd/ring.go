package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/wheatley/internal/bot"
	"github.com/Iron-Ham/wheatley/internal/config"
	"github.com/Iron-Ham/wheatley/internal/errors"
	"github.com/Iron-Ham/wheatley/internal/event"
	"github.com/Iron-Ham/wheatley/internal/logging"
	"github.com/Iron-Ham/wheatley/internal/pageparser"
	"github.com/Iron-Ham/wheatley/internal/rhythm"
	"github.com/Iron-Ham/wheatley/internal/rowgen"
	"github.com/Iron-Ham/wheatley/internal/tower"
	"github.com/Iron-Ham/wheatley/internal/tui"
)

// reconnectInterval is the minimum gap between two attempts to join a tower.
const reconnectInterval = 2 * time.Second

var ringCmd = &cobra.Command{
	Use:   "ring [tower-id]",
	Short: "Join a tower and ring",
	Long: `Join a Ringing Room tower and ring every bell nobody else has taken.

The bot waits for someone to call "Look to", rings rounds, goes into
changes on "Go" (or by itself after two rows with up_down_in) and
follows "Bob", "Single", "That's all" and "Stand next".

Examples:
  # Ring plain hunt on whatever bells the tower has
  wheatley ring 123456789

  # Ring Plain Bob Minor
  wheatley ring 123456789 --method place_notation --place-notation x16x16x16,12 --stage 6`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRing,
}

func init() {
	rootCmd.AddCommand(ringCmd)

	flags := ringCmd.Flags()
	flags.String("url", "", "Ringing Room server (default https://ringingroom.com)")
	flags.String("method", "", "Row generator: plain_hunt or place_notation")
	flags.String("place-notation", "", "Place notation for one lead of the method")
	flags.Int("stage", 0, "Number of bells the method is for")
	flags.Float64("inertia", 0, "How slowly to adopt a new speed (0 < inertia <= 1)")
	flags.Bool("up-down-in", true, "Go into changes after two rows of rounds")
	flags.Bool("no-tui", false, "Print rows instead of showing the live monitor")

	_ = viper.BindPFlag("tower.url", flags.Lookup("url"))
	_ = viper.BindPFlag("method.name", flags.Lookup("method"))
	_ = viper.BindPFlag("method.place_notation", flags.Lookup("place-notation"))
	_ = viper.BindPFlag("method.stage", flags.Lookup("stage"))
	_ = viper.BindPFlag("rhythm.inertia", flags.Lookup("inertia"))
	_ = viper.BindPFlag("method.up_down_in", flags.Lookup("up-down-in"))
}

func runRing(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	towerID, err := resolveTowerID(cfg.Tower.ID, args)
	if err != nil {
		return err
	}

	gen, err := generatorFor(cfg.Method)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	baseLogger, err := newSessionLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Close() }()
	logger := baseLogger.WithSession(sessionID).WithTower(towerID)
	logger.Info("session started", "method", cfg.Method.Name, "stage", cfg.Method.Stage)

	regression := rhythm.NewRegression(rhythm.RegressionConfig{
		Inertia:          cfg.Rhythm.Inertia,
		HandstrokeGap:    cfg.Rhythm.HandstrokeGap,
		MaxRowsInDataset: cfg.Rhythm.MaxRowsInDataset,
	}, logger)
	watchConfig(baseLogger, logger, regression)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus(logger)
	r := &ringer{
		cfg:       cfg,
		towerID:   towerID,
		bus:       bus,
		logger:    logger,
		rhythm:    rhythm.NewUserSync(regression, rhythm.WithLogger(logger)),
		generator: gen,
		client:    &http.Client{Timeout: cfg.Tower.DialTimeout()},
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(r.run)

	noTUI, _ := cmd.Flags().GetBool("no-tui")
	if cfg.TUI.Enabled && !noTUI && term.IsTerminal(int(os.Stdout.Fd())) {
		app := tui.New(bus, towerID, cfg.TUI.MaxRows)
		p.Go(func(ctx context.Context) error {
			// Leaving the monitor stops the bot
			defer stop()
			return app.Run(ctx)
		})
	} else {
		unsubscribe := printEvents(cmd.OutOrStdout(), bus)
		defer unsubscribe()
	}

	err = p.Wait()
	logger.Info("session ended", "error", err)
	return err
}

// resolveTowerID takes the tower ID from the command line, falling back to
// the configured one.
func resolveTowerID(configured int, args []string) (int, error) {
	id := configured
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			return 0, errors.NewValidationError("tower ID must be a positive number").
				WithField("tower.id").WithValue(args[0]).WithCause(err)
		}
		id = parsed
	}
	if id <= 0 {
		return 0, errors.NewValidationError("no tower ID given; pass one or set tower.id").
			WithField("tower.id").WithValue(id)
	}
	return id, nil
}

// generatorFor builds the row generator the method config asks for.
func generatorFor(m config.MethodConfig) (bot.GeneratorFunc, error) {
	switch m.Name {
	case config.MethodPlaceNotation:
		g, err := rowgen.NewPlaceNotation(m.Stage, m.PlaceNotation, m.Bob, m.Single)
		if err != nil {
			return nil, err
		}
		return bot.Fixed(g), nil
	default:
		if m.Stage == 0 {
			return bot.PlainHunt(), nil
		}
		g, err := rowgen.NewPlainHunt(m.Stage)
		if err != nil {
			return nil, err
		}
		return bot.Fixed(g), nil
	}
}

func newSessionLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLogger(cfg.ResolveDir(), cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	return logger, nil
}

// watchConfig applies edits to the config file while ringing. Only the
// settings that can change mid-touch are picked up.
func watchConfig(base, logger *logging.Logger, regression *rhythm.Regression) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := config.Load()
		if err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		regression.SetInertia(cfg.Rhythm.Inertia)
		base.SetLevel(cfg.Logging.Level)
		logger.Info("config reloaded", "file", e.Name, "inertia", cfg.Rhythm.Inertia)
	})
	viper.WatchConfig()
}

// ringer owns the tower connection, re-joining when it drops.
type ringer struct {
	cfg       *config.Config
	towerID   int
	bus       *event.Bus
	logger    *logging.Logger
	rhythm    *rhythm.UserSync
	generator bot.GeneratorFunc
	client    *http.Client
	retry     time.Duration // gap between joins; reconnectInterval when zero
}

func (r *ringer) run(ctx context.Context) error {
	every := r.retry
	if every == 0 {
		every = reconnectInterval
	}
	limiter := rate.NewLimiter(rate.Every(every), 1)
	for attempt := 0; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		err := r.session(ctx)
		if ctx.Err() != nil || err == nil {
			return nil
		}
		if !errors.IsRetryable(err) || attempt >= r.cfg.Tower.ReconnectAttempts {
			r.logger.Error("giving up on the tower", "attempts", attempt+1, "error", err,
				"severity", errors.GetSeverity(err).String())
			return err
		}
		r.logger.Warn("lost the tower, reconnecting", "attempt", attempt+1, "error", err,
			"severity", errors.GetSeverity(err).String())
	}
}

// session joins the tower once and rings until the connection ends.
func (r *ringer) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.Tower.DialTimeout())
	defer cancel()

	server, err := pageparser.LoadBalancingURL(dialCtx, r.client, r.cfg.Tower.URL, r.towerID)
	if err != nil {
		return joinError(ctx, dialCtx, r.cfg.Tower.DialTimeout(), err)
	}
	t, err := tower.Dial(dialCtx, server, r.towerID, tower.WithBus(r.bus), tower.WithLogger(r.logger))
	if err != nil {
		return joinError(ctx, dialCtx, r.cfg.Tower.DialTimeout(), err)
	}
	defer func() { _ = t.Close() }()

	b := bot.New(t, r.rhythm, r.generator,
		bot.WithBus(r.bus),
		bot.WithLogger(r.logger),
		bot.WithUpDownIn(r.cfg.Method.UpDownIn),
		bot.WithStartDelay(r.cfg.Rhythm.StartDelay()),
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(t.Run)
	p.Go(b.Run)
	return p.Wait()
}

// joinError reports a join that ran out of dial time as a TimeoutError.
// Cancellation of the session itself is passed through untouched.
func joinError(ctx, dialCtx context.Context, timeout time.Duration, err error) error {
	if ctx.Err() == nil && errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError("joining tower", timeout).WithCause(err)
	}
	return err
}

// printEvents writes a line per row and per tower happening, for when there
// is no terminal to draw the monitor on.
func printEvents(w io.Writer, bus *event.Bus) func() {
	var mu sync.Mutex
	id := bus.SubscribeAll(func(e event.Event) {
		line := describeEvent(e)
		if line == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	})
	return func() { bus.Unsubscribe(id) }
}

func describeEvent(e event.Event) string {
	switch e := e.(type) {
	case event.RowStartedEvent:
		return fmt.Sprintf("%5d%s  %s", e.Number, e.Stroke.Short(), e.Row)
	case event.CallEvent:
		return fmt.Sprintf("call: %s", e.Call)
	case event.RingingChangedEvent:
		return "ringing: " + e.State
	case event.SizeChangedEvent:
		return fmt.Sprintf("tower now has %d bells", e.Stage)
	case event.UserAssignedEvent:
		if e.User == "" {
			return fmt.Sprintf("bell %s unassigned", e.Bell)
		}
		return fmt.Sprintf("bell %s: %s", e.Bell, e.User)
	case event.DisconnectedEvent:
		if e.Err != nil {
			return fmt.Sprintf("disconnected: %v", e.Err)
		}
		return "disconnected"
	}
	return ""
}
