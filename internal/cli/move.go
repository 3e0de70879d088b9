package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rescale/assetmover/internal/api"
	"github.com/rescale/assetmover/internal/config"
	"github.com/rescale/assetmover/internal/constants"
	"github.com/rescale/assetmover/internal/events"
	"github.com/rescale/assetmover/internal/index"
	"github.com/rescale/assetmover/internal/mover"
	"github.com/rescale/assetmover/internal/progress"
	"github.com/rescale/assetmover/internal/prompt"
	"github.com/rescale/assetmover/internal/queue"
	"github.com/rescale/assetmover/internal/tui"
	"github.com/rescale/assetmover/internal/visibility"
)

// newMoveCmd creates the 'move' command group.
func newMoveCmd() *cobra.Command {
	moveCmd := &cobra.Command{
		Use:   "move",
		Short: "Move assets or folders into another folder",
		Long: `Move assets or folders into a target folder.

Commands:
  assets  - Move assets by ID
  folders - Move folders by ID (contents that can't move with the
            folder are transferred one by one, then the source is removed)

Conflicts are prompted for unless --on-conflict is given.`,
	}

	pf := moveCmd.PersistentFlags()
	pf.String("prompt-style", "", "Conflict prompt style: line, tui")
	pf.String("progress-style", "", "Progress style: bars, simple, none")
	bindFlags(v, pf.Lookup, map[string]string{
		config.KeyPromptStyle:   "prompt-style",
		config.KeyProgressStyle: "progress-style",
	})

	moveCmd.AddCommand(newMoveItemsCmd(mover.KindAsset))
	moveCmd.AddCommand(newMoveItemsCmd(mover.KindFolder))

	return moveCmd
}

type moveOptions struct {
	target     int
	onConflict string
	jsonEvents bool
}

// newMoveItemsCmd creates 'move assets' or 'move folders'.
func newMoveItemsCmd(kind mover.Kind) *cobra.Command {
	var opts moveOptions

	noun := kind.Plural()

	cmd := &cobra.Command{
		Use:   noun + " <id>... --to <folder-id>",
		Short: "Move " + noun + " into a folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return runMove(cmd, kind, ids, opts)
		},
	}

	cmd.Flags().IntVar(&opts.target, "to", 0, "Target folder ID (required)")
	cmd.Flags().StringVar(&opts.onConflict, "on-conflict", "", "Answer every conflict without asking: "+strings.Join(onConflictValues(kind), ", "))
	cmd.Flags().BoolVar(&opts.jsonEvents, "json-events", false, "Stream move events to stdout as JSON lines instead of drawing progress")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runMove(cmd *cobra.Command, kind mover.Kind, ids []int, opts moveOptions) error {
	ctx := cmd.Context()
	cfg := activeConfig
	if cfg == nil {
		cfg = config.New()
	}
	if cmd.Flags().Changed("on-conflict") {
		cfg.OnConflict = opts.onConflict
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateOnConflict(kind, cfg.OnConflict); err != nil {
		return err
	}

	log := GetLogger()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	var streamDone chan struct{}
	if opts.jsonEvents {
		streamDone = make(chan struct{})
		go streamEvents(bus, bus.SubscribeAll(), out, streamDone)
	}

	bar := newProgressBar(cfg.ProgressStyle, opts.jsonEvents, bus, errOut)
	if tb, ok := bar.(*progress.TerminalBar); ok && tb.IsTerminal() {
		// Log lines print above the bar while a round is drawn
		prev := log.Output()
		log.SetOutput(tb.Writer())
		defer log.SetOutput(prev)
	}

	client, err := api.NewClient(cfg, log.Component("api"))
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	q := queue.New(ctx, log.Component("queue"))
	q.PublishTo(bus)
	q.WatchVisibility(ctx, visibility.Watch(ctx, visibility.NewTerminal(os.Stdin), constants.VisibilityPollInterval))

	presenter := newPresenter(cmd, cfg)
	if c, ok := presenter.(io.Closer); ok {
		defer c.Close()
	}

	idx := index.New(index.Options{
		Bar:     bar,
		Handler: prompt.NewHandler(presenter, log.Component("prompt")),
		ErrOut:  errOut,
		Logger:  log.Component("index"),
	})

	engine := mover.NewEngine(client, idx, mover.Options{
		Queue:  q,
		Bus:    bus,
		Logger: log.Component("mover"),
	})

	var moved int
	var moveErr error
	if kind == mover.KindFolder {
		moved, moveErr = engine.MoveFolders(ctx, ids, opts.target)
	} else {
		moved, moveErr = engine.MoveAssets(ctx, ids, opts.target)
	}

	if moveErr == nil {
		waitForQueue(ctx, q)
	}

	if tb, ok := bar.(*progress.TerminalBar); ok {
		tb.Wait()
	}
	bus.Close()
	if streamDone != nil {
		<-streamDone
	}

	if moveErr != nil {
		return fmt.Errorf("move interrupted after %d of %d: %w", moved, len(ids), moveErr)
	}

	if !opts.jsonEvents {
		fmt.Fprintf(out, "Moved %d of %d %s\n", moved, len(ids), kind.Plural())
		if n := len(idx.Errors()); n > 0 {
			fmt.Fprintf(errOut, "%d item(s) failed\n", n)
		}
	}
	return nil
}

// waitForQueue blocks until the refresh job pushed by the engine has run.
// Jobs run in order, so a no-op pushed behind it settles after it.
func waitForQueue(ctx context.Context, q *queue.Queue) {
	ctx, cancel := context.WithTimeout(ctx, constants.RefreshJobTimeout)
	defer cancel()

	if q.Paused() {
		GetLogger().Info().Msg("Waiting for the terminal to return to the foreground to refresh the site queue")
	}
	marker := q.Push(func(context.Context) (any, error) { return nil, nil })
	if _, err := queue.Wait(ctx, marker); err != nil {
		GetLogger().Warn().Err(err).Msg("Site queue refresh did not finish")
	}
}

func newProgressBar(style string, jsonEvents bool, bus *events.EventBus, errOut io.Writer) progress.Bar {
	if jsonEvents {
		return progress.NewEventBar(bus)
	}
	switch style {
	case config.ProgressStyleNone:
		return progress.NewCounter()
	case config.ProgressStyleSimple:
		return progress.NewSimpleBar(errOut)
	}
	if f, ok := errOut.(*os.File); ok {
		return progress.NewTerminalBar(f)
	}
	return progress.NewSimpleBar(errOut)
}

func newPresenter(cmd *cobra.Command, cfg *config.Config) prompt.Presenter {
	if cfg.OnConflict != "" {
		return prompt.StaticPresenter{Choice: cfg.OnConflict, ApplyToRemaining: true}
	}
	if cfg.PromptStyle == config.PromptStyleTUI {
		return tui.NewPresenter(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	return prompt.NewLinePresenter(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// onConflictValues lists the answers a conflict on kind accepts.
func onConflictValues(kind mover.Kind) []string {
	var values []string
	for _, c := range mover.ConflictChoices(kind) {
		values = append(values, c.Value)
	}
	return append(values, prompt.ChoiceCancel)
}

func validateOnConflict(kind mover.Kind, choice string) error {
	values := onConflictValues(kind)
	if choice == "" || slices.Contains(values, choice) {
		return nil
	}
	return fmt.Errorf("invalid --on-conflict %q for %s: must be one of %s",
		choice, kind.Plural(), strings.Join(values, ", "))
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid ID %q: must be a positive integer", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// streamEvents writes every event on ch as a JSON line until the bus
// closes. A failed write unsubscribes ch so the bus stops queueing for it.
func streamEvents(bus *events.EventBus, ch <-chan events.Event, w io.Writer, done chan<- struct{}) {
	defer close(done)
	enc := json.NewEncoder(w)
	for ev := range ch {
		err := enc.Encode(struct {
			Type  events.EventType `json:"type"`
			Event events.Event     `json:"event"`
		}{ev.Type(), ev})
		if err != nil {
			GetLogger().Warn().Err(err).Msg("Stopped streaming events")
			bus.UnsubscribeAll(ch)
			return
		}
	}
}
