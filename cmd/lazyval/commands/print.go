package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openfroyo/lazyval/pkg/config"
	"github.com/openfroyo/lazyval/pkg/engine"
	"github.com/openfroyo/lazyval/pkg/printer"
	"github.com/openfroyo/lazyval/pkg/store"
)

type printFlags struct {
	attr            string
	force           bool
	derivationPaths bool
	noRepeated      bool
	maxDepth        int
	maxAttrs        int
	maxItems        int
	maxString       int
	profile         string
	color           string
	storePath       string
	storeDir        string
	watch           bool
	args            []string
}

func newPrintCommand() *cobra.Command {
	var f printFlags

	cmd := &cobra.Command{
		Use:   "print FILE",
		Short: "Print the value a configuration source defines",
		Long: `Load a Starlark script (.star, .bzl) or a CUE file or package directory
and print its value.

Values are printed lazily: anything not yet evaluated shows as «thunk»
unless --force is given. Evaluation errors are printed inline as «message».

Options are applied in order: defaults, --profile, the source's own
print_options, then command-line flags.`,
		Example: `  # Print everything a script defines
  lazyval print default.star

  # Evaluate and print one attribute
  lazyval print default.star --attr services.web --force

  # Bound the output
  lazyval print ./config --force --max-depth 2 --max-items 5

  # Pass inputs to a script and re-render on change
  lazyval print build.star --arg env=prod --watch

  # Register derivations in a store database
  lazyval print pkgs.star --force --derivation-paths --store lazyval.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrint(cmd, args[0], &f)
		},
	}

	cmd.Flags().StringVarP(&f.attr, "attr", "A", "", "attribute path to print, e.g. services.web")
	cmd.Flags().BoolVar(&f.force, "force", false, "evaluate deferred values before printing")
	cmd.Flags().BoolVar(&f.derivationPaths, "derivation-paths", false, "print derivations as their .drv path (with --force)")
	cmd.Flags().BoolVar(&f.noRepeated, "no-repeated", false, "print shared values again instead of «repeated»")
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", printer.Unlimited, "maximum nesting depth")
	cmd.Flags().IntVar(&f.maxAttrs, "max-attrs", printer.Unlimited, "maximum number of attributes")
	cmd.Flags().IntVar(&f.maxItems, "max-items", printer.Unlimited, "maximum number of list items")
	cmd.Flags().IntVar(&f.maxString, "max-string", printer.Unlimited, "maximum characters per string")
	cmd.Flags().StringVar(&f.profile, "profile", "", "YAML print profile")
	cmd.Flags().StringVar(&f.color, "color", "auto", "colorize output (auto, always, never)")
	cmd.Flags().StringVar(&f.storePath, "store", "", "SQLite store database for derivations")
	cmd.Flags().StringVar(&f.storeDir, "store-dir", "", "store directory (default /nix/store)")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "re-render when the source changes")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "predeclare NAME=VALUE for Starlark scripts")

	return cmd
}

func runPrint(cmd *cobra.Command, path string, f *printFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	profile := config.DefaultProfile()
	if f.profile != "" {
		var err error
		if profile, err = config.LoadProfile(f.profile); err != nil {
			return err
		}
	}

	colors, err := resolveColor(f.color, out)
	if err != nil {
		return err
	}

	predeclared, err := parseArgs(f.args)
	if err != nil {
		return err
	}

	cfg := engine.Config{
		Telemetry:   telemetryFrom(ctx),
		Starlark:    config.StarlarkOptions{Predeclared: predeclared},
		TraceOutput: cmd.ErrOrStderr(),
		TraceColors: colors,
	}
	if f.storeDir != "" {
		cfg.Store = store.NewLocalStore(f.storeDir)
	}

	storePath := f.storePath
	if storePath == "" {
		storePath = profile.Store
	}
	if storePath != "" {
		db, err := openStore(ctx, storePath, f.storeDir)
		if err != nil {
			return err
		}
		defer db.Close()
		cfg.Store = db
		cfg.Registry = db
	}

	session := engine.NewSession(cfg)
	defer session.Close()

	attrPath := f.attr
	if attrPath == "" {
		attrPath = profile.Attr
	}

	render := func() error {
		if _, err := session.Load(ctx, path); err != nil {
			return err
		}
		opts, err := session.SourceOptions(profile.Print)
		if err != nil {
			return err
		}
		applyFlags(cmd.Flags(), f, &opts)
		opts.ANSIColors = colors

		res, err := session.Render(ctx, out, engine.RenderRequest{AttrPath: attrPath, Options: opts})
		if err != nil {
			return err
		}
		fmt.Fprintln(out)

		log.Debug().
			Str("session_id", res.SessionID).
			Int("attributes", res.Stats.Attributes).
			Int("list_items", res.Stats.ListItems).
			Int("eval_errors", res.Stats.Errors).
			Dur("duration", res.Duration).
			Msg("Rendered value")
		return nil
	}

	if !f.watch {
		return render()
	}
	return watchAndRender(ctx, path, cmd.ErrOrStderr(), render)
}

// watchAndRender renders once, then again after every change, until ctx is
// cancelled. Failed renders are reported and do not stop the watch.
func watchAndRender(ctx context.Context, path string, errOut io.Writer, render func() error) error {
	report := func() {
		if err := render(); err != nil {
			if engine.IsCanceled(err) {
				return
			}
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}

	w, err := config.NewWatcher(path, telemetryFrom(ctx).Logger.NewComponentLogger("watch"))
	if err != nil {
		return err
	}
	defer w.Close()

	report()
	log.Info().Str("path", path).Msg("Watching for changes")
	return w.Run(ctx, report)
}

// applyFlags overrides opts with the flags given on the command line.
func applyFlags(flags *pflag.FlagSet, f *printFlags, opts *printer.Options) {
	if flags.Changed("force") {
		opts.Force = f.force
	}
	if flags.Changed("derivation-paths") {
		opts.DerivationPaths = f.derivationPaths
	}
	if flags.Changed("no-repeated") {
		opts.TrackRepeated = !f.noRepeated
	}
	if flags.Changed("max-depth") {
		opts.MaxDepth = f.maxDepth
	}
	if flags.Changed("max-attrs") {
		opts.MaxAttributes = f.maxAttrs
	}
	if flags.Changed("max-items") {
		opts.MaxListItems = f.maxItems
	}
	if flags.Changed("max-string") {
		opts.MaxStringLength = f.maxString
	}
}

// resolveColor decides whether to emit ANSI colors. auto honours NO_COLOR
// and colors only terminals.
func resolveColor(mode string, out io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false, nil
		}
		file, ok := out.(*os.File)
		if !ok {
			return false, nil
		}
		if os.Getenv("TERM") == "dumb" {
			return false, nil
		}
		return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd()), nil
	default:
		return false, fmt.Errorf("invalid --color value %q (want auto, always or never)", mode)
	}
}

// parseArgs turns NAME=VALUE pairs into Starlark predeclared strings.
func parseArgs(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		name, val, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --arg %q (want NAME=VALUE)", pair)
		}
		out[name] = val
	}
	return out, nil
}
