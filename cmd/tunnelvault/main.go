// ABOUTME: Entry point for the tunnelvault command
// ABOUTME: Migrates the settings vault at startup and inspects or edits its slots

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/tunnelvault/internal/config"
)

// version is set at build time.
var version = "dev"

func usage() {
	fmt.Println("Usage: tunnelvault <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  status                       Show the stored settings version")
	fmt.Println("  migrate                      Migrate stored settings to the current version")
	fmt.Println("  show [--format F]            Print settings as json, yaml, or plist")
	fmt.Println("  reset [--all]                Reset settings, or every slot with --all")
	fmt.Println("  wipe                         Request a full reset on next start")
	fmt.Println("  overrides import FILE        Import relay IP overrides")
	fmt.Println("  overrides list|clear         List or delete relay IP overrides")
	fmt.Println("  lists [add NAME LOC...|rm NAME]   Manage custom relay lists")
	fmt.Println("  access-methods [enable|disable ID]  Manage API access methods")
	fmt.Println("  recents [clear|on|off]       Manage recent connections")
	fmt.Println("  exclude-backup               Exclude every slot from backups")
	fmt.Println("  version                      Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "status":
		err = withApp(ctx, false, func(a *app) error { return runStatus(ctx, a) })
	case "migrate":
		err = withApp(ctx, false, func(a *app) error { return runMigrate(ctx, a) })
	case "show":
		err = withApp(ctx, true, func(a *app) error { return runShow(ctx, a, args) })
	case "reset":
		err = withApp(ctx, false, func(a *app) error { return runReset(ctx, a, args) })
	case "wipe":
		err = withApp(ctx, false, func(a *app) error { return runWipe(ctx, a) })
	case "overrides":
		err = withApp(ctx, true, func(a *app) error { return runOverrides(ctx, a, args) })
	case "lists":
		err = withApp(ctx, true, func(a *app) error { return runLists(ctx, a, args) })
	case "access-methods":
		err = withApp(ctx, true, func(a *app) error { return runAccessMethods(ctx, a, args) })
	case "recents":
		err = withApp(ctx, true, func(a *app) error { return runRecents(ctx, a, args) })
	case "exclude-backup":
		err = withApp(ctx, true, func(a *app) error { return runExcludeBackup(ctx, a) })
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// loadConfig loads the config file if one exists, and the defaults otherwise.
func loadConfig() (*config.Config, string, error) {
	dataDir, err := config.DataDir()
	if err != nil {
		return nil, "", err
	}

	path := config.FindConfig()
	if path == "" {
		cfg, err := config.Default(dataDir)
		return cfg, "", err
	}

	cfg, err := config.Load(path, dataDir)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr so exported settings on stdout stay clean.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	stderrMu.Lock()
	defer stderrMu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

// stderrMu serializes writes from every handler derived from one logger.
var stderrMu sync.Mutex

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
