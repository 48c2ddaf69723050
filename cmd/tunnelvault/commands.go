// ABOUTME: Subcommand implementations for tunnelvault
// ABOUTME: Each command operates on the migrated store through the public APIs

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/migration"
	"github.com/2389/tunnelvault/internal/relay"
	"github.com/2389/tunnelvault/internal/schema"
	"github.com/2389/tunnelvault/internal/settings"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	gray   = color.New(color.FgHiBlack)
	cyan   = color.New(color.FgCyan)
)

func bullet(format string, args ...any) {
	green.Print("  ▶ ")
	fmt.Printf(format+"\n", args...)
}

func runStatus(ctx context.Context, a *app) error {
	status := a.migrator.Detect(ctx)

	bullet("Vault:    %s", a.cfg.Vault.Path)
	bullet("Service:  %s", a.cfg.Vault.Service)
	switch status.State {
	case migration.StateUpToDate:
		if status.From == 0 {
			bullet("Settings: %s", gray.Sprint("none stored"))
		} else {
			bullet("Settings: %s %s", status.From, green.Sprint("(current)"))
		}
	case migration.StateNeedsMigration:
		bullet("Settings: %s %s", status.From, yellow.Sprintf("(migrates to %s)", schema.Current))
	case migration.StateFailed:
		bullet("Settings: %s", color.RedString("unreadable: %v", status.Err))
	}

	backedUp, err := a.secure.BackedUpKeys(ctx)
	if err != nil {
		return err
	}
	if len(backedUp) == 0 {
		bullet("Backup:   %s", gray.Sprint("no slots"))
	} else {
		bullet("Backup:   %s", yellow.Sprint(joinKeys(backedUp)))
	}

	wipe, err := a.settings.ShouldWipeSettings(ctx)
	if err != nil {
		return err
	}
	if wipe {
		bullet("Wipe:     %s", yellow.Sprint("requested"))
	}
	return nil
}

func runMigrate(ctx context.Context, a *app) error {
	result, err := a.settings.MigrateStore(ctx, a.migrator)
	switch result {
	case migration.ResultNothing:
		bullet("Nothing to migrate")
	case migration.ResultSuccess:
		bullet("Migrated settings to %s", schema.Current)
	case migration.ResultFailed:
		if errors.Is(err, keystore.ErrAccessDenied) || errors.Is(err, settings.ErrResetFailed) {
			return err
		}
		yellow.Printf("  ! Migration failed, settings were reset: %v\n", err)
		return nil
	}
	return err
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	formatName := fs.String("format", "json", "Output format: json, yaml, or plist")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format, err := settings.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	s, err := a.settings.ReadSettings(ctx)
	if err != nil {
		return err
	}
	out, err := settings.Export(s, format)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		fmt.Println()
	}
	return nil
}

func runReset(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	all := fs.Bool("all", false, "Reset every slot, including account and device state")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.settings.ResetStore(ctx, *all); err != nil {
		return err
	}
	if *all {
		bullet("Reset every slot")
	} else {
		bullet("Reset settings")
	}
	return nil
}

func runWipe(ctx context.Context, a *app) error {
	if err := a.settings.SetShouldWipeSettings(ctx); err != nil {
		return err
	}
	bullet("Every slot will be reset on next start")
	return nil
}

func runOverrides(ctx context.Context, a *app, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "list":
		overrides, err := a.ipOverrides.FetchAll(ctx)
		if err != nil {
			return err
		}
		if len(overrides) == 0 {
			gray.Println("  no overrides")
		}
		for _, o := range overrides {
			v4, v6 := "-", "-"
			if o.IPv4Address != nil {
				v4 = o.IPv4Address.String()
			}
			if o.IPv6Address != nil {
				v6 = o.IPv6Address.String()
			}
			bullet("%-24s %-16s %s", o.Hostname, v4, v6)
		}
		return nil

	case "import":
		if len(args) < 2 {
			return errors.New("usage: tunnelvault overrides import FILE")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading overrides: %w", err)
		}
		n, err := a.ipOverrides.Import(ctx, data)
		if err != nil {
			return err
		}
		bullet("Imported %d overrides", n)
		return nil

	case "clear":
		if err := a.ipOverrides.DeleteAll(ctx); err != nil {
			return err
		}
		bullet("Deleted all overrides")
		return nil
	}
	return fmt.Errorf("unknown overrides command %q", sub)
}

func runLists(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		lists, err := a.customLists.FetchAll(ctx)
		if err != nil {
			return err
		}
		if len(lists) == 0 {
			gray.Println("  no custom lists")
		}
		for _, l := range lists {
			locs := make([]string, len(l.Locations))
			for i, loc := range l.Locations {
				locs[i] = loc.String()
			}
			bullet("%s %s", cyan.Sprint(l.Name), gray.Sprint(strings.Join(locs, ", ")))
		}
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return errors.New("usage: tunnelvault lists add NAME [COUNTRY[/CITY[/HOST]]...]")
		}
		var locations []relay.RelayLocation
		for _, arg := range args[2:] {
			loc, err := relay.ParseLocation(arg)
			if err != nil {
				return err
			}
			locations = append(locations, loc)
		}
		list, err := a.customLists.Create(ctx, args[1], locations...)
		if err != nil {
			return err
		}
		bullet("Created %s (%s)", list.Name, list.ID)
		return nil

	case "rm":
		if len(args) < 2 {
			return errors.New("usage: tunnelvault lists rm NAME")
		}
		list, err := a.customLists.FetchByName(ctx, args[1])
		if err != nil {
			return err
		}
		if err := a.customLists.Delete(ctx, list.ID); err != nil {
			return err
		}
		bullet("Deleted %s", list.Name)
		return nil
	}
	return fmt.Errorf("unknown lists command %q", args[0])
}

func runAccessMethods(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		methods, err := a.accessMethods.FetchAll(ctx)
		if err != nil {
			return err
		}
		last, err := a.accessMethods.LastReachable(ctx)
		if err != nil {
			return err
		}
		for _, m := range methods {
			state := green.Sprint("enabled")
			if !m.IsEnabled {
				state = gray.Sprint("disabled")
			}
			marker := ""
			if m.ID == last.ID {
				marker = cyan.Sprint(" (last reachable)")
			}
			bullet("%s  %-20s %-18s %s%s", m.ID, m.Name, m.Proxy.Kind, state, marker)
		}
		return nil
	}

	if len(args) < 2 || (args[0] != "enable" && args[0] != "disable") {
		return errors.New("usage: tunnelvault access-methods [enable|disable ID]")
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("parsing access method id: %w", err)
	}
	method, err := a.accessMethods.Fetch(ctx, id)
	if err != nil {
		return err
	}
	method.IsEnabled = args[0] == "enable"
	if err := a.accessMethods.Save(ctx, method); err != nil {
		return err
	}
	bullet("%sd %s", args[0], method.Name)
	return nil
}

func runRecents(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		recents, err := a.recentConnects.FetchAll(ctx)
		if err != nil {
			return err
		}
		if !recents.IsEnabled {
			gray.Println("  recording disabled")
			return nil
		}
		printSelections("exit", recents.ExitLocations)
		printSelections("entry", recents.EntryLocations)
		return nil
	}

	var err error
	switch args[0] {
	case "clear":
		err = a.recentConnects.DeleteAll(ctx)
	case "on":
		err = a.recentConnects.SetEnabled(ctx, true)
	case "off":
		err = a.recentConnects.SetEnabled(ctx, false)
	default:
		return fmt.Errorf("unknown recents command %q", args[0])
	}
	if err != nil {
		return err
	}
	bullet("Recent connections updated")
	return nil
}

func printSelections(label string, selections []relay.UserSelectedRelays) {
	for _, sel := range selections {
		locs := make([]string, len(sel.Locations))
		for i, loc := range sel.Locations {
			locs[i] = loc.String()
		}
		bullet("%-5s %s", label, strings.Join(locs, ", "))
	}
}

func runExcludeBackup(ctx context.Context, a *app) error {
	if err := keystore.ExcludeAllFromBackup(ctx, a.store); err != nil {
		return err
	}
	remaining, err := a.secure.BackedUpKeys(ctx)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return fmt.Errorf("slots still included in backups: %s", joinKeys(remaining))
	}
	bullet("Excluded every slot from backups")
	return nil
}

func joinKeys(keys []keystore.Key) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
