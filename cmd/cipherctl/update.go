package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/RowanDark/cipherkit/internal/updater"
)

var executable = os.Executable

func (a *app) newUpdater() (*updater.Updater, error) {
	key, err := updater.ParsePublicKey(a.cfg.Update.PublicKey)
	if err != nil {
		return nil, err
	}
	store, err := updater.NewStateStore("")
	if err != nil {
		return nil, err
	}
	target, err := executable()
	if err != nil {
		return nil, fmt.Errorf("determine executable path: %w", err)
	}
	return &updater.Updater{
		Source: updater.Source{
			BaseURL:   a.cfg.Update.URL,
			PublicKey: key,
			UserAgent: fmt.Sprintf("cipherctl/%s (%s/%s)", version, runtime.GOOS, runtime.GOARCH),
		},
		State:    store,
		ExecPath: target,
		Version:  version,
		Log:      a.log,
	}, nil
}

func (a *app) runUpdate(ctx context.Context, args []string) int {
	fs := a.flagSet("update")
	channel := fs.String("channel", "", "release channel: stable or beta (default from config)")
	check := fs.Bool("check", false, "only report whether a newer release exists")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(a.errOut, "update takes no positional arguments")
		return 2
	}
	ch := a.cfg.Update.Channel
	if *channel != "" {
		normalized, err := updater.ParseChannel(*channel)
		if err != nil {
			fmt.Fprintln(a.errOut, err)
			return 2
		}
		ch = normalized
	}

	u, err := a.newUpdater()
	if err != nil {
		fmt.Fprintf(a.errOut, "update: %v\n", err)
		return 1
	}

	if *check {
		m, available, err := u.Check(ctx, ch)
		if err != nil {
			fmt.Fprintf(a.errOut, "update check failed: %v\n", err)
			return 1
		}
		if available {
			fmt.Fprintf(a.out, "%s is available on the %s channel\n", m.Version, ch)
		} else {
			fmt.Fprintf(a.out, "cipherctl %s is up to date on the %s channel\n", m.Version, ch)
		}
		return 0
	}

	res, err := u.Update(ctx, ch)
	if err != nil {
		fmt.Fprintf(a.errOut, "update failed: %v\n", err)
		return 1
	}
	switch {
	case res.UpToDate:
		fmt.Fprintf(a.out, "cipherctl %s is up to date on the %s channel\n", res.To, res.Channel)
	case res.Patched:
		fmt.Fprintf(a.out, "updated cipherctl to %s on the %s channel (patch)\n", res.To, res.Channel)
	default:
		fmt.Fprintf(a.out, "updated cipherctl to %s on the %s channel\n", res.To, res.Channel)
	}
	return 0
}

func (a *app) runRollback(args []string) int {
	fs := a.flagSet("rollback")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(a.errOut, "rollback takes no positional arguments")
		return 2
	}

	store, err := updater.NewStateStore("")
	if err != nil {
		fmt.Fprintf(a.errOut, "rollback: %v\n", err)
		return 1
	}
	target, err := executable()
	if err != nil {
		fmt.Fprintf(a.errOut, "rollback: determine executable path: %v\n", err)
		return 1
	}
	u := &updater.Updater{State: store, ExecPath: target, Version: version, Log: a.log}
	res, err := u.Rollback()
	if err != nil {
		fmt.Fprintf(a.errOut, "rollback failed: %v\n", err)
		return 1
	}
	if res.To == "" {
		fmt.Fprintln(a.out, "rolled back cipherctl to the previous binary")
	} else {
		fmt.Fprintf(a.out, "rolled back cipherctl to %s\n", res.To)
	}
	return 0
}
