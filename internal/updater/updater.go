// Package updater replaces the running cipherctl binary with a release
// published as a signed manifest, and restores the previous binary on
// request. Releases may ship a bsdiff patch against the prior version; a
// failed patch falls back to the full download.
package updater

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	update "github.com/inconshreveable/go-update"
)

// ErrNoBackup is returned by Rollback when no update has been applied.
var ErrNoBackup = errors.New("no previous binary recorded")

// Updater swaps the binary at ExecPath for the release on a channel.
type Updater struct {
	Source Source
	State  *StateStore
	// ExecPath defaults to os.Executable().
	ExecPath string
	// Version is the running version. "dev" and empty fall back to the
	// version recorded by the last update.
	Version string
	Log     *slog.Logger
}

// Result describes one update or rollback.
type Result struct {
	From     string
	To       string
	Channel  string
	Patched  bool
	UpToDate bool
}

// Check fetches the manifest for channel and reports whether it is newer
// than the installed version.
func (u *Updater) Check(ctx context.Context, channel string) (Manifest, bool, error) {
	st, err := u.State.Load()
	if err != nil {
		return Manifest{}, false, err
	}
	m, err := u.Source.Fetch(ctx, channel)
	if err != nil {
		return Manifest{}, false, err
	}
	return m, m.Version != u.current(st), nil
}

// Update installs the newest release on channel.
func (u *Updater) Update(ctx context.Context, channel string) (Result, error) {
	channel, err := ParseChannel(channel)
	if err != nil {
		return Result{}, err
	}
	st, err := u.State.Load()
	if err != nil {
		return Result{}, err
	}
	m, err := u.Source.Fetch(ctx, channel)
	if err != nil {
		return Result{}, err
	}

	current := u.current(st)
	res := Result{From: current, To: m.Version, Channel: channel}
	if m.Version == current {
		res.UpToDate = true
		return res, nil
	}

	build, ok := m.BuildFor(runtime.GOOS, runtime.GOARCH)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s/%s in %s", ErrNoBuild, runtime.GOOS, runtime.GOARCH, m.Version)
	}
	checksum, err := decodeChecksum(build.Full.SHA256)
	if err != nil {
		return Result{}, fmt.Errorf("full build: %w", err)
	}

	opts, err := u.options(checksum, u.backupPath())
	if err != nil {
		return Result{}, err
	}

	if p := build.Patch; p != nil && current != "" && p.From == current {
		if err := u.applyPatch(ctx, *p, opts); err != nil {
			u.log().Warn("patch update failed, downloading full build", "version", m.Version, "error", err)
		} else {
			res.Patched = true
		}
	}
	if !res.Patched {
		if err := u.applyFull(ctx, build.Full, opts); err != nil {
			return Result{}, err
		}
	}

	st = State{
		Version:         m.Version,
		PreviousVersion: current,
		Channel:         channel,
		BackupPath:      opts.OldSavePath,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := u.State.Save(st); err != nil {
		return Result{}, err
	}
	u.log().Info("binary updated", "from", current, "to", m.Version, "channel", channel, "patched", res.Patched)
	return res, nil
}

// Rollback restores the binary saved by the last update. The replaced binary
// becomes the new backup, so a second rollback undoes the first.
func (u *Updater) Rollback() (Result, error) {
	st, err := u.State.Load()
	if err != nil {
		return Result{}, err
	}
	if st.BackupPath == "" {
		return Result{}, ErrNoBackup
	}
	backup, err := os.ReadFile(st.BackupPath)
	if err != nil {
		return Result{}, fmt.Errorf("read previous binary: %w", err)
	}

	sum := sha256.Sum256(backup)
	opts, err := u.options(sum[:], st.BackupPath)
	if err != nil {
		return Result{}, err
	}
	if err := apply(bytes.NewReader(backup), opts); err != nil {
		return Result{}, fmt.Errorf("rollback: %w", err)
	}

	res := Result{From: st.Version, To: st.PreviousVersion, Channel: st.Channel}
	st.Version, st.PreviousVersion = st.PreviousVersion, st.Version
	st.UpdatedAt = time.Now().UTC()
	if err := u.State.Save(st); err != nil {
		return Result{}, err
	}
	u.log().Info("binary rolled back", "from", res.From, "to", res.To)
	return res, nil
}

func (u *Updater) applyPatch(ctx context.Context, p Patch, opts update.Options) error {
	expected, err := decodeChecksum(p.SHA256)
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	data, err := u.Source.download(ctx, p.URL)
	if err != nil {
		return err
	}
	if actual := sha256.Sum256(data); !bytes.Equal(actual[:], expected) {
		return fmt.Errorf("patch checksum mismatch: got %x want %x", actual, expected)
	}
	opts.Patcher = update.NewBSDiffPatcher()
	return apply(bytes.NewReader(data), opts)
}

func (u *Updater) applyFull(ctx context.Context, a Artifact, opts update.Options) error {
	data, err := u.Source.download(ctx, a.URL)
	if err != nil {
		return err
	}
	return apply(bytes.NewReader(data), opts)
}

func apply(r *bytes.Reader, opts update.Options) error {
	if err := update.Apply(r, opts); err != nil {
		if rerr := update.RollbackError(err); rerr != nil {
			return fmt.Errorf("apply: %v (restoring original failed: %v)", err, rerr)
		}
		return fmt.Errorf("apply: %w", err)
	}
	return nil
}

func (u *Updater) options(checksum []byte, backup string) (update.Options, error) {
	target, err := u.execPath()
	if err != nil {
		return update.Options{}, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return update.Options{}, fmt.Errorf("stat executable: %w", err)
	}
	opts := update.Options{
		TargetPath:  target,
		TargetMode:  info.Mode(),
		Checksum:    checksum,
		Hash:        crypto.SHA256,
		OldSavePath: backup,
	}
	if err := opts.CheckPermissions(); err != nil {
		return update.Options{}, fmt.Errorf("cannot replace %s: %w", target, err)
	}
	return opts, nil
}

func (u *Updater) current(st State) string {
	if v := strings.TrimSpace(u.Version); v != "" && v != "dev" {
		return v
	}
	return st.Version
}

func (u *Updater) backupPath() string {
	name := "cipherctl"
	if target, err := u.execPath(); err == nil {
		name = filepath.Base(target)
	}
	return filepath.Join(u.State.Dir(), name+".previous")
}

func (u *Updater) execPath() (string, error) {
	if strings.TrimSpace(u.ExecPath) != "" {
		return u.ExecPath, nil
	}
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("determine executable path: %w", err)
	}
	return path, nil
}

func (u *Updater) log() *slog.Logger {
	if u.Log != nil {
		return u.Log
	}
	return slog.Default()
}
