package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/RowanDark/cipherkit/internal/cipher"
	"github.com/RowanDark/cipherkit/internal/config"
)

const productName = "cipherkit"
const cliBanner = productName + " CLI (cipherctl)"

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app carries the streams and resolved settings shared by every command.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	cfg    config.Config
	log    *slog.Logger
	exec   executor
}

// run executes one cipherctl invocation and returns its exit code: 0 on
// success, 1 when the command fails, 2 on usage errors.
func run(args []string, in io.Reader, out, errOut io.Writer) int {
	global := pflag.NewFlagSet("cipherctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(errOut)
	server := global.String("server", "", "gRPC address of a cipherd instance (operations run locally when empty)")
	timeout := global.Duration("timeout", 30*time.Second, "deadline for the command")
	showVersion := global.Bool("version", false, "print version and exit")
	global.Usage = func() { printUsage(errOut, global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Fprintln(out, versionString())
		return 0
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	switch rest[0] {
	case "version":
		return runVersion(out, errOut, rest[1:])
	case "help":
		printUsage(out, global)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(errOut, "load config: %v\n", err)
		return 1
	}
	a := &app{in: in, out: out, errOut: errOut, cfg: cfg, log: cfg.NewLogger(errOut)}

	if addr := strings.TrimSpace(*server); addr != "" {
		remote, err := dialRemote(addr)
		if err != nil {
			fmt.Fprintf(errOut, "connect to %s: %v\n", addr, err)
			return 1
		}
		defer remote.Close()
		a.log.Debug("using remote server", "addr", addr)
		a.exec = remote
	} else {
		a.exec = newLocalExecutor(cipher.DefaultRegistry(), cipher.NewSmartDetector(), cfg.OperationDefaults)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	switch rest[0] {
	case "caesar":
		return a.runCaesar(ctx, rest[1:])
	case "rot13":
		return a.runROT13(ctx, rest[1:])
	case "bacon":
		return a.runBacon(ctx, rest[1:])
	case "detect":
		return a.runDetect(ctx, rest[1:])
	case "ops":
		return a.runOps(ctx, rest[1:])
	case "recipe":
		return a.runRecipe(ctx, rest[1:])
	case "config":
		return a.runConfig(rest[1:])
	case "update":
		return a.runUpdate(ctx, rest[1:])
	case "rollback":
		return a.runRollback(rest[1:])
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n", rest[0])
		return 2
	}
}

func printUsage(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprintln(w, cliBanner)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: cipherctl [global flags] <command> [flags] [text]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  caesar encrypt|decrypt   Caesar shift (--shift required)")
	fmt.Fprintln(w, "  rot13                    Caesar shift of 13")
	fmt.Fprintln(w, "  bacon encode|decode      Baconian a/b codes")
	fmt.Fprintln(w, "  bacon hide|reveal        hide a message in the letter casing of a cover text")
	fmt.Fprintln(w, "  bacon scatter            bury the a/b symbols of a code stream in random filler")
	fmt.Fprintln(w, "  detect                   rank likely ciphers for the input")
	fmt.Fprintln(w, "  ops                      list operations")
	fmt.Fprintln(w, "  recipe list|show|run|export|import|delete")
	fmt.Fprintln(w, "  config print             print the resolved configuration")
	fmt.Fprintln(w, "  update [--check]         replace this binary with the newest signed release")
	fmt.Fprintln(w, "  rollback                 restore the binary replaced by the last update")
	fmt.Fprintln(w, "  version                  print version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Text is read from the remaining arguments, or from stdin when none are given.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	global.SetOutput(w)
	global.PrintDefaults()
}

func (a *app) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parseFlags parses args and reports whether the command should continue.
// When it should not, code is the exit code to return.
func parseFlags(fs *pflag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

// text returns the command input: the joined arguments, or stdin without
// its trailing newline.
func (a *app) text(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(a.in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (a *app) execute(ctx context.Context, op string, args []string, params map[string]any) int {
	input, err := a.text(args)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	out, err := a.exec.Execute(ctx, op, input, params)
	if err != nil {
		fmt.Fprintf(a.errOut, "%s: %v\n", op, err)
		return 1
	}
	fmt.Fprintln(a.out, out)
	return 0
}

func versionString() string {
	return fmt.Sprintf("%s %s", productName, version)
}

func runVersion(out, errOut io.Writer, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(errOut, "version takes no arguments")
		return 2
	}
	fmt.Fprintln(out, versionString())
	return 0
}
