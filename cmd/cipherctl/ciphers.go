package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/RowanDark/cipherkit/internal/cipher"
)

func (a *app) runCaesar(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.errOut, "caesar subcommand required (encrypt, decrypt)")
		return 2
	}

	var op string
	switch args[0] {
	case "encrypt":
		op = "caesar_encrypt"
	case "decrypt":
		op = "caesar_decrypt"
	default:
		fmt.Fprintf(a.errOut, "unknown caesar subcommand: %s\n", args[0])
		return 2
	}

	fs := a.flagSet("caesar " + args[0])
	shift := fs.IntP("shift", "s", 0, "rotation distance (required)")
	params := caesarFlags(fs)
	if code, ok := parseFlags(fs, args[1:]); !ok {
		return code
	}
	if !fs.Changed("shift") {
		fmt.Fprintln(a.errOut, "--shift is required")
		return 2
	}

	p := params()
	p[cipher.ParamShift] = *shift
	return a.execute(ctx, op, fs.Args(), p)
}

func (a *app) runROT13(ctx context.Context, args []string) int {
	fs := a.flagSet("rot13")
	params := caesarFlags(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	return a.execute(ctx, "rot13", fs.Args(), params())
}

// caesarFlags registers the flags shared by the Caesar commands. The
// returned function builds params from the flags that were set, so that
// configured defaults apply to the rest.
func caesarFlags(fs *pflag.FlagSet) func() map[string]any {
	ignoreCase := fs.BoolP("ignore-case", "i", false, "emit every letter in the alphabet's case")
	dropForeign := fs.Bool("drop-foreign", false, "drop characters missing from the alphabet")
	abc := fs.String("alphabet", "", "rotation alphabet (default a-z)")
	return func() map[string]any {
		p := map[string]any{}
		if fs.Changed("ignore-case") {
			p[cipher.ParamCaseSensitive] = !*ignoreCase
		}
		if fs.Changed("drop-foreign") {
			p[cipher.ParamIncludeForeign] = !*dropForeign
		}
		if *abc != "" {
			p[cipher.ParamAlphabet] = *abc
		}
		return p
	}
}

func (a *app) runBacon(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.errOut, "bacon subcommand required (encode, decode, hide, reveal, scatter)")
		return 2
	}

	sub := args[0]
	fs := a.flagSet("bacon " + sub)
	ver := fs.IntP("version", "v", 0, "code table: 1 (24 letters) or 2 (26 letters); default from config")
	params := map[string]any{}

	var (
		dropForeign *bool
		cover       *string
		coverFile   *string
		noise       *int
		seed        *int64
	)
	switch sub {
	case "encode", "reveal":
	case "decode":
		dropForeign = fs.Bool("drop-foreign", false, "drop characters that are not code symbols")
	case "hide":
		cover = fs.String("cover", "", "cover text whose letter casing carries the message")
		coverFile = fs.String("cover-file", "", "read the cover text from a file")
	case "scatter":
		noise = fs.IntP("noise", "n", 3, "maximum filler characters before each code symbol (0-16)")
		seed = fs.Int64("seed", 0, "random seed for reproducible output")
	default:
		fmt.Fprintf(a.errOut, "unknown bacon subcommand: %s\n", sub)
		return 2
	}

	if code, ok := parseFlags(fs, args[1:]); !ok {
		return code
	}
	if fs.Changed("version") {
		params[cipher.ParamVersion] = *ver
	}

	switch sub {
	case "decode":
		if *dropForeign {
			params[cipher.ParamIncludeForeign] = false
		}
	case "hide":
		text := *cover
		if path := *coverFile; path != "" {
			if text != "" {
				fmt.Fprintln(a.errOut, "--cover and --cover-file are mutually exclusive")
				return 2
			}
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(a.errOut, "read cover file: %v\n", err)
				return 1
			}
			text = string(data)
		}
		if text == "" {
			fmt.Fprintln(a.errOut, "--cover or --cover-file is required")
			return 2
		}
		params[cipher.ParamCover] = text
	case "scatter":
		params[cipher.ParamNoise] = *noise
		if fs.Changed("seed") {
			params[cipher.ParamSeed] = *seed
		}
	}

	return a.execute(ctx, "bacon_"+sub, fs.Args(), params)
}
