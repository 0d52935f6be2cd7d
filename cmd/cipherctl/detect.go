package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/RowanDark/cipherkit/internal/cipher"
)

func (a *app) runDetect(ctx context.Context, args []string) int {
	fs := a.flagSet("detect")
	asJSON := fs.Bool("json", false, "print detections as JSON")
	apply := fs.Bool("apply", false, "decode with the top suggestion and print the result")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	input, err := a.text(fs.Args())
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	if input == "" {
		fmt.Fprintln(a.errOut, "input text required")
		return 2
	}

	results, err := a.exec.Detect(ctx, input)
	if err != nil {
		fmt.Fprintf(a.errOut, "detect: %v\n", err)
		return 1
	}

	if *apply {
		if len(results) == 0 {
			fmt.Fprintln(a.errOut, "could not detect cipher")
			return 1
		}
		top := results[0]
		out, err := a.exec.Execute(ctx, top.Operation, input, top.Params)
		if err != nil {
			fmt.Fprintf(a.errOut, "%s: %v\n", top.Operation, err)
			return 1
		}
		fmt.Fprintln(a.out, out)
		return 0
	}

	if *asJSON {
		if results == nil {
			results = []cipher.DetectionResult{}
		}
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(a.errOut, "encode detections: %v\n", err)
			return 1
		}
		return 0
	}

	if len(results) == 0 {
		fmt.Fprintln(a.out, "no cipher detected")
		return 0
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENCODING\tCONFIDENCE\tOPERATION\tPARAMS\tREASON")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%s\n", r.Encoding, r.Confidence, r.Operation, formatParams(r.Params), r.Reasoning)
	}
	_ = tw.Flush()
	return 0
}

func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, ",")
}

func (a *app) runOps(ctx context.Context, args []string) int {
	fs := a.flagSet("ops")
	types := fs.StringSliceP("type", "t", nil, "only list operations of these types (encode, decode, encrypt, decrypt, hide, reveal, obscure)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	var filter []cipher.OperationType
	for _, t := range *types {
		filter = append(filter, cipher.OperationType(strings.TrimSpace(t)))
	}
	infos, err := a.exec.Operations(ctx, filter)
	if err != nil {
		fmt.Fprintf(a.errOut, "list operations: %v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tREVERSIBLE\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", info.Name, info.Type, info.Reversible, info.Description)
	}
	_ = tw.Flush()
	return 0
}
