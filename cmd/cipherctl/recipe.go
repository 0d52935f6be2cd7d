package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/RowanDark/cipherkit/internal/cipher"
)

func (a *app) runRecipe(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.errOut, "recipe subcommand required (list, show, run, export, import, delete)")
		return 2
	}

	dir := strings.TrimSpace(a.cfg.RecipesDir)
	if dir == "" {
		fmt.Fprintln(a.errOut, "recipes_dir is not configured (set it in cipherkit.yml or CIPHERKIT_RECIPES_DIR)")
		return 1
	}
	recipes := cipher.NewRecipeManager(dir)
	if err := recipes.LoadRecipes(); err != nil {
		fmt.Fprintf(a.errOut, "load recipes: %v\n", err)
		return 1
	}

	switch args[0] {
	case "list":
		return a.runRecipeList(recipes, args[1:])
	case "show":
		return a.runRecipeShow(recipes, args[1:])
	case "run":
		return a.runRecipeRun(ctx, recipes, args[1:])
	case "export":
		return a.runRecipeExport(recipes, args[1:])
	case "import":
		return a.runRecipeImport(recipes, args[1:])
	case "delete":
		return a.runRecipeDelete(recipes, args[1:])
	default:
		fmt.Fprintf(a.errOut, "unknown recipe subcommand: %s\n", args[0])
		return 2
	}
}

func (a *app) runRecipeList(recipes *cipher.RecipeManager, args []string) int {
	fs := a.flagSet("recipe list")
	query := fs.StringP("query", "q", "", "only list recipes whose name, description or tags match")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	var list []*cipher.Recipe
	if q := strings.TrimSpace(*query); q != "" {
		list = recipes.SearchRecipes(q)
	} else {
		list = recipes.ListRecipes()
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTEPS\tREVERSIBLE\tTAGS\tDESCRIPTION")
	for _, r := range list {
		steps := make([]string, len(r.Pipeline.Operations))
		for i, op := range r.Pipeline.Operations {
			steps[i] = op.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", r.Name, strings.Join(steps, ">"), r.Pipeline.Reversible, strings.Join(r.Tags, ","), r.Description)
	}
	_ = tw.Flush()
	return 0
}

// recipeName parses a command taking exactly one recipe name.
func (a *app) recipeName(recipes *cipher.RecipeManager, fs *pflag.FlagSet) (*cipher.Recipe, int, bool) {
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(a.errOut, "recipe name required")
		return nil, 2, false
	}
	recipe, ok := recipes.GetRecipe(rest[0])
	if !ok {
		fmt.Fprintf(a.errOut, "recipe %q not found\n", rest[0])
		return nil, 1, false
	}
	return recipe, 0, true
}

func (a *app) runRecipeShow(recipes *cipher.RecipeManager, args []string) int {
	return a.runRecipeExport(recipes, append([]string{"--format", cipher.FormatYAML}, args...))
}

func (a *app) runRecipeRun(ctx context.Context, recipes *cipher.RecipeManager, args []string) int {
	fs := a.flagSet("recipe run")
	reverse := fs.BoolP("reverse", "r", false, "run the inverse pipeline")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	recipe, code, ok := a.recipeName(recipes, fs)
	if !ok {
		return code
	}
	if *reverse && !recipe.Pipeline.Reversible {
		fmt.Fprintf(a.errOut, "recipe %s is %v\n", recipe.Name, cipher.ErrNotReversible)
		return 1
	}

	input, err := a.text(fs.Args()[1:])
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	out, err := a.exec.Pipeline(ctx, recipe.Pipeline.Operations, input, *reverse)
	if err != nil {
		fmt.Fprintf(a.errOut, "recipe %s: %v\n", recipe.Name, err)
		return 1
	}
	fmt.Fprintln(a.out, out)
	return 0
}

func (a *app) runRecipeExport(recipes *cipher.RecipeManager, args []string) int {
	fs := a.flagSet("recipe export")
	format := fs.StringP("format", "f", cipher.FormatYAML, "output format: json, yaml or cbor")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	recipe, code, ok := a.recipeName(recipes, fs)
	if !ok {
		return code
	}

	data, err := recipes.Export(recipe.Name, *format)
	if err != nil {
		fmt.Fprintf(a.errOut, "export: %v\n", err)
		return 1
	}
	if _, err := a.out.Write(data); err != nil {
		fmt.Fprintf(a.errOut, "write: %v\n", err)
		return 1
	}
	if *format == cipher.FormatJSON {
		fmt.Fprintln(a.out)
	}
	return 0
}

func (a *app) runRecipeImport(recipes *cipher.RecipeManager, args []string) int {
	fs := a.flagSet("recipe import")
	format := fs.StringP("format", "f", "", "input format: json, yaml or cbor (default from the file extension)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.errOut, "recipe import takes one file (use - for stdin)")
		return 2
	}

	path := fs.Arg(0)
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		fmt.Fprintf(a.errOut, "read recipe: %v\n", err)
		return 1
	}

	f := *format
	if f == "" {
		f = formatFromPath(path)
	}
	recipe, err := recipes.Import(data, f)
	if err != nil {
		fmt.Fprintf(a.errOut, "import: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "imported %s\n", recipe.Name)
	return 0
}

func (a *app) runRecipeDelete(recipes *cipher.RecipeManager, args []string) int {
	fs := a.flagSet("recipe delete")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	recipe, code, ok := a.recipeName(recipes, fs)
	if !ok {
		return code
	}
	if err := recipes.DeleteRecipe(recipe.Name); err != nil {
		fmt.Fprintf(a.errOut, "delete: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "deleted %s\n", recipe.Name)
	return 0
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return cipher.FormatYAML
	case ".cbor":
		return cipher.FormatCBOR
	default:
		return cipher.FormatJSON
	}
}
