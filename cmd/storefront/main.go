package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/storefront/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(context.WithoutCancel(ctx)); err == nil {
		err = cerr
	}
	if err != nil {
		errors.PrintError(stderr, err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "storefront",
		Short: "Storefront session, catalog and upload tools",
		Long: `Storefront manages the signed-in customer session and talks to the
catalog API and the upload service.

The session is kept in the configured durable storage (a local file by
default) and restored on every command:

  • session: sign in, inspect and sign out
  • catalog: browse the landing page and products
  • upload:  run the image upload service`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoConfig] == "true" {
				return nil
			}
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configDir, "config-dir", "",
		"Directory holding storefront.json (default: nearest parent of the working directory)")

	rootCmd.AddCommand(
		sessionCmd(a),
		catalogCmd(a),
		uploadCmd(a),
		configCmd(a),
		versionCmd(),
	)

	return rootCmd
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
