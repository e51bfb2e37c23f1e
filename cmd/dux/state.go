package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vango-dev/dux/internal/config"
	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/storage"
)

func getCmd(flags *globalFlags) *cobra.Command {
	var (
		area   string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the persisted value of a key",
		Long: `Print the value a persistent store saved under key.

Examples:
  dux get ui.prefs
  dux get --area=session cart --pretty`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), flags, area, func(ctx context.Context, b storage.Backend) error {
				data, err := b.Load(ctx, args[0])
				if err != nil {
					return errors.FromError(err, "D001").WithKey(args[0])
				}
				if data == nil {
					return errors.New("D151").WithKey(args[0])
				}
				if pretty {
					var out bytes.Buffer
					if json.Indent(&out, data, "", "  ") == nil {
						data = out.Bytes()
					}
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&area, "area", "a", "durable", "Storage area: durable or session")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "Indent JSON values")

	return cmd
}

func setCmd(flags *globalFlags) *cobra.Command {
	var (
		area string
		raw  bool
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value|->",
		Short: "Write the persisted value of a key",
		Long: `Write value under key. Use "-" to read the value from stdin.

The value must be valid JSON unless --raw is given. Running stores that
use WithSync pick the change up.

Examples:
  dux set ui.prefs '{"theme":"dark"}'
  cat prefs.json | dux set ui.prefs -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := []byte(args[1])
			if args[1] == "-" {
				var err error
				data, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				data = bytes.TrimSpace(data)
			}
			if !raw && !json.Valid(data) {
				return errors.New("D002").WithKey(args[0]).
					WithSuggestion("Pass --raw to store a non-JSON value")
			}

			return withBackend(cmd.Context(), flags, area, func(ctx context.Context, b storage.Backend) error {
				if err := b.Save(ctx, args[0], data); err != nil {
					return errors.FromError(err, "D003").WithKey(args[0])
				}
				success("Saved %s (%d bytes)", args[0], len(data))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&area, "area", "a", "durable", "Storage area: durable or session")
	cmd.Flags().BoolVar(&raw, "raw", false, "Store the value without JSON validation")

	return cmd
}

func rmCmd(flags *globalFlags) *cobra.Command {
	var area string

	cmd := &cobra.Command{
		Use:     "rm <key>...",
		Aliases: []string{"delete"},
		Short:   "Delete persisted keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), flags, area, func(ctx context.Context, b storage.Backend) error {
				for _, key := range args {
					if err := b.Delete(ctx, key); err != nil {
						return errors.FromError(err, "D003").WithKey(key)
					}
					success("Deleted %s", key)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&area, "area", "a", "durable", "Storage area: durable or session")

	return cmd
}

func lsCmd(flags *globalFlags) *cobra.Command {
	var area string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List persisted keys",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), flags, area, func(ctx context.Context, b storage.Backend) error {
				keys, err := b.Keys(ctx)
				if err != nil {
					return errors.FromError(err, "D001")
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&area, "area", "a", "durable", "Storage area: durable or session")

	return cmd
}

// withBackend opens storage, resolves area and runs fn against its backend.
func withBackend(ctx context.Context, flags *globalFlags, area string, fn func(context.Context, storage.Backend) error) error {
	a, err := storage.ParseArea(area)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, areas, _, err := openStorage(ctx, flags)
	if err != nil {
		return err
	}
	defer areas.Close()

	b, err := areas.Backend(a)
	if err != nil {
		return err
	}

	ctx, cancel := areas.Context(ctx)
	defer cancel()

	if err := fn(ctx, b); err != nil {
		return err
	}
	if a == storage.Session && cfg.Storage.Session.Driver == config.DriverMemory {
		fmt.Fprintln(os.Stderr, "note: the session area is in memory; values do not outlive this command")
	}
	return nil
}
