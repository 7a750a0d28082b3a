// Package main provides the stash command line tool for offline maintenance
// of the stored document: export, import, archive and stats. Stop the
// desktop server first when using the file or sqlite store.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/stash/internal/config"
	"github.com/kimhsiao/stash/internal/export"
	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/persist"
	"github.com/kimhsiao/stash/internal/store"
	"github.com/kimhsiao/stash/internal/view"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	logging.Init(os.Stderr, logging.LevelWarn)
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stash",
		Short:         "Maintain the stash document offline",
		Version:       Version,
		SilenceUsage: true,
	}
	root.AddCommand(newExportCmd(), newImportCmd(), newArchiveCmd(), newStatsCmd())
	return root
}

// openAdapter opens the configured store.
func openAdapter() (*persist.Adapter, error) {
	cfg := config.Load()
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}
	kv, err := persist.Open(cfg.Store, cfg.DataDir, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store, err)
	}
	return persist.NewAdapter(kv), nil
}

// openOutput returns stdout for "" or "-", otherwise a new file.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the document as JSON (" + persist.ExportFilename + ")",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := openAdapter()
			if err != nil {
				return err
			}
			defer adapter.Close()

			w, closeOut, err := openOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := export.NewService().WriteJSON(w, adapter.Load(cmd.Context())); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", persist.ExportFilename, "output file, - for stdout")
	return cmd
}

func newArchiveCmd() *cobra.Command {
	var output, password string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Write a tar.gz backup, encrypted when --password is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := openAdapter()
			if err != nil {
				return err
			}
			defer adapter.Close()

			res, err := export.NewService().ArchiveFile(output, adapter.Load(cmd.Context()), export.ArchiveConfig{Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, %d blocks, %d channels)\n",
				res.FilePath, res.SizeBytes, res.Manifest.BlockCount, res.Manifest.ChannelCount)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "stash_backup.tar.gz", "output file")
	cmd.Flags().StringVar(&password, "password", "", "encrypt with this password")
	return cmd
}

func newImportCmd() *cobra.Command {
	var input, password string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the document with a JSON export or archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()

			doc, _, err := export.NewService().Restore(f, password)
			if err != nil {
				return err
			}
			repaired, report, err := store.Repair(doc)
			if err != nil {
				return err
			}

			adapter, err := openAdapter()
			if err != nil {
				return err
			}
			defer adapter.Close()

			if err := adapter.Save(cmd.Context(), repaired); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d blocks, %d channels (%d orphaned blocks dropped)\n",
				len(repaired.Blocks), len(repaired.Channels), len(report.DroppedBlocks))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", persist.ExportFilename, "backup file")
	cmd.Flags().StringVar(&password, "password", "", "password of an encrypted archive")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print block counts per channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := openAdapter()
			if err != nil {
				return err
			}
			defer adapter.Close()

			doc := adapter.Load(cmd.Context())
			counts := make(map[string]int, len(doc.Channels))
			for _, b := range doc.Blocks {
				counts[b.ChannelID]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d blocks in %d channels\n", len(doc.Blocks), len(doc.Channels))
			groups := view.GroupChannels(doc.Channels)
			for _, ch := range groups.Ungrouped {
				fmt.Fprintf(out, "  %-24s %d\n", ch.Title, counts[ch.ID])
			}
			for _, v := range groups.Verticals {
				fmt.Fprintf(out, "%s\n", v)
				for _, ch := range groups.ByVertical[v] {
					fmt.Fprintf(out, "  %-24s %d\n", ch.Title, counts[ch.ID])
				}
			}
			return nil
		},
	}
}
