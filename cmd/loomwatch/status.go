package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/internal/storage"
	"github.com/benmeehan/loomwatch/pkg/file"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last persisted machine states",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := root.load()
			if err != nil {
				return err
			}

			snapshot, err := storage.NewSnapshotStore(config.Storage.SnapshotFile, file.NewFileService(), stderrLogger(config)).Load()
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no snapshot at %s, has the monitor run yet?", config.Storage.SnapshotFile)
			}
			if err != nil {
				return err
			}

			return writeStatus(cmd.OutOrStdout(), snapshot, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	return cmd
}

func writeStatus(w io.Writer, snapshot models.Snapshot, format string) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	names := make([]string, 0, len(snapshot.Machines))
	for name := range snapshot.Machines {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SITE %s\tSTATE %s\tHEARTBEAT %s\n",
		snapshot.Metadata.SiteID, snapshot.Metadata.ServiceState, snapshot.Metadata.LastHeartbeat.Format(time.RFC3339))
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MACHINE\tSTATUS\tSINCE\tADDRESS\tSECTOR")
	for _, name := range names {
		r := snapshot.Machines[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			name, models.StatusLabel(models.Status(r.Status), r.Detail), r.Since.Format("2006-01-02 15:04:05"), r.Address, r.Sector)
	}
	return tw.Flush()
}
