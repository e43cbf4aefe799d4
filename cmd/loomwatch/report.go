package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benmeehan/loomwatch/internal/analytics"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/internal/monitor"
	"github.com/benmeehan/loomwatch/internal/storage"
	"github.com/benmeehan/loomwatch/pkg/file"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type reportOptions struct {
	machine string
	from    string
	to      string
	output  string
	top     int
}

func newReportCmd(root *rootOptions) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Availability, MTBF and MTTR from the downtime history",
		Long: `report reads closed downtime cycles from the history database and prints availability,
MTBF, MTTR, the machines that stopped most often and downtime per shift. Without --machine the
whole fleet is reported. --from defaults to today at midnight and --to to now.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := root.load()
			if err != nil {
				return err
			}
			logger := stderrLogger(config)

			now := time.Now()
			from, err := parseTime(opts.from, startOfDay(now))
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			to, err := parseTime(opts.to, now)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			history, err := storage.OpenHistory(config.Storage.HistoryDB, logger)
			if err != nil {
				return err
			}
			defer history.Close()

			fleetSize := 0
			source := monitor.NewFileMachineSource(config.Monitor.MachinesFile, file.NewFileService(), logger)
			if machines, err := source.Load(); err == nil {
				fleetSize = len(machines)
			} else {
				logger.Warn().Err(err).Msg("Machines file unavailable, sizing the fleet from the history")
			}

			report, err := analytics.NewAnalyzer(history).Report(cmd.Context(), opts.machine, from, to, fleetSize, opts.top)
			if err != nil {
				return err
			}

			return writeReport(cmd.OutOrStdout(), report, opts.output)
		},
	}

	cmd.Flags().StringVar(&opts.machine, "machine", "", "machine name, empty for the whole fleet")
	cmd.Flags().StringVar(&opts.from, "from", "", "period start (RFC3339, \"2006-01-02 15:04\" or \"2006-01-02\")")
	cmd.Flags().StringVar(&opts.to, "to", "", "period end, exclusive")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	cmd.Flags().IntVar(&opts.top, "top", 5, "number of top offenders to list")
	return cmd
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseTime accepts the layouts above in the local time zone. An empty value yields def.
func parseTime(value string, def time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func writeReport(w io.Writer, report analytics.Report, format string) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "table", "":
		return writeReportTable(w, report)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeReportTable(w io.Writer, report analytics.Report) error {
	kpi := report.KPI
	scope := kpi.Machine
	if scope == "" {
		scope = "fleet"
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SCOPE\t%s\n", scope)
	fmt.Fprintf(tw, "PERIOD\t%s .. %s\n", kpi.From.Format("2006-01-02 15:04"), kpi.To.Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "STOPS\t%d\n", kpi.Stops)
	fmt.Fprintf(tw, "DOWNTIME (min)\t%.2f\n", kpi.DowntimeMinutes)
	fmt.Fprintf(tw, "AVAILABILITY (%%)\t%.2f\n", kpi.Availability)
	fmt.Fprintf(tw, "MTBF (min)\t%.2f\n", kpi.MTBF)
	fmt.Fprintf(tw, "MTTR (min)\t%.2f\n", kpi.MTTR)
	fmt.Fprintf(tw, "OEE (%%)\t%.2f\n", kpi.OEE)

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "SHIFT\tDOWNTIME (min)")
	for _, shift := range models.Shifts {
		fmt.Fprintf(tw, "%s\t%.2f\n", shift, report.ByShift[shift])
	}

	if len(report.Offenders) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "MACHINE\tSTOPS\tMINUTES")
		for _, o := range report.Offenders {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\n", o.Machine, o.Stops, o.Minutes)
		}
	}
	return tw.Flush()
}
