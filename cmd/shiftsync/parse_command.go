package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shiftsync/internal/shift"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	var file string
	var site string

	cmd := &cobra.Command{
		Use:   "parse [fragment...]",
		Short: "Parse a shift fragment, or a saved calendar page with --file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p, err := newParser(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if strings.TrimSpace(file) != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open calendar page: %w", err)
				}
				defer f.Close()
				records, stats, err := p.ParseCalendar(f, site)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, records)
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{rec.Date, rec.Label, shift.DisplayTime(rec.Time), rec.Person, string(rec.Role)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Date", "Label", "Time", "Person", "Role"}, rows, nil))
				fmt.Fprintf(out, "%s: %d cell(s), %d fragment(s), %d skipped\n",
					stats.Month.Format("January 2006"), stats.Cells, stats.Fragments, stats.Skipped)
				return nil
			}

			if len(args) == 0 {
				return errors.New("provide a fragment to parse or --file")
			}
			res := p.Parse(strings.Join(args, " "))
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			rows := [][]string{
				{"Label", res.Label},
				{"Time", res.Time},
				{"Person", res.Person},
				{"Rule", res.Rule},
			}
			if r, err := shift.ParseRange(res.Time); err == nil {
				rows = append(rows, []string{"Minutes", strconv.Itoa(r.Duration())})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Saved roster calendar page to parse")
	cmd.Flags().StringVar(&site, "site", "St Joseph Scribe", "Site name used to derive roles for --file")
	return cmd
}
