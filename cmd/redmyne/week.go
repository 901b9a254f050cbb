package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/vrognas/redmyne/internal/domain"
)

func newWeekCmd(a *App) *cobra.Command {
	var onDate string
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print the weekly grid with queued edits applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.bootstrap(cmd.Context(), cliSource)
			if err != nil {
				return err
			}
			defer rt.shutdown()
			if err := rt.requireRemote(); err != nil {
				return err
			}

			week := domain.NewWeek(time.Now())
			if strings.TrimSpace(onDate) != "" {
				week, err = domain.ParseWeek(onDate)
				if err != nil {
					return fmt.Errorf("parse --date %q: %w", onDate, err)
				}
			}

			grid, err := rt.service.LoadWeek(cmd.Context(), week)
			if err != nil {
				return err
			}
			renderWeek(grid, rt.cfg.Week.TargetHours, len(rt.service.Pending()))
			return nil
		},
	}
	cmd.Flags().StringVar(&onDate, "date", "", "any date inside the week to show (yyyy-mm-dd, default today)")
	return cmd
}

// renderWeek prints the merged grid as a table. Cells with queued edits are
// marked with a trailing asterisk, and the closing line compares the week
// total against the configured target.
func renderWeek(grid domain.Grid, targetHours float64, pending int) {
	bold := color.New(color.Bold)
	dirty := color.New(color.FgYellow)

	_, weekNo := grid.Week.Start.ISOWeek()
	_, _ = fmt.Fprintln(color.Output, bold.Sprintf("Week %d, %s to %s",
		weekNo, grid.Week, grid.Week.End().Format(domain.DateLayout)))

	merged := grid.Merged()
	if len(merged) == 0 {
		_, _ = fmt.Fprintln(color.Output, "no entries this week")
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	header := []any{bold.Sprint("Issue"), bold.Sprint("Activity"), bold.Sprint("Comment")}
	for i := 0; i < domain.DaysPerWeek; i++ {
		header = append(header, bold.Sprint(grid.Week.Day(i).Format("Mon 02")))
	}
	header = append(header, bold.Sprint("Total"))
	tbl.AddRow(header...)

	for _, row := range merged {
		cells := []any{fmt.Sprintf("#%d", row.Key.IssueID), activityLabel(row), row.Key.Comment}
		for _, c := range row.Days {
			cells = append(cells, formatMergedCell(c, dirty))
		}
		cells = append(cells, formatHoursValue(row.WeekTotal()))
		tbl.AddRow(cells...)
	}

	footer := []any{"", "", bold.Sprint("Total")}
	for _, h := range grid.DayTotals() {
		footer = append(footer, bold.Sprint(formatHoursValue(h)))
	}
	total := grid.Total()
	footer = append(footer, bold.Sprint(formatHoursValue(total)))
	tbl.AddRow(footer...)

	_, _ = fmt.Fprintln(color.Output, tbl)

	if targetHours > 0 {
		status := color.New(color.FgGreen)
		switch {
		case total < targetHours:
			status = color.New(color.FgYellow)
		case total > targetHours:
			status = color.New(color.FgRed)
		}
		_, _ = fmt.Fprintln(color.Output, status.Sprintf("%sh of %sh logged",
			formatHoursValue(total), formatHoursValue(targetHours)))
	}
	if pending > 0 {
		_, _ = fmt.Fprintln(color.Output, dirty.Sprintf("%d queued operation(s), run `redmyne commit` to apply", pending))
	}
}

func activityLabel(row domain.MergedRow) string {
	if row.ActivityName != "" {
		return row.ActivityName
	}
	return fmt.Sprintf("activity %d", row.Key.ActivityID)
}

func formatMergedCell(c domain.MergedCell, dirty *color.Color) string {
	if c.Hours == 0 && !c.Dirty {
		return "·"
	}
	label := formatHoursValue(c.Hours)
	if c.Dirty {
		return dirty.Sprint(label + "*")
	}
	return label
}

func formatHoursValue(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
