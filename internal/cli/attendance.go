package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/attendance"
)

func newAttendanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Record and read daily attendance",
	}

	mark := &cobra.Command{
		Use:   "mark <label>",
		Short: "Mark attendance for an identity on the current UTC date",
		Args:  cobra.ExactArgs(1),
		RunE:  run(runAttendanceMark),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the labels recorded on a date, in arrival order",
		Args:  cobra.NoArgs,
		RunE:  run(runAttendanceList),
	}
	list.Flags().String("date", "", "Date as YYYY-MM-DD (default: today, UTC)")

	cmd.AddCommand(mark, list)
	return cmd
}

func runAttendanceMark(ctx context.Context, cmd *cobra.Command, args []string, e *env) error {
	event, err := e.service.MarkAttendance(ctx, args[0])
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return printJSON(cmd, event)
	}
	fmt.Fprintf(out(cmd), "%s marked present on %s at %s\n",
		event.Label, event.Date, event.At.Format(time.RFC3339))
	return nil
}

func runAttendanceList(ctx context.Context, cmd *cobra.Command, _ []string, e *env) error {
	date := mustGetString(cmd, "date")
	if date == "" {
		date = time.Now().UTC().Format(attendance.DateLayout)
	}

	labels, err := e.backend.Attendance.Entries(ctx, date)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		if labels == nil {
			labels = []string{}
		}
		return printJSON(cmd, labels)
	}
	for _, label := range labels {
		fmt.Fprintln(out(cmd), label)
	}
	return nil
}
