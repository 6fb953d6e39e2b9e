package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wablast/internal/app"
	logx "wablast/pkg/logx"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect stored broadcast jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs with their schedule and last run",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := app.OpenStore(cfgPath, logx.NewWriter(cmd.ErrOrStderr(), "warn"))
		if err != nil {
			return err
		}
		defer st.Close()

		jobs, err := st.Load(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(jobs)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSCHEDULE\tRECIPIENTS\tLAST RUN")
		for _, j := range jobs {
			last := "-"
			if j.LastRun != nil {
				last = fmt.Sprintf("%s %s (%d/%d)", j.LastRun.Time.Format("2006-01-02 15:04"), j.LastRun.Status, j.LastRun.Sent, j.LastRun.Sent+j.LastRun.Failed)
			}
			status := string(j.Status)
			if j.Unreadable() {
				status = "unreadable"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.ID, status, j.ScheduleString(), j.RecipientString(nil), last)
		}
		return w.Flush()
	},
}

func init() {
	jobsListCmd.Flags().BoolP("json", "j", false, "output the raw job records as JSON")
	jobsCmd.AddCommand(jobsListCmd)
}
