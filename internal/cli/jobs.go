package cli

import (
	"fmt"

	"meal-plan-generator/internal/core/job"
	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/pkg/common"

	"github.com/spf13/cobra"
)

func init() {
	start := &cobra.Command{
		Use:   "start",
		Short: "Create a plan job without running it",
		RunE:  runStart,
	}
	start.Flags().StringP("type", "t", string(plan.JobWeek), "Job type: day or week")
	start.Flags().String("start-day", "", "First day (YYYY-MM-DD, default today)")
	start.Flags().StringSlice("meals", nil, "Meal subset for a day job")

	run := &cobra.Command{
		Use:   "run <job-id>",
		Short: "Ask the server to execute a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(settings())
			defer c.Close()
			if err := c.Run(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "accepted")
			return nil
		},
	}

	poll := &cobra.Command{
		Use:   "poll <job-id>",
		Short: "Show a job's status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(settings())
			defer c.Close()
			j, err := c.Poll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), j)
		},
	}

	cont := &cobra.Command{
		Use:   "continue <job-id>",
		Short: "Continue a job that stopped on its time budget",
		Args:  cobra.ExactArgs(1),
		RunE:  runContinue,
	}
	cont.Flags().Int("from", -1, "Slot index to continue from (default: the job's progress)")

	cancel := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(settings())
			defer c.Close()
			if err := c.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
			return nil
		},
	}

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Show the newest job for the selected member",
		RunE:  runLatest,
	}
	latest.Flags().StringP("type", "t", string(plan.JobWeek), "Job type: day or week")

	RootCmd.AddCommand(start, run, poll, cont, cancel, latest)
}

func runStart(cmd *cobra.Command, args []string) error {
	jobType, _ := cmd.Flags().GetString("type")
	startDay, _ := cmd.Flags().GetString("start-day")
	meals, _ := cmd.Flags().GetStringSlice("meals")

	profiles, err := loadProfiles()
	if err != nil {
		return err
	}
	req := job.StartRequest{
		Profiles: profiles,
		Selected: selected,
		Tier:     common.Tier(tierFlag),
		Type:     plan.JobType(jobType),
		StartDay: startDay,
	}
	for _, m := range meals {
		req.MealTypes = append(req.MealTypes, common.MealType(m))
	}

	c := newClient(settings())
	defer c.Close()
	j, err := c.Start(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), j)
}

func runContinue(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetInt("from")

	c := newClient(settings())
	defer c.Close()
	if from < 0 {
		j, err := c.Poll(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		from = j.ProgressDone
	}
	if err := c.Continue(cmd.Context(), args[0], from); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "accepted from %d\n", from)
	return nil
}

func runLatest(cmd *cobra.Command, args []string) error {
	jobType, _ := cmd.Flags().GetString("type")

	profiles, err := loadProfiles()
	if err != nil {
		return err
	}
	owner, err := job.StartRequest{Profiles: profiles, Selected: selected, Tier: common.Tier(tierFlag)}.Owner()
	if err != nil {
		return err
	}

	c := newClient(settings())
	defer c.Close()
	j, err := c.Latest(cmd.Context(), owner, plan.JobType(jobType))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), j)
}
