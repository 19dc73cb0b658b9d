package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"meal-plan-generator/internal/client"
	"meal-plan-generator/internal/core/job"
	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/infrastructure/kv"
	"meal-plan-generator/internal/pkg/common"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a day or week plan and wait until it finishes",
		Long: "Starts a plan job (or resumes an unfinished one for the same member and type), " +
			"polls it, and continues it automatically when the server stops on its time budget.",
		RunE: runGenerate,
	}

	cmd.Flags().StringP("type", "t", string(plan.JobWeek), "Job type: day or week")
	cmd.Flags().String("start-day", "", "First day (YYYY-MM-DD, default today)")
	cmd.Flags().StringSlice("meals", nil, "Meal subset for a day job (breakfast,lunch,snack,dinner)")
	cmd.Flags().Int("auto-continue", -1, "Automatic continuations (default: client.auto_continue_attempts)")

	RootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	jobType, _ := cmd.Flags().GetString("type")
	startDay, _ := cmd.Flags().GetString("start-day")
	meals, _ := cmd.Flags().GetStringSlice("meals")
	autoContinue, _ := cmd.Flags().GetInt("auto-continue")

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
	owner, err := req.Owner()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := settings()
	c := newClient(cfg)
	defer c.Close()

	markers, err := markerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer markers.Close()
	seedMarker(ctx, c, markers, owner, req.Type)

	dcfg := job.DriverConfig{
		AutoContinueAttempts: cfg.Client.AutoContinueAttempts,
		ContinueBackoff:      cfg.Client.ContinueBackoff,
	}
	if autoContinue >= 0 {
		dcfg.AutoContinueAttempts = autoContinue
	}

	stderr := cmd.ErrOrStderr()
	d := job.NewDriver(c, markers, dcfg).OnProgress(func(j *plan.GenerationJob) {
		fmt.Fprintf(stderr, "%s %s %d/%d\n", j.ID, j.Status, j.ProgressDone, j.ProgressTotal)
	})

	j, err := d.Generate(ctx, req)
	if err != nil {
		if j != nil {
			_ = printJSON(cmd.OutOrStdout(), j)
		}
		return err
	}
	if j.Partial() {
		fmt.Fprintln(stderr, "Stopped on the time budget, run generate again to continue.")
	}
	return printJSON(cmd.OutOrStdout(), j)
}

// seedMarker 本機沒有續跑標記時，向伺服器查詢最新的未完成任務
func seedMarker(ctx context.Context, c *client.Client, markers kv.Store, owner string, jobType plan.JobType) {
	key := job.MarkerKey(owner, jobType)
	if _, ok, err := markers.Get(ctx, key); err != nil || ok {
		return
	}
	latest, err := c.Latest(ctx, owner, jobType)
	if err != nil {
		return
	}
	if latest.Status == plan.StatusRunning || latest.Partial() {
		_ = markers.Set(ctx, key, latest.ID, 0)
	}
}
