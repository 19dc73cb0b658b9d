package cli

import (
	"meal-plan-generator/internal/api/handlers"
	"meal-plan-generator/internal/core/job"
	"meal-plan-generator/internal/pkg/common"

	"github.com/spf13/cobra"
)

func init() {
	day := &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "Show the plan for one day",
		Args:  cobra.ExactArgs(1),
		RunE:  runDay,
	}

	replace := &cobra.Command{
		Use:   "replace",
		Short: "Replace one meal slot",
		Long:  "Picks another safe recipe from the pool; trial and premium tiers fall back to generation when the pool has nothing.",
		RunE:  runReplace,
	}
	replace.Flags().String("day", "", "Day (YYYY-MM-DD)")
	replace.Flags().String("meal", "", "Meal type: breakfast, lunch, snack or dinner")
	replace.Flags().StringSlice("exclude", nil, "Titles that must not be picked")
	replace.Flags().Bool("prefer-ai", false, "Skip the pool and generate (trial and premium only)")
	replace.MarkFlagRequired("day")
	replace.MarkFlagRequired("meal")

	RootCmd.AddCommand(day, replace)
}

func runDay(cmd *cobra.Command, args []string) error {
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
	d, err := c.Day(cmd.Context(), owner, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), d)
}

func runReplace(cmd *cobra.Command, args []string) error {
	day, _ := cmd.Flags().GetString("day")
	meal, _ := cmd.Flags().GetString("meal")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	preferAI, _ := cmd.Flags().GetBool("prefer-ai")

	profiles, err := loadProfiles()
	if err != nil {
		return err
	}

	c := newClient(settings())
	defer c.Close()
	resp, err := c.Replace(cmd.Context(), handlers.ReplaceSlotRequest{
		Profiles:      profiles,
		Selected:      selected,
		Tier:          common.Tier(tierFlag),
		DayKey:        day,
		MealType:      common.MealType(meal),
		ExcludeTitles: exclude,
		PreferAI:      preferAI,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}
