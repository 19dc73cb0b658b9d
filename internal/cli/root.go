// Package cli 實作 planctl 命令列工具
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"meal-plan-generator/internal/client"
	"meal-plan-generator/internal/infrastructure/config"
	"meal-plan-generator/internal/infrastructure/kv"
	"meal-plan-generator/internal/pkg/common"

	"github.com/spf13/cobra"
)

var (
	serverURL    string
	timeout      time.Duration
	profilesPath string
	selected     string
	tierFlag     string
)

// RootCmd 最上層命令
var RootCmd = &cobra.Command{
	Use:           "planctl",
	Short:         "Drive meal plan generation jobs",
	Long:          "Start, follow, continue and cancel meal plan jobs on a plan service, and replace single slots.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Plan service URL (default: client.base_url)")
	RootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default: client.request_timeout)")
	RootCmd.PersistentFlags().StringVarP(&profilesPath, "profiles", "p", "profiles.json", "JSON file with the household member profiles")
	RootCmd.PersistentFlags().StringVar(&selected, "member", "", "Member id, or \"family\" for the whole household")
	RootCmd.PersistentFlags().StringVar(&tierFlag, "tier", string(common.TierFree), "Subscription tier: free, trial or premium")
}

// settings 設定檔與旗標合併後的客戶端設定
func settings() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		cfg = config.Default()
	}
	if serverURL != "" {
		cfg.Client.BaseURL = serverURL
	}
	if timeout > 0 {
		cfg.Client.RequestTimeout = timeout
	}
	return cfg
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(cfg.Client)
}

// markerStore 續跑標記存放；啟用 Redis 時跨程序保存
func markerStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	if cfg.Redis.Enabled {
		return kv.NewRedisStore(ctx, cfg.Redis, 24*time.Hour)
	}
	return kv.NewMemoryStore(config.CacheConfig{MaxSize: 100, TTL: 24 * time.Hour}), nil
}

func loadProfiles() ([]common.Profile, error) {
	data, err := os.ReadFile(profilesPath)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var profiles []common.Profile
	if err := common.ParseJSONBytes(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles in %s", profilesPath)
	}
	return profiles, nil
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
