package agentcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blehid/hog-agent/internal/hogsvc"
	"github.com/blehid/hog-agent/internal/hogsvc/hidreport"
	"github.com/blehid/hog-agent/pkg/agent"
	"github.com/spf13/cobra"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "hog-agent"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() *agent.Agent

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.Config{
		DataDir:   filepath.Join(configDir, "data"),
		HogConfig: filepath.Join(configDir, "hog.yml"),
	}
	rootCmd := &cobra.Command{
		Use:   "hog-agent",
		Short: "HID-over-GATT peripheral agent",
		Long:  `hog-agent runs the HID-over-GATT report pipeline of a BLE peripheral: it tracks notification subscriptions and dispatches encoded input reports to the GATT transport.`,
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.HogConfig, "hog-config", cfg.HogConfig, "HoG config file")
	rootCmd.AddCommand(NewRun(&cfg))
	rootCmd.AddCommand(NewShowReportMap(&cfg))
	return rootCmd
}

func NewRun(cfg *agent.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the HoG agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := agent.NewAgent(*cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}
}

func NewShowReportMap(cfg *agent.Config) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show-report-map",
		Short: "Print the HID report map for the configured report set",
		RunE: func(cmd *cobra.Command, args []string) error {
			hogCfg, err := hogsvc.LoadConfig(cfg.HogConfig)
			if err != nil {
				return err
			}
			reportMap := hidreport.ReportMap(hogCfg.Reports)
			if raw {
				_, err := cmd.OutOrStdout().Write(reportMap)
				return err
			}
			summary := struct {
				Reports hidreport.Config `json:"reports"`
				Size    int              `json:"size"`
				Bytes   string           `json:"bytes"`
			}{
				Reports: hogCfg.Reports,
				Size:    len(reportMap),
				Bytes:   fmt.Sprintf("%x", reportMap),
			}
			jsonB, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw report map bytes")
	return cmd
}
