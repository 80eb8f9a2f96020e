package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/changerisk/internal/ai"
	"github.com/xxxsen/changerisk/internal/config"
	"github.com/xxxsen/changerisk/internal/model"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "changerisk",
		Short: "change risk analysis server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the analysis server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	var (
		subject     string
		description string
		topK        int
	)
	similarCmd := &cobra.Command{
		Use:   "similar",
		Short: "print the past changes most similar to a change",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(subject) == "" || strings.TrimSpace(description) == "" {
				return fmt.Errorf("--subject and --description are required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = cfg.TopK
			}
			ctx := cmd.Context()
			records, _, err := loadCatalog(ctx, cfg)
			if err != nil {
				return err
			}
			embedder, err := buildEmbedder(cfg)
			if err != nil {
				return err
			}
			embedder = ai.NewManager(nil, embedder, ai.ManagerConfig{EmbedTimeout: cfg.AI.EmbedTimeout})
			idx, err := buildIndex(ctx, cfg, embedder, records)
			if err != nil {
				return err
			}
			items, err := idx.TopK(ctx, model.ChangeRecord{Subject: subject, Description: description}, topK)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tID\tSCORE\tSUBJECT")
			for i, item := range items {
				fmt.Fprintf(w, "%d\t%s\t%.4f\t%s\n", i+1, item.Record.ID, item.Score, item.Record.Subject)
			}
			return w.Flush()
		},
	}
	similarCmd.Flags().StringVar(&subject, "subject", "", "change subject")
	similarCmd.Flags().StringVar(&description, "description", "", "change description")
	similarCmd.Flags().IntVar(&topK, "top-k", 0, "number of records to print, defaults to top_k from config")

	rootCmd.AddCommand(runCmd, similarCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}
