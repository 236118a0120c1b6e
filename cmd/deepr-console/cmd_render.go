package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eternisai/deepr-console/internal/export"
	"github.com/spf13/cobra"
)

var renderOut string

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output directory (default: the configured download dir)")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <result.json>",
	Short: "Render a saved research result to markdown and HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := export.LoadResult(args[0])
		if err != nil {
			return fmt.Errorf("load result: %w", err)
		}

		dir := renderOut
		if dir == "" {
			dir = loadConfig().DownloadDir
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		mdPath := filepath.Join(dir, export.ReportFilename(time.Now()))
		htmlPath := strings.TrimSuffix(mdPath, ".md") + ".html"

		if err := export.WriteMarkdown(result, mdPath); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
		if err := export.WriteHTML(result, htmlPath); err != nil {
			return fmt.Errorf("write html: %w", err)
		}

		fmt.Println(mdPath)
		fmt.Println(htmlPath)
		return nil
	},
}
