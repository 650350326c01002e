package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/config"
	"github.com/jingkaihe/skillbox/pkg/jina"
	"github.com/jingkaihe/skillbox/pkg/logger"
)

func getJinaReadOptionsFromFlags(cmd *cobra.Command) jina.ReadOptions {
	var opts jina.ReadOptions
	opts.Format, _ = cmd.Flags().GetString("format")
	opts.Selector, _ = cmd.Flags().GetString("selector")
	opts.WaitFor, _ = cmd.Flags().GetString("wait-for")
	opts.NoCache, _ = cmd.Flags().GetBool("no-cache")
	opts.Links, _ = cmd.Flags().GetBool("links")
	opts.Images, _ = cmd.Flags().GetBool("images")
	opts.Timeout, _ = cmd.Flags().GetDuration("timeout")
	return opts
}

func newJinaClient(ctx context.Context) *jina.Client {
	key := config.Lookup(config.JinaAPIKey)
	if key == "" {
		logger.G(ctx).Debug("JINA_API_KEY is not set, requests are rate limited")
	}
	return jina.New(key)
}

var jinaCmd = &cobra.Command{
	Use:   "jina",
	Short: "Read web pages and search the web through Jina",
	Long: `Read web pages as markdown through r.jina.ai and search the web through s.jina.ai.

JINA_API_KEY is optional; without it requests are rate limited.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		cmd.SetContext(logger.WithSkill(cmd.Context(), "jina"))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var jinaReadCmd = &cobra.Command{
	Use:   "read <url>",
	Short: "Read a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := newJinaClient(cmd.Context()).Read(cmd.Context(), args[0], getJinaReadOptionsFromFlags(cmd))
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), page)
		}
		fmt.Fprint(cmd.OutOrStdout(), page.Markdown())
		return nil
	},
}

var jinaSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the web",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts jina.SearchOptions
		opts.Site, _ = cmd.Flags().GetString("site")
		opts.Limit, _ = cmd.Flags().GetInt("limit")

		results, err := newJinaClient(cmd.Context()).Search(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), results)
		}
		fmt.Fprint(cmd.OutOrStdout(), jina.ResultsMarkdown(results))
		return nil
	},
}

func init() {
	jinaCmd.PersistentFlags().Bool("json", false, "Print the raw JSON result")

	jinaReadCmd.Flags().String("format", "", "Return format: markdown, html, text or screenshot")
	jinaReadCmd.Flags().String("selector", "", "CSS selector of the content to extract")
	jinaReadCmd.Flags().String("wait-for", "", "CSS selector to wait for before reading")
	jinaReadCmd.Flags().Bool("no-cache", false, "Bypass the reader cache")
	jinaReadCmd.Flags().Bool("links", false, "Append a summary of the page links")
	jinaReadCmd.Flags().Bool("images", false, "Append a summary of the page images")
	jinaReadCmd.Flags().Duration("timeout", 0, "Page load timeout, e.g. 30s")

	jinaSearchCmd.Flags().String("site", "", "Restrict results to a site")
	jinaSearchCmd.Flags().Int("limit", 5, "Maximum number of results")

	jinaCmd.AddCommand(jinaReadCmd, jinaSearchCmd)
	rootCmd.AddCommand(jinaCmd)
}
