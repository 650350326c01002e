package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/config"
	"github.com/jingkaihe/skillbox/pkg/imagefit"
	"github.com/jingkaihe/skillbox/pkg/linear"
	"github.com/jingkaihe/skillbox/pkg/logger"
	"github.com/jingkaihe/skillbox/pkg/presenter"
)

// LinearCreateConfig holds the flags of `linear create`
type LinearCreateConfig struct {
	Team        string
	Title       string
	Description string
	Priority    int
	Assignee    string
	State       string
	Labels      []string
	Images      []string
	ImageKB     int
	Attachments []string
}

// NewLinearCreateConfig creates a LinearCreateConfig with default values
func NewLinearCreateConfig() *LinearCreateConfig {
	return &LinearCreateConfig{
		Priority: -1,
		ImageKB:  imagefit.DefaultTargetKB,
	}
}

func getLinearCreateConfigFromFlags(cmd *cobra.Command) *LinearCreateConfig {
	config := NewLinearCreateConfig()
	config.Team, _ = cmd.Flags().GetString("team")
	config.Title, _ = cmd.Flags().GetString("title")
	config.Description, _ = cmd.Flags().GetString("description")
	if cmd.Flags().Changed("priority") {
		config.Priority, _ = cmd.Flags().GetInt("priority")
	}
	config.Assignee, _ = cmd.Flags().GetString("assignee")
	config.State, _ = cmd.Flags().GetString("state")
	config.Labels, _ = cmd.Flags().GetStringSlice("labels")
	config.Images, _ = cmd.Flags().GetStringSlice("image")
	if kb, err := cmd.Flags().GetInt("image-kb"); err == nil {
		config.ImageKB = kb
	}
	config.Attachments, _ = cmd.Flags().GetStringSlice("attach")
	return config
}

// newLinearClient prefers a personal API key over an OAuth token.
func newLinearClient(ctx context.Context) (*linear.Client, error) {
	if key := config.Lookup(config.LinearAPIKey); key != "" {
		return linear.NewWithAPIKey(key), nil
	}
	if token := config.Lookup(config.LinearOAuthToken); token != "" {
		return linear.NewWithOAuthToken(ctx, token), nil
	}
	return nil, &config.MissingCredentialError{Name: config.LinearAPIKey}
}

func linearFormat(cmd *cobra.Command) (linear.Format, error) {
	f, _ := cmd.Flags().GetString("format")
	return linear.ParseFormat(f)
}

// linearRun wires the client and output format into a command body.
func linearRun(run func(cmd *cobra.Command, args []string, client *linear.Client, format linear.Format) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		format, err := linearFormat(cmd)
		if err != nil {
			return err
		}
		client, err := newLinearClient(cmd.Context())
		if err != nil {
			return err
		}
		return run(cmd, args, client, format)
	}
}

func priorityFlag(cmd *cobra.Command) (*int, error) {
	if !cmd.Flags().Changed("priority") {
		return nil, nil
	}
	p, _ := cmd.Flags().GetInt("priority")
	if err := linear.ValidatePriority(p); err != nil {
		return nil, err
	}
	return &p, nil
}

var linearCmd = &cobra.Command{
	Use:   "linear",
	Short: "Work with Linear issues",
	Long: `Work with Linear issues through the GraphQL API.

Authenticates with LINEAR_API_KEY, or LINEAR_OAUTH_TOKEN when no key is set.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		cmd.SetContext(logger.WithSkill(cmd.Context(), "linear"))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var linearMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the authenticated user",
	Args:  cobra.NoArgs,
	RunE: linearRun(func(cmd *cobra.Command, _ []string, client *linear.Client, format linear.Format) error {
		user, err := client.Viewer(cmd.Context())
		if err != nil {
			return err
		}
		return linear.Write(cmd.OutOrStdout(), user, format)
	}),
}

var linearTeamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List teams",
	Args:  cobra.NoArgs,
	RunE: linearRun(func(cmd *cobra.Command, _ []string, client *linear.Client, format linear.Format) error {
		teams, err := client.Teams(cmd.Context())
		if err != nil {
			return err
		}
		return linear.Write(cmd.OutOrStdout(), teams, format)
	}),
}

var linearStatesCmd = &cobra.Command{
	Use:   "states",
	Short: "List the workflow states of a team",
	Args:  cobra.NoArgs,
	RunE: linearRun(func(cmd *cobra.Command, _ []string, client *linear.Client, format linear.Format) error {
		ctx := cmd.Context()
		ref, _ := cmd.Flags().GetString("team")
		team, err := client.ResolveTeam(ctx, ref)
		if err != nil {
			return err
		}
		states, err := client.States(ctx, team.ID)
		if err != nil {
			return err
		}
		return linear.Write(cmd.OutOrStdout(), states, format)
	}),
}

var linearProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: linearRun(func(cmd *cobra.Command, _ []string, client *linear.Client, format linear.Format) error {
		limit, _ := cmd.Flags().GetInt("limit")
		projects, err := client.Projects(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return linear.Write(cmd.OutOrStdout(), projects, format)
	}),
}

var linearIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List issues",
	Args:  cobra.NoArgs,
	RunE: linearRun(func(cmd *cobra.Command, _ []string, client *linear.Client, format linear.Format) error {
		var filter linear.IssueFilter
		filter.Team, _ = cmd.Flags().GetString("team")
		filter.Assignee, _ = cmd.Flags().GetString("assignee")
		filter.State, _ = cmd.Flags().GetString("state")
		filter.Project, _ = cmd.Flags().GetString("project")
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		issues, err := client.Issues(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return linear.Write(cmd.OutOrStdout(), issues, format)
	}),
}

var linearIssueCmd = &cobra.Command{
	Use:   "issue <ID>",
	Short: "Show an issue with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: linearRun(func(cmd *cobra.Command, args []string, client *linear.Client, format linear.Format) error {
		issue, err := client.Issue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return linear.Write(cmd.OutOrStdout(), issue, format)
	}),
}

var linearSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Full text issue search",
	Args:  cobra.ExactArgs(1),
	RunE: linearRun(func(cmd *cobra.Command, args []string, client *linear.Client, format linear.Format) error {
		limit, _ := cmd.Flags().GetInt("limit")
		issues, err := client.Search(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		return linear.Write(cmd.OutOrStdout(), issues, format)
	}),
}

var linearCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an issue",
	Long: `Create an issue.

--image embeds screenshots inline in the description, compressed to fit --image-kb.
--attach uploads files and links them to the created issue; a failed upload is
reported but does not remove the issue.`,
	Args: cobra.NoArgs,
	RunE: linearRun(func(cmd *cobra.Command, _ []string, client *linear.Client, format linear.Format) error {
		ctx := cmd.Context()
		cfg := getLinearCreateConfigFromFlags(cmd)
		if cfg.Team == "" || cfg.Title == "" {
			return errors.New("--team and --title are required")
		}

		priority, err := priorityFlag(cmd)
		if err != nil {
			return err
		}

		team, err := client.ResolveTeam(ctx, cfg.Team)
		if err != nil {
			return err
		}
		input := linear.IssueInput{TeamID: team.ID, Title: cfg.Title, Priority: priority}

		if cfg.State != "" {
			state, err := client.ResolveState(ctx, team.ID, cfg.State)
			if err != nil {
				return err
			}
			input.StateID = state.ID
		}
		if cfg.Assignee != "" {
			if input.AssigneeID, err = client.ResolveAssignee(ctx, cfg.Assignee); err != nil {
				return err
			}
		}
		if input.LabelIDs, err = client.ResolveLabels(ctx, cfg.Labels); err != nil {
			return err
		}

		description, warnings, err := linear.EmbedImages(ctx, cfg.Description, cfg.Images, cfg.ImageKB)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			presenter.Warning(w)
		}
		input.Description = description

		issue, err := client.CreateIssue(ctx, input)
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Created %s: %s", issue.Identifier, issue.URL))

		if len(cfg.Attachments) > 0 {
			results, attachErr := client.AttachFiles(ctx, issue.ID, cfg.Attachments)
			for _, r := range results {
				if r.OK() {
					presenter.Success(fmt.Sprintf("Attached %s", r.Path))
				} else {
					presenter.Warning(fmt.Sprintf("Failed to attach %s at %s: %v", r.Path, r.Step, r.Err))
				}
			}
			if attachErr != nil {
				if err := linear.Write(cmd.OutOrStdout(), issue, format); err != nil {
					return err
				}
				return errors.Wrapf(attachErr, "issue %s was created but some attachments failed", issue.Identifier)
			}
		}

		return linear.Write(cmd.OutOrStdout(), issue, format)
	}),
}

var linearUpdateCmd = &cobra.Command{
	Use:   "update <ID>",
	Short: "Update an issue",
	Args:  cobra.ExactArgs(1),
	RunE: linearRun(func(cmd *cobra.Command, args []string, client *linear.Client, format linear.Format) error {
		ctx := cmd.Context()
		priority, err := priorityFlag(cmd)
		if err != nil {
			return err
		}

		input := linear.IssueInput{Priority: priority}
		input.Title, _ = cmd.Flags().GetString("title")

		if state, _ := cmd.Flags().GetString("state"); state != "" {
			issue, err := client.Issue(ctx, args[0])
			if err != nil {
				return err
			}
			if issue.Team == nil {
				return errors.Errorf("cannot resolve the team of %s", args[0])
			}
			resolved, err := client.ResolveState(ctx, issue.Team.ID, state)
			if err != nil {
				return err
			}
			input.StateID = resolved.ID
		}
		if assignee, _ := cmd.Flags().GetString("assignee"); assignee != "" {
			if input.AssigneeID, err = client.ResolveAssignee(ctx, assignee); err != nil {
				return err
			}
		}

		issue, err := client.UpdateIssue(ctx, args[0], input)
		if err != nil {
			return err
		}
		presenter.Success("Updated " + issue.Identifier)
		return linear.Write(cmd.OutOrStdout(), issue, format)
	}),
}

var linearCommentCmd = &cobra.Command{
	Use:   "comment <ID> <body>",
	Short: "Comment on an issue",
	Args:  cobra.ExactArgs(2),
	RunE: linearRun(func(cmd *cobra.Command, args []string, client *linear.Client, _ linear.Format) error {
		ctx := cmd.Context()
		issue, err := client.Issue(ctx, args[0])
		if err != nil {
			return err
		}
		comment, err := client.CreateComment(ctx, issue.ID, args[1])
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Commented on %s (%s)", issue.Identifier, comment.ID))
		return nil
	}),
}

func init() {
	defaults := NewLinearCreateConfig()
	linearCmd.PersistentFlags().StringP("format", "f", string(linear.FormatMarkdown), "Output format: md, json, csv or table")

	linearStatesCmd.Flags().String("team", "", "Team key, name or id")
	_ = linearStatesCmd.MarkFlagRequired("team")

	linearProjectsCmd.Flags().Int("limit", 50, "Maximum number of projects")

	linearIssuesCmd.Flags().String("team", "", "Team key")
	linearIssuesCmd.Flags().String("assignee", "", "'me', an email or a user id")
	linearIssuesCmd.Flags().String("state", "", "State name")
	linearIssuesCmd.Flags().String("project", "", "Project name")
	linearIssuesCmd.Flags().Int("limit", 50, "Maximum number of issues")

	linearSearchCmd.Flags().Int("limit", 50, "Maximum number of issues")

	linearCreateCmd.Flags().String("team", "", "Team key, name or id")
	linearCreateCmd.Flags().String("title", "", "Issue title")
	linearCreateCmd.Flags().StringP("description", "d", "", "Issue description in markdown")
	linearCreateCmd.Flags().Int("priority", 0, "Priority from 0 (none) to 4 (low)")
	linearCreateCmd.Flags().String("assignee", "", "'me', an email or a user id")
	linearCreateCmd.Flags().String("state", "", "State name")
	linearCreateCmd.Flags().StringSlice("labels", nil, "Comma separated label names")
	linearCreateCmd.Flags().StringSlice("image", nil, "Image to embed in the description (repeatable)")
	linearCreateCmd.Flags().Int("image-kb", defaults.ImageKB, "Size budget of each embedded image in KB")
	linearCreateCmd.Flags().StringSlice("attach", nil, "File to upload as an attachment (repeatable)")

	linearUpdateCmd.Flags().String("title", "", "New title")
	linearUpdateCmd.Flags().String("state", "", "New state name")
	linearUpdateCmd.Flags().String("assignee", "", "'me', an email or a user id")
	linearUpdateCmd.Flags().Int("priority", 0, "Priority from 0 (none) to 4 (low)")

	linearCmd.AddCommand(
		linearMeCmd,
		linearTeamsCmd,
		linearStatesCmd,
		linearProjectsCmd,
		linearIssuesCmd,
		linearIssueCmd,
		linearSearchCmd,
		linearCreateCmd,
		linearUpdateCmd,
		linearCommentCmd,
	)
	rootCmd.AddCommand(linearCmd)
}
