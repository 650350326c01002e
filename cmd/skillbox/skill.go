package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/skills"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Show the documentation of each skill",
	Long: `List and show the SKILL.md documentation of every skill.

Built-in skills ship with the binary. Skills placed in ./.skillbox/skills/<name>/SKILL.md
or ~/.skillbox/skills/<name>/SKILL.md are listed too and take precedence over
built-ins with the same name.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available skills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		discovery, err := skills.NewDiscovery()
		if err != nil {
			return err
		}
		list, err := discovery.List()
		if err != nil {
			return err
		}
		renderSkillTable(cmd.OutOrStdout(), list)
		return nil
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the documentation of a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		discovery, err := skills.NewDiscovery()
		if err != nil {
			return err
		}
		skill, err := discovery.GetSkill(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), skill.Content)
		return nil
	},
}

func init() {
	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	rootCmd.AddCommand(skillCmd)
}

func renderSkillTable(w io.Writer, list []*skills.Skill) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Description", "Source"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, s := range list {
		table.Append([]string{s.Name, s.Description, s.Source})
	}
	table.Render()
}
