package linear

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

// Format selects how results are written.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatTable    Format = "table"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatMarkdown, FormatJSON, FormatCSV, FormatTable:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	default:
		return "", errors.Errorf("unknown format %q (want md, json, csv or table)", s)
	}
}

// Rows is a tabular view of a result set.
type Rows struct {
	Header []string
	Data   [][]string
}

// WriteRows renders rows in the csv, table or markdown format.
func WriteRows(w io.Writer, rows Rows, format Format) error {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(rows.Header); err != nil {
			return errors.Wrap(err, "failed to write csv")
		}
		if err := cw.WriteAll(rows.Data); err != nil {
			return errors.Wrap(err, "failed to write csv")
		}
		return nil
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.SetHeader(rows.Header)
		table.SetAutoWrapText(false)
		table.AppendBulk(rows.Data)
		table.Render()
		return nil
	default:
		var sb strings.Builder
		sb.WriteString("| " + strings.Join(rows.Header, " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat(" --- |", len(rows.Header)) + "\n")
		for _, row := range rows.Data {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = strings.ReplaceAll(cell, "|", `\|`)
			}
			sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
		_, err := io.WriteString(w, sb.String())
		return err
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "failed to encode json")
}

// Write renders v in format. JSON output is the raw objects; the other
// formats use the tabular view.
func Write(w io.Writer, v any, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, v)
	}

	var rows Rows
	switch val := v.(type) {
	case []Issue:
		rows = IssueRows(val)
	case []Team:
		rows = Rows{Header: []string{"Key", "Name", "ID"}}
		for _, t := range val {
			rows.Data = append(rows.Data, []string{t.Key, t.Name, t.ID})
		}
	case []WorkflowState:
		rows = Rows{Header: []string{"Name", "Type", "ID"}}
		for _, s := range val {
			rows.Data = append(rows.Data, []string{s.Name, s.Type, s.ID})
		}
	case []Project:
		rows = Rows{Header: []string{"Name", "State", "Progress", "URL"}}
		for _, p := range val {
			rows.Data = append(rows.Data, []string{p.Name, p.State, fmt.Sprintf("%.0f%%", p.Progress*100), p.URL})
		}
	case *User:
		rows = Rows{Header: []string{"Name", "Email", "ID"}, Data: [][]string{{val.Name, val.Email, val.ID}}}
	case *Issue:
		if format == FormatMarkdown {
			_, err := io.WriteString(w, IssueMarkdown(val))
			return err
		}
		rows = IssueRows([]Issue{*val})
	default:
		return errors.Errorf("cannot render %T", v)
	}
	return WriteRows(w, rows, format)
}

// IssueRows is the tabular view of issues.
func IssueRows(issues []Issue) Rows {
	rows := Rows{Header: []string{"ID", "Title", "State", "Assignee", "Priority", "URL"}}
	for _, i := range issues {
		rows.Data = append(rows.Data, []string{
			i.Identifier,
			i.Title,
			i.StateName(),
			i.AssigneeName(),
			priorityText(i),
			i.URL,
		})
	}
	return rows
}

func priorityText(i Issue) string {
	if i.PriorityLabel != "" {
		return i.PriorityLabel
	}
	return strconv.Itoa(i.Priority)
}

// IssueMarkdown renders a single issue with its description and comments.
func IssueMarkdown(i *Issue) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: %s\n\n", i.Identifier, i.Title)
	fmt.Fprintf(&sb, "- **State:** %s\n", orNone(i.StateName()))
	fmt.Fprintf(&sb, "- **Assignee:** %s\n", orNone(i.AssigneeName()))
	fmt.Fprintf(&sb, "- **Priority:** %s\n", priorityText(*i))
	if i.Team != nil {
		fmt.Fprintf(&sb, "- **Team:** %s\n", i.Team.Key)
	}
	if i.Project != nil {
		fmt.Fprintf(&sb, "- **Project:** %s\n", i.Project.Name)
	}
	if labels := i.LabelNames(); len(labels) > 0 {
		fmt.Fprintf(&sb, "- **Labels:** %s\n", strings.Join(labels, ", "))
	}
	fmt.Fprintf(&sb, "- **URL:** %s\n", i.URL)

	if strings.TrimSpace(i.Description) != "" {
		sb.WriteString("\n## Description\n\n")
		sb.WriteString(strings.TrimSpace(i.Description))
		sb.WriteString("\n")
	}

	if i.Comments != nil && len(i.Comments.Nodes) > 0 {
		sb.WriteString("\n## Comments\n")
		for _, c := range i.Comments.Nodes {
			author := "unknown"
			if c.User != nil {
				author = c.User.Name
			}
			fmt.Fprintf(&sb, "\n### %s (%s)\n\n%s\n", author, c.CreatedAt.Format("2006-01-02 15:04"), strings.TrimSpace(c.Body))
		}
	}
	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
