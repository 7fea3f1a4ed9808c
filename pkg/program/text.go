package program

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText renders nodes as aligned terminal output.
func WriteText(out io.Writer, nodes []Node) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)

	for _, n := range nodes {
		switch node := n.(type) {
		case HeaderNode:
			fmt.Fprintf(w, "%s\t\t\n", node.Text)
		case RowNode:
			fmt.Fprintf(w, "%s\t%s\t\n", node.Label, node.Value)
		case HymnNode:
			fmt.Fprintf(w, "%s\t%s\t\n", node.Label, node.Number)
			if node.Title != "" {
				fmt.Fprintf(w, "  %s\t\t\n", node.Title)
			}
		case LeaderNode:
			fmt.Fprintf(w, "%s\t%s\t\n", node.Name, node.Position)
			if node.Phone != "" {
				fmt.Fprintf(w, "  %s\t\t\n", node.Phone)
			}
		case StatementNode:
			fmt.Fprintf(w, "%s\t\t\n", node.Text)
		case StatementLinkNode:
			fmt.Fprintf(w, "%s%s%s\t\t\n", node.Before, node.URLText, node.After)
		case LinkNode:
			fmt.Fprintf(w, "%s -> %s\t\t\n", node.Text, node.URL)
		case IconLinkNode:
			fmt.Fprintf(w, "%s -> %s\t\t\n", node.Text, node.URL)
		case DividerNode:
			if node.Caption != "" {
				fmt.Fprintf(w, "---- %s ----\t\t\n", node.Caption)
			} else {
				fmt.Fprintf(w, "%s\t\t\n", strings.Repeat("-", 12))
			}
		}
	}

	return w.Flush()
}
