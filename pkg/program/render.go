package program

import (
	"regexp"
	"strings"

	"github.com/wardtools/wardprogram/pkg/sanitize"
)

// Node is one structured output item produced by rendering. Writers
// (terminal text, HTML templates) consume nodes; they never see raw
// markup, and placeholder tokens have already been decoded into
// structural fields by the time a node exists.
type Node interface {
	// NodeKind names the node type; HTML templates are keyed by it.
	NodeKind() string
}

// HeaderNode carries the page-header fields: unitName, unitAddress or
// date.
type HeaderNode struct {
	Field string
	Text  string
}

// RowNode is a fixed label with the value right-aligned.
type RowNode struct {
	Label string
	Value string
}

// HymnNode is a labeled row whose value is the hymn number, with the
// title on a secondary line.
type HymnNode struct {
	Label  string
	Number string
	Title  string
}

// LeaderNode renders a leadership entry: name as the label, position
// right-aligned, phone on a secondary line.
type LeaderNode struct {
	Name     string
	Phone    string
	Position string
}

// StatementNode is a free-form text block.
type StatementNode struct {
	Text string
}

// StatementLinkNode is a text block with an inline anchor where the
// <LINK> token sat. The anchor shows the URL as the author typed it
// (URLText); URL is the scheme-qualified href.
type StatementLinkNode struct {
	Before  string
	After   string
	URL     string
	URLText string
}

// LinkNode is a single centered anchor.
type LinkNode struct {
	Text string
	URL  string
}

// IconLinkNode is an anchor with an optional decorative image before
// it. ImageURL is empty when no image should render.
type IconLinkNode struct {
	Text     string
	URL      string
	ImageURL string
}

// DividerNode is a visual separator. Caption, when present, is
// attached as associated data.
type DividerNode struct {
	Caption string
}

func (HeaderNode) NodeKind() string        { return "header" }
func (RowNode) NodeKind() string           { return "row" }
func (HymnNode) NodeKind() string          { return "hymn" }
func (LeaderNode) NodeKind() string        { return "leader" }
func (StatementNode) NodeKind() string     { return "statement" }
func (StatementLinkNode) NodeKind() string { return "statementLink" }
func (LinkNode) NodeKind() string          { return "link" }
func (IconLinkNode) NodeKind() string      { return "iconLink" }
func (DividerNode) NodeKind() string       { return "divider" }

var hymnPattern = regexp.MustCompile(`^(#?\d+)\s*(.*)$`)

// SplitHymn separates a leading hymn number token from the title.
// When the pattern doesn't match, the whole value is the title.
func SplitHymn(value string) (number, title string) {
	m := hymnPattern.FindStringSubmatch(value)
	if m == nil {
		return "", value
	}
	return m[1], m[2]
}

// SplitLeadership decodes a leader value into name, phone and
// position. Missing sub-fields come back empty.
func SplitLeadership(value string) (name, phone, position string) {
	parts := strings.Split(value, "|")
	get := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	return get(0), get(1), get(2)
}

// ensureScheme prefixes https:// when the URL lacks a scheme, matching
// how authors abbreviate links in the sheet.
func ensureScheme(u string) string {
	if strings.HasPrefix(u, "http") {
		return u
	}
	return "https://" + u
}

// Render turns a sequence into ordered output nodes. Blank values are
// skipped, except the divider key, which is a separator rather than a
// content field and renders even when empty. Entries whose composite
// value fails its own gating (missing halves, unsafe URLs) render
// nothing; a single bad row never aborts the program.
func Render(seq Sequence) []Node {
	var nodes []Node
	for _, e := range seq {
		if strings.TrimSpace(e.Value) == "" {
			if e.Key == KeyHorizontalLine {
				nodes = append(nodes, DividerNode{})
			}
			continue
		}
		if n := renderEntry(e); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func renderEntry(e Entry) Node {
	switch e.Key {
	case KeyUnitName:
		return HeaderNode{Field: "unitName", Text: e.Value}
	case KeyUnitAddress:
		return HeaderNode{Field: "unitAddress", Text: e.Value}
	case KeyDate:
		return HeaderNode{Field: "date", Text: e.Value}
	case KeyPresiding:
		return RowNode{Label: "Presiding", Value: e.Value}
	case KeyConducting:
		return RowNode{Label: "Conducting", Value: e.Value}
	case KeyMusicDirector:
		return RowNode{Label: "Music Director", Value: e.Value}
	case KeyMusicOrganist:
		return RowNode{Label: "Organist", Value: e.Value}
	case KeyOpeningPrayer:
		return RowNode{Label: "Invocation", Value: e.Value}
	case KeyClosingPrayer:
		return RowNode{Label: "Benediction", Value: e.Value}
	case KeySpeaker:
		return RowNode{Label: "Speaker", Value: e.Value}
	case KeyHymn:
		return hymnNode("Hymn", e.Value)
	case KeyOpeningHymn:
		return hymnNode("Opening Hymn", e.Value)
	case KeySacramentHymn:
		return hymnNode("Sacrament Hymn", e.Value)
	case KeyIntermediateHymn:
		return hymnNode("Intermediate Hymn", e.Value)
	case KeyClosingHymn:
		return hymnNode("Closing Hymn", e.Value)
	case KeyLeader:
		name, phone, position := SplitLeadership(e.Value)
		return LeaderNode{Name: name, Phone: phone, Position: position}
	case KeyGeneralStatement:
		return StatementNode{Text: e.Value}
	case KeyGeneralStatementWithLink:
		return renderStatementLink(e.Value)
	case KeyLink:
		return renderLink(e.Value)
	case KeyLinkWithSpace:
		return renderIconLink(e.Value)
	case KeyHorizontalLine:
		return DividerNode{Caption: e.Value}
	}
	// Unknown keys cannot survive sanitization, but a stale cache
	// payload is not worth a panic.
	return nil
}

func hymnNode(label, value string) Node {
	number, title := SplitHymn(value)
	return HymnNode{Label: label, Number: number, Title: title}
}

func renderStatementLink(value string) Node {
	parts := strings.Split(value, "|")
	if len(parts) < 2 {
		return nil
	}
	text := strings.TrimSpace(parts[0])
	rawURL := strings.TrimSpace(parts[1])
	if text == "" || rawURL == "" {
		return nil
	}

	safeURL := ensureScheme(rawURL)
	if !sanitize.IsSafeURL(safeURL) {
		return nil
	}

	before, after, _ := strings.Cut(text, "<LINK>")
	return StatementLinkNode{Before: before, After: after, URL: safeURL, URLText: rawURL}
}

func renderLink(value string) Node {
	parts := strings.Split(value, "|")
	if len(parts) < 2 {
		return nil
	}
	text := strings.TrimSpace(parts[0])
	rawURL := strings.TrimSpace(parts[1])
	if text == "" || rawURL == "" {
		return nil
	}

	safeURL := ensureScheme(rawURL)
	if !sanitize.IsSafeURL(safeURL) {
		return nil
	}

	return LinkNode{Text: text, URL: safeURL}
}

func renderIconLink(value string) Node {
	parts := strings.Split(value, "|")
	if len(parts) < 2 {
		return nil
	}
	text := strings.TrimSpace(parts[0])
	rawURL := strings.TrimSpace(parts[1])
	if text == "" || rawURL == "" {
		return nil
	}

	safeURL := ensureScheme(rawURL)
	if !sanitize.IsSafeURL(safeURL) {
		return nil
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, "<IMG>", ""))

	imageURL := ""
	if len(parts) >= 3 {
		img := strings.TrimSpace(parts[2])
		if img != "" && !strings.EqualFold(img, "NONE") && sanitize.IsSafeURL(img) {
			imageURL = img
		}
	}

	return IconLinkNode{Text: text, URL: safeURL, ImageURL: imageURL}
}
