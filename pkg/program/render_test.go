package program

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/wardtools/wardprogram/pkg/sheet"
)

func TestRender_EndToEnd(t *testing.T) {
	csv := "key,value\n" +
		"unitName,Test Ward\n" +
		"date,August 28\n" +
		"presiding,Bishop Smith\n" +
		"speaker1,John Doe\n" +
		"openingHymn,#62 All Creatures of Our God and King\n" +
		"horizontalLine,\n" +
		"closingPrayer,Jane Doe\n"

	nodes := Render(RowsToEntries(sheet.ParseCSV(csv)))
	want := []Node{
		HeaderNode{Field: "unitName", Text: "Test Ward"},
		HeaderNode{Field: "date", Text: "August 28"},
		RowNode{Label: "Presiding", Value: "Bishop Smith"},
		RowNode{Label: "Speaker", Value: "John Doe"},
		HymnNode{Label: "Opening Hymn", Number: "#62", Title: "All Creatures of Our God and King"},
		DividerNode{},
		RowNode{Label: "Benediction", Value: "Jane Doe"},
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("expected %#v, got %#v", want, nodes)
	}
}

func TestRender_SkipsBlankValues(t *testing.T) {
	seq := Sequence{
		{Key: KeySpeaker, Value: ""},
		{Key: KeyPresiding, Value: "   "},
		{Key: KeyConducting, Value: "Brother Lee"},
	}
	nodes := Render(seq)
	if len(nodes) != 1 {
		t.Fatalf("expected blank entries skipped, got %#v", nodes)
	}
	if n, ok := nodes[0].(RowNode); !ok || n.Label != "Conducting" {
		t.Fatalf("unexpected node: %#v", nodes[0])
	}
}

func TestRender_DividerRendersWhenEmpty(t *testing.T) {
	nodes := Render(Sequence{{Key: KeyHorizontalLine, Value: ""}})
	if len(nodes) != 1 {
		t.Fatalf("expected a divider, got %#v", nodes)
	}
	if _, ok := nodes[0].(DividerNode); !ok {
		t.Fatalf("expected DividerNode, got %#v", nodes[0])
	}
}

func TestRender_DividerCaption(t *testing.T) {
	nodes := Render(Sequence{{Key: KeyHorizontalLine, Value: "Sacrament"}})
	if len(nodes) != 1 {
		t.Fatalf("expected one node, got %#v", nodes)
	}
	if n := nodes[0].(DividerNode); n.Caption != "Sacrament" {
		t.Fatalf("expected caption, got %#v", n)
	}
}

func TestSplitHymn(t *testing.T) {
	cases := []struct {
		in            string
		number, title string
	}{
		{"#62 All Creatures of Our God and King", "#62", "All Creatures of Our God and King"},
		{"62 All Creatures", "62", "All Creatures"},
		{"#100", "#100", ""},
		{"Come Thou Fount", "", "Come Thou Fount"},
		{"", "", ""},
	}
	for _, c := range cases {
		number, title := SplitHymn(c.in)
		if number != c.number || title != c.title {
			t.Fatalf("SplitHymn(%q) = %q/%q, want %q/%q", c.in, number, title, c.number, c.title)
		}
	}
}

func TestSplitLeadership(t *testing.T) {
	name, phone, position := SplitLeadership("John Doe | 555-1234 | Bishop")
	if name != "John Doe" || phone != "555-1234" || position != "Bishop" {
		t.Fatalf("unexpected split: %q/%q/%q", name, phone, position)
	}

	name, phone, position = SplitLeadership("John Doe")
	if name != "John Doe" || phone != "" || position != "" {
		t.Fatalf("expected missing parts empty, got %q/%q/%q", name, phone, position)
	}
}

func TestRender_Leader(t *testing.T) {
	nodes := Render(Sequence{{Key: KeyLeader, Value: "John Doe | 555-1234 | Bishop"}})
	want := []Node{LeaderNode{Name: "John Doe", Phone: "555-1234", Position: "Bishop"}}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("expected %#v, got %#v", want, nodes)
	}
}

func TestRender_Link(t *testing.T) {
	nodes := Render(Sequence{{Key: KeyLink, Value: "Tithing | donations.example.org"}})
	want := []Node{LinkNode{Text: "Tithing", URL: "https://donations.example.org"}}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("expected %#v, got %#v", want, nodes)
	}

	// An explicit scheme is preserved, not doubled.
	nodes = Render(Sequence{{Key: KeyLink, Value: "Tithing | http://donations.example.org"}})
	if n := nodes[0].(LinkNode); n.URL != "http://donations.example.org" {
		t.Fatalf("expected scheme preserved, got %q", n.URL)
	}
}

func TestRender_LinkGating(t *testing.T) {
	cases := []string{
		"Tithing",                         // no URL half
		"Tithing |",                       // empty URL
		" | example.org",                  // empty text
		"Tithing | javascript:alert(1)",   // unsafe scheme
	}
	for _, c := range cases {
		if nodes := Render(Sequence{{Key: KeyLink, Value: c}}); len(nodes) != 0 {
			t.Fatalf("expected %q to render nothing, got %#v", c, nodes)
		}
	}
}

func TestRender_StatementLink(t *testing.T) {
	nodes := Render(Sequence{{Key: KeyGeneralStatementWithLink, Value: "Sign up <LINK> today | example.org/form"}})
	// The anchor shows the URL as typed; only the href gets a scheme.
	want := []Node{StatementLinkNode{Before: "Sign up ", After: " today", URL: "https://example.org/form", URLText: "example.org/form"}}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("expected %#v, got %#v", want, nodes)
	}

	// Without the token the anchor goes at the end.
	nodes = Render(Sequence{{Key: KeyGeneralStatementWithLink, Value: "Sign up today | example.org/form"}})
	n := nodes[0].(StatementLinkNode)
	if n.Before != "Sign up today" || n.After != "" {
		t.Fatalf("expected whole text before the anchor, got %#v", n)
	}
}

func TestRender_IconLink(t *testing.T) {
	nodes := Render(Sequence{{Key: KeyLinkWithSpace, Value: "<IMG> Donate | example.org | https://example.org/icon.png"}})
	want := []Node{IconLinkNode{Text: "Donate", URL: "https://example.org", ImageURL: "https://example.org/icon.png"}}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("expected %#v, got %#v", want, nodes)
	}
}

func TestRender_IconLinkImageGating(t *testing.T) {
	cases := []struct {
		value string
		image string
	}{
		{"Donate | example.org", ""},
		{"Donate | example.org | NONE", ""},
		{"Donate | example.org | none", ""},
		{"Donate | example.org | javascript:alert(1)", ""},
		{"Donate | example.org | icon.png", ""}, // image URLs are not scheme-prefixed
		{"Donate | example.org | https://cdn.example.org/i.png", "https://cdn.example.org/i.png"},
	}
	for _, c := range cases {
		nodes := Render(Sequence{{Key: KeyLinkWithSpace, Value: c.value}})
		if len(nodes) != 1 {
			t.Fatalf("expected one node for %q, got %#v", c.value, nodes)
		}
		if n := nodes[0].(IconLinkNode); n.ImageURL != c.image {
			t.Fatalf("image for %q = %q, want %q", c.value, n.ImageURL, c.image)
		}
	}
}

func TestRender_StableAfterCacheRoundTrip(t *testing.T) {
	csv := "key,value\n" +
		"unitName,Test Ward\n" +
		"leader,John Doe | 555-1234 | Bishop\n" +
		"link,Tithing | example.org\n" +
		"horizontalLine,\n" +
		"closingHymn,#5 High on the Mountain Top\n"
	seq := RowsToEntries(sheet.ParseCSV(csv))

	payload, err := json.Marshal(seq)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored := DecodeSequence(string(payload))

	if !reflect.DeepEqual(Render(restored), Render(seq)) {
		t.Fatal("rendering a cached sequence diverged from the live one")
	}
}
