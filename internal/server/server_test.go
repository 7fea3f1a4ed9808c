package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/wardtools/wardprogram/internal/loader"
	"github.com/wardtools/wardprogram/pkg/storage"
)

type fetchFunc func(ctx context.Context, sheetURL string) (string, error)

func (f fetchFunc) FetchCSV(ctx context.Context, sheetURL string) (string, error) {
	return f(ctx, sheetURL)
}

const testCSV = "key,value\n" +
	"unitName,Test Ward\n" +
	"unitAddress,123 Main St~ Springfield\n" +
	"date,August 28\n" +
	"speaker1,John Doe\n" +
	"openingHymn,#62 All Creatures of Our God and King\n" +
	"leader,Bishop Smith | 555-1234 | Bishop\n" +
	"link,Tithing | donations.example.org\n" +
	"horizontalLine,\n" +
	"generalStatement,Welcome to our meeting\n" +
	"generalStatementWithLink,Sign up <LINK> today | example.org/form\n"

func newTestServer(t *testing.T, csv string, user, pass string) (*httptest.Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fetch := fetchFunc(func(ctx context.Context, sheetURL string) (string, error) {
		return csv, nil
	})
	s, err := New(db, loader.New(db, fetch), user, pass)
	if err != nil {
		t.Fatalf("server construction failed: %v", err)
	}
	handler, err := s.Handler()
	if err != nil {
		t.Fatalf("handler construction failed: %v", err)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, db
}

func seedSource(t *testing.T, db *storage.DB) {
	t.Helper()
	if _, err := db.UpsertProfile(context.Background(), "https://docs.google.com/spreadsheets/d/seed", "", ""); err != nil {
		t.Fatalf("seed profile failed: %v", err)
	}
}

func TestProgramPage_HTML(t *testing.T) {
	ts, db := newTestServer(t, testCSV, "", "")
	seedSource(t, db)

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := doc.Find("#unitname").Text(); got != "Test Ward" {
		t.Fatalf("expected unit name in header, got %q", got)
	}
	if got := doc.Find("#unitaddress").Text(); got != "123 Main St, Springfield" {
		t.Fatalf("expected address with tilde decoded, got %q", got)
	}
	if got := doc.Find("#date").Text(); got != "August 28" {
		t.Fatalf("expected date, got %q", got)
	}

	// Speaker row renders as a dotted leader line.
	found := false
	doc.Find(".leader-of-dots").Each(func(i int, sel *goquery.Selection) {
		if sel.Find(".label").Text() == "Speaker" && sel.Find(".value-on-right").Text() == "John Doe" {
			found = true
		}
	})
	if !found {
		t.Fatal("expected a Speaker row")
	}

	// Hymn: number on the dotted line, title below it.
	hymnOK := false
	doc.Find(".hymn-row").Each(func(i int, sel *goquery.Selection) {
		if sel.Find(".label").Text() == "Opening Hymn" && sel.Find(".value-on-right").Text() == "#62" {
			if sel.Parent().Find(".hymn-title").Text() == "All Creatures of Our God and King" {
				hymnOK = true
			}
		}
	})
	if !hymnOK {
		t.Fatal("expected the opening hymn with its title")
	}

	// Divider and statement.
	if doc.Find("hr.hr-text").Length() != 1 {
		t.Fatal("expected one divider")
	}
	if !strings.Contains(doc.Find(".general-statement").Text(), "Welcome to our meeting") {
		t.Fatal("expected the general statement")
	}

	// Every anchor opens in a new tab without an opener reference.
	anchors := doc.Find("a[href^='http']")
	if anchors.Length() == 0 {
		t.Fatal("expected at least one link")
	}
	anchors.Each(func(i int, sel *goquery.Selection) {
		if target, _ := sel.Attr("target"); target != "_blank" {
			t.Fatalf("anchor %d missing target=_blank", i)
		}
		if rel, _ := sel.Attr("rel"); rel != "noopener noreferrer" {
			t.Fatalf("anchor %d missing rel, got %q", i, rel)
		}
	})

	// The scheme was prefixed onto the bare link URL.
	if href, _ := doc.Find(".link-center a").Attr("href"); href != "https://donations.example.org" {
		t.Fatalf("unexpected link href %q", href)
	}

	// The inline anchor shows the URL as the author typed it while the
	// href carries the scheme.
	inline := doc.Find(".general-link")
	if inline.Text() != "example.org/form" {
		t.Fatalf("expected the raw URL as anchor text, got %q", inline.Text())
	}
	if href, _ := inline.Attr("href"); href != "https://example.org/form" {
		t.Fatalf("unexpected inline href %q", href)
	}
}

func TestProgramPage_NoSource(t *testing.T) {
	ts, _ := newTestServer(t, testCSV, "", "")

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.Contains(doc.Find("#main-program").Text(), "Scan a program QR code to begin.") {
		t.Fatal("expected the no-source message")
	}
	if _, hidden := doc.Find("#program-header").Attr("class"); !hidden {
		t.Fatal("expected the header hidden without a program")
	}
}

func TestProgramPage_EscapesValues(t *testing.T) {
	// A value the sanitizer let through must still be HTML-escaped by
	// the template layer.
	csv := "key,value\nunitName,Ward & Co <3\nspeaker1,Alice\n"
	ts, db := newTestServer(t, csv, "", "")
	seedSource(t, db)

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(res.Body)
	if strings.Contains(buf.String(), "Ward & Co <3") {
		t.Fatal("value rendered unescaped")
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := doc.Find("#unitname").Text(); got != "Ward & Co <3" {
		t.Fatalf("expected escaped round trip, got %q", got)
	}
}

func TestAPIProgram(t *testing.T) {
	ts, db := newTestServer(t, testCSV, "", "")
	seedSource(t, db)

	res, err := http.Get(ts.URL + "/api/program?reload=true")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()

	var resp struct {
		Status  string            `json:"status"`
		Offline bool              `json:"offline"`
		Nodes   []json.RawMessage `json:"nodes"`
		Profile *storage.Profile  `json:"profile"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Status != "loaded" {
		t.Fatalf("expected loaded, got %q", resp.Status)
	}
	if len(resp.Nodes) == 0 {
		t.Fatal("expected nodes")
	}
	if resp.Profile == nil || resp.Profile.UnitName != "Test Ward" {
		t.Fatalf("expected profile metadata, got %#v", resp.Profile)
	}

	// Each node carries its kind tag.
	var first struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(resp.Nodes[0], &first); err != nil || first.Kind == "" {
		t.Fatalf("expected kind-tagged nodes, got %s err=%v", resp.Nodes[0], err)
	}
}

func TestAPIProfiles(t *testing.T) {
	ts, db := newTestServer(t, testCSV, "", "")
	ctx := context.Background()
	db.UpsertProfile(ctx, "https://x/a", "A Ward", "")
	b, _ := db.UpsertProfile(ctx, "https://x/b", "B Ward", "")

	res, err := http.Get(ts.URL + "/api/profiles")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()

	var resp struct {
		Profiles   []storage.Profile `json:"profiles"`
		SelectedID string            `json:"selectedId"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(resp.Profiles))
	}
	if resp.SelectedID != b.ID {
		t.Fatalf("expected %q selected, got %q", b.ID, resp.SelectedID)
	}
}

func TestAPISelectAndRemoveProfile(t *testing.T) {
	ts, db := newTestServer(t, testCSV, "", "")
	ctx := context.Background()
	a, _ := db.UpsertProfile(ctx, "https://x/a", "A Ward", "")
	db.UpsertProfile(ctx, "https://x/b", "B Ward", "")

	body, _ := json.Marshal(map[string]string{"id": a.ID})
	res, err := http.Post(ts.URL+"/api/profiles/select", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	selected, _ := db.GetSelected(ctx)
	if selected == nil || selected.ID != a.ID {
		t.Fatalf("expected profile A selected, got %#v", selected)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/profiles?id="+a.ID, nil)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if p, _ := db.GetProfile(ctx, a.ID); p != nil {
		t.Fatalf("expected profile removed, got %#v", p)
	}
}

func TestAPIScanFlow(t *testing.T) {
	ts, db := newTestServer(t, testCSV, "", "")

	post := func(path, body string) (*http.Response, scanResponse) {
		t.Helper()
		res, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s failed: %v", path, err)
		}
		defer res.Body.Close()
		var sr scanResponse
		json.NewDecoder(res.Body).Decode(&sr)
		return res, sr
	}

	res, sr := post("/api/scan/start", "")
	if res.StatusCode != http.StatusOK || sr.State != "scanning" {
		t.Fatalf("start: %d %#v", res.StatusCode, sr)
	}

	// Starting twice conflicts.
	res, _ = post("/api/scan/start", "")
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for double start, got %d", res.StatusCode)
	}

	// A non-sheet code is rejected and the scan stays open.
	res, sr = post("/api/scan/decoded", `{"data":"WIFI:T:WPA;S:net;P:x;;"}`)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid code, got %d", res.StatusCode)
	}
	if sr.State != "scanning" {
		t.Fatalf("expected still scanning, got %q", sr.State)
	}

	res, sr = post("/api/scan/decoded", `{"data":"https://docs.google.com/spreadsheets/d/abc123/edit"}`)
	if res.StatusCode != http.StatusOK || sr.State != "pendingConfirmation" {
		t.Fatalf("decoded: %d %#v", res.StatusCode, sr)
	}
	if sr.URL != "https://docs.google.com/spreadsheets/d/abc123/edit" {
		t.Fatalf("unexpected candidate url %q", sr.URL)
	}

	// Confirm loads the source and creates its profile.
	res2, err := http.Post(ts.URL+"/api/scan/confirm", "application/json", nil)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	defer res2.Body.Close()
	var pr struct {
		Status string `json:"status"`
	}
	json.NewDecoder(res2.Body).Decode(&pr)
	if pr.Status != "loaded" {
		t.Fatalf("expected loaded after confirm, got %q", pr.Status)
	}
	selected, _ := db.GetSelected(context.Background())
	if selected == nil || selected.URL != "https://docs.google.com/spreadsheets/d/abc123/edit" {
		t.Fatalf("expected scanned source selected, got %#v", selected)
	}

	// Confirm without a pending candidate conflicts.
	res, _ = post("/api/scan/confirm", "")
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for stray confirm, got %d", res.StatusCode)
	}

	// Cancel always succeeds and allows a restart.
	res, sr = post("/api/scan/cancel", "")
	if res.StatusCode != http.StatusOK || sr.State != "cancelled" {
		t.Fatalf("cancel: %d %#v", res.StatusCode, sr)
	}
	res, _ = post("/api/scan/start", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected restart after cancel, got %d", res.StatusCode)
	}
}

func TestNetworkRestoredEndpoint(t *testing.T) {
	ts, db := newTestServer(t, testCSV, "", "")
	seedSource(t, db)

	res, err := http.Post(ts.URL+"/api/network-restored", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	ts, db := newTestServer(t, testCSV, "admin", "secret")
	seedSource(t, db)

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	req.SetBasicAuth("admin", "wrong")
	res, _ = http.DefaultClient.Do(req)
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad password, got %d", res.StatusCode)
	}

	req.SetBasicAuth("admin", "secret")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", res.StatusCode)
	}
}

func TestStaticFiles(t *testing.T) {
	ts, _ := newTestServer(t, testCSV, "", "")

	res, err := http.Get(ts.URL + "/static/style.css")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for stylesheet, got %d", res.StatusCode)
	}
}
