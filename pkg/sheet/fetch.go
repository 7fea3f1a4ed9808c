package sheet

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

// DefaultTimeout bounds how long a program fetch may take before the
// in-flight request is aborted and the cached fallback kicks in.
const DefaultTimeout = 4 * time.Second

// Client fetches sheet exports over HTTP.
type Client struct {
	http    *retryablehttp.Client
	Timeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 1 * time.Second
	rc.Logger = nil
	return &Client{http: rc, Timeout: timeout}
}

// FetchCSV downloads the CSV export for sheetURL. The URL is
// normalized to the CSV export endpoint first. The context is bounded
// by the client timeout; expiry aborts the request.
func (c *Client) FetchCSV(ctx context.Context, sheetURL string) (string, error) {
	return c.fetch(ctx, CSVEndpoint(sheetURL))
}

// FetchTitle returns the spreadsheet's display title from the gviz
// JSON export. Empty when the response carries no title.
func (c *Client) FetchTitle(ctx context.Context, sheetURL string) (string, error) {
	body, err := c.fetch(ctx, JSONEndpoint(sheetURL))
	if err != nil {
		return "", err
	}
	return titleFromGviz(body), nil
}

// titleFromGviz unwraps the google.visualization.Query.setResponse(...)
// padding around the gviz JSON payload and reads the table title.
func titleFromGviz(body string) string {
	start := strings.Index(body, "(")
	end := strings.LastIndex(body, ")")
	if start < 0 || end <= start {
		return ""
	}
	payload := body[start+1 : end]
	return strings.TrimSpace(gjson.Get(payload, "table.title").String())
}

func (c *Client) fetch(ctx context.Context, endpoint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("Cache-Control", "no-transform")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	body := string(bodyBytes)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("sheet endpoint returned status %d", resp.StatusCode)
	}

	// A sheet that isn't shared publicly redirects to a sign-in page,
	// which comes back as 200 with an HTML body. Surface its title so
	// the failure is diagnosable instead of feeding HTML to the parser.
	if looksLikeHTML(resp.Header.Get("Content-Type"), body) {
		if title, ok := htmlTitle(body); ok && title != "" {
			return "", fmt.Errorf("sheet endpoint returned an HTML page (%q), not CSV", title)
		}
		return "", fmt.Errorf("sheet endpoint returned an HTML page, not CSV")
	}

	return body, nil
}

func looksLikeHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<html")
}

func htmlTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data), true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}
