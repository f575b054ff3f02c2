package toolbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/go-go-golems/devagent/pkg/security"
	"github.com/go-go-golems/devagent/pkg/tools"
)

type curlInput struct {
	Command string `json:"command" jsonschema:"required,description=The curl arguments to execute without the leading 'curl' word"`
}

func (t *Toolbox) curlTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"curl",
		"Run a curl command inside the development container. Useful for "+
			"testing web APIs and endpoints, downloading files, and debugging "+
			"network connectivity. Example: -X GET \"http://localhost:8888/health\"",
		func(ctx context.Context, in curlInput) (string, error) {
			cmd := "curl " + in.Command
			res, err := t.executor.Execute(ctx, t.handle, cmd, 30*time.Second)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
}

const (
	fetchTimeout   = 30 * time.Second
	fetchMaxBody   = 2 << 20
	fetchMaxOutput = 20000
)

type fetchURLInput struct {
	URL string `json:"url" jsonschema:"required,description=The http(s) URL of the page to fetch"`
}

// fetchURLTool fetches a web page on the host and reduces it to readable
// text so the model does not have to wade through markup.
func fetchURLTool() (*tools.ToolDefinition, error) {
	client := &http.Client{Timeout: fetchTimeout}
	return tools.NewToolFromFunc(
		"fetch_url",
		"Fetch a web page and return its readable text content, with markup, "+
			"scripts and styles stripped.",
		func(ctx context.Context, in fetchURLInput) (string, error) {
			// Local networks stay allowed so the model can hit servers it
			// started on the sandbox's exposed port.
			if err := security.ValidateOutboundURL(in.URL, security.OutboundURLOptions{
				AllowHTTP:          true,
				AllowLocalNetworks: true,
			}); err != nil {
				return "", errors.Wrapf(err, "refusing to fetch %q", in.URL)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
			if err != nil {
				return "", errors.Wrap(err, "build request")
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", errors.Wrapf(err, "fetch %s", in.URL)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode >= 400 {
				return "", errors.Errorf("fetch %s: status %s", in.URL, resp.Status)
			}

			body := io.LimitReader(resp.Body, fetchMaxBody)
			contentType := resp.Header.Get("Content-Type")
			if !strings.Contains(contentType, "text/html") {
				raw, err := io.ReadAll(body)
				if err != nil {
					return "", errors.Wrap(err, "read response body")
				}
				return truncateOutput(string(raw)), nil
			}

			text, err := extractText(body)
			if err != nil {
				return "", err
			}
			return truncateOutput(text), nil
		})
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func extractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", errors.Wrap(err, "parse html")
	}
	doc.Find("script, style, noscript, iframe, svg").Remove()

	var b strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
	})

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text := strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
	if text == "" {
		return "(page contains no readable text)", nil
	}
	return text, nil
}

func truncateOutput(s string) string {
	if len(s) <= fetchMaxOutput {
		return s
	}
	return s[:fetchMaxOutput] + fmt.Sprintf("\n... (%d more bytes truncated)", len(s)-fetchMaxOutput)
}
