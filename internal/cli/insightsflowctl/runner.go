package insightsflowctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   []byte
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("insightsflowctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "InsightsFlow API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	limit := fs.Int("limit", 0, "entry count for the audit command")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	req, err := buildRequest(fs.Args(), *limit, defaults.Stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req, endpoint)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(args []string, limit int, stdin io.Reader) (request, error) {
	command := strings.TrimSpace(args[0])
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "tables":
		return request{method: http.MethodGet, path: "/v1/tables"}, nil
	case "schema":
		if len(args) != 2 || strings.TrimSpace(args[1]) == "" {
			return request{}, errors.New("schema requires exactly one table name")
		}
		return request{method: http.MethodGet, path: "/v1/tables/" + url.PathEscape(strings.TrimSpace(args[1])) + "/schema"}, nil
	case "query":
		if len(args) != 2 {
			return request{}, errors.New("query requires a JSON file path or - for stdin")
		}
		body, err := readQueryBody(args[1], stdin)
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/query-data", body: body}, nil
	case "audit":
		path := "/v1/query-audit"
		if limit > 0 {
			path += "?limit=" + strconv.Itoa(limit)
		}
		return request{method: http.MethodGet, path: path}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func readQueryBody(source string, stdin io.Reader) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if source == "-" {
		if stdin == nil {
			return nil, errors.New("stdin is not available")
		}
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read query request: %w", err)
	}
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("query request in %s is not valid JSON", source)
	}
	return body, nil
}

func doRequest(ctx context.Context, client *http.Client, in request, endpoint string) (int, []byte, error) {
	var body io.Reader
	if in.body != nil {
		body = bytes.NewReader(in.body)
	}
	req, err := http.NewRequestWithContext(ctx, in.method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var formatted bytes.Buffer
	if err := json.Indent(&formatted, bytes.TrimSpace(raw), "", "  "); err != nil {
		return "", false
	}
	return formatted.String(), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: insightsflowctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                 GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                  GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  tables                 GET /v1/tables")
	_, _ = fmt.Fprintln(w, "  schema <table>         GET /v1/tables/{table}/schema")
	_, _ = fmt.Fprintln(w, "  query <file.json|->    POST /v1/query-data")
	_, _ = fmt.Fprintln(w, "  audit                  GET /v1/query-audit (use -limit)")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
