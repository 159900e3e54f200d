package insightsflowctl

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunTablesCommand(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dataset":"analytics","tables":["kpi_viewers"]}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "tables"}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodGet || gotPath != "/v1/tables" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if !strings.Contains(stdout.String(), `"dataset": "analytics"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunSchemaCommand(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"table":"kpi_viewers","schema":[]}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "schema", "kpi_viewers"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/tables/kpi_viewers/schema" {
		t.Fatalf("path = %s", gotPath)
	}
}

func TestRunQueryCommandFromFile(t *testing.T) {
	var gotMethod, gotPath, gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"data":[{"channel":"web","revenue":30}],"warnings":[]}`))
	}))
	defer srv.Close()

	requestPath := filepath.Join(t.TempDir(), "request.json")
	if err := os.WriteFile(requestPath, []byte(`{"table_name":"kpi_sales","columns":["channel"]}`+"\n"), 0o600); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "query", requestPath}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/query-data" || gotContentType != "application/json" {
		t.Fatalf("request = %s %s (%s)", gotMethod, gotPath, gotContentType)
	}
	if gotBody != `{"table_name":"kpi_sales","columns":["channel"]}` {
		t.Fatalf("body = %q", gotBody)
	}
	// Row keys keep the server's order.
	if strings.Index(stdout.String(), "channel") > strings.Index(stdout.String(), "revenue") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunQueryCommandFromStdin(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "query", "-"}, Options{
		Stdin: strings.NewReader(`{"table_name":"kpi_sales","columns":["channel"]}`),
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(gotBody, "kpi_sales") {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestRunQueryRejectsInvalidJSON(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "query", "-"}, Options{
		Stdin:  strings.NewReader(`{"table_name":`),
		Stderr: &stderr,
	})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if called {
		t.Fatal("invalid request must not reach the server")
	}
}

func TestRunAuditCommandPassesLimit(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"entries":[]}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "-limit", "5", "audit"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotQuery != "limit=5" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"TABLE_NOT_ALLOWED"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "schema", "secrets"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "TABLE_NOT_ALLOWED") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{{"unknown"}, {"schema"}, {"query"}, {}} {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("args %v exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("args %v: expected usage output", args)
		}
	}
}
