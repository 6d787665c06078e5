// Command auditctl is an operator CLI for driving a running auditsvc
// instance: trigger an index pass, start an audit, inspect a case, and
// resolve a human-approval gate — grounded on the teacher pack's own
// pflag-based CLI (vjache-cie's cmd/cie), including its convention of a
// global --json flag and NO_COLOR-aware colored output.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"
)

func main() {
	var (
		baseURL    = flag.StringP("server", "s", envOr("AUDITCTL_SERVER", "http://localhost:8080"), "auditsvc base URL")
		jsonOutput = flag.Bool("json", false, "print raw JSON responses")
		noColor    = flag.Bool("no-color", false, "disable colored output")
		timeout    = flag.Duration("timeout", 30*time.Second, "request timeout")
	)
	flag.SetInterspersed(false)
	flag.Usage = printUsage
	flag.Parse()

	if os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		*noColor = true
	}
	color.NoColor = *noColor

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	c := &client{baseURL: *baseURL, httpClient: &http.Client{Timeout: *timeout}, json: *jsonOutput}

	var err error
	switch args[0] {
	case "index":
		err = c.runIndex(args[1:])
	case "audit":
		err = c.runAudit(args[1:])
	case "status":
		err = c.runStatus(args[1:])
	case "resume":
		err = c.runResume(args[1:])
	case "logs":
		err = c.runLogs(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `auditctl - operator CLI for the compliance audit platform

Usage:
  auditctl [global flags] <command> [args]

Commands:
  index <repo_id> [ref]        Trigger an index pass for a repo
  audit <repo_id> <reg_id...>  Start an audit case against one or more regulations
  status <case_id>             Show the current state of an audit case
  resume <case_id> <approve|decline>  Resolve a waiting_approval case
  logs <case_id>                Print the case's agent log timeline

Global flags:
  -s, --server string   auditsvc base URL (default http://localhost:8080)
      --json             print raw JSON responses
      --no-color         disable colored output
      --timeout duration request timeout (default 30s)
`)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type client struct {
	baseURL    string
	httpClient *http.Client
	json       bool
}

func (c *client) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", c.baseURL+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, string(raw))
	}
	if c.json {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err == nil {
			fmt.Println(pretty.String())
		} else {
			fmt.Println(string(raw))
		}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *client) runIndex(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: auditctl index <repo_id> [ref]")
	}
	body := map[string]any{}
	if len(args) > 1 {
		body["ref"] = args[1]
	}
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(http.MethodPost, "/repos/"+args[0]+"/index", body, &out); err != nil {
		return err
	}
	if !c.json {
		fmt.Println(color.GreenString("index job enqueued: %s", out.JobID))
	}
	return nil
}

func (c *client) runAudit(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: auditctl audit <repo_id> <regulation_id...>")
	}
	body := map[string]any{"repo_id": args[0], "regulation_ids": args[1:]}
	var out struct {
		CaseID string `json:"case_id"`
	}
	if err := c.do(http.MethodPost, "/audits", body, &out); err != nil {
		return err
	}
	if !c.json {
		fmt.Println(color.GreenString("audit case started: %s", out.CaseID))
	}
	return nil
}

func (c *client) runStatus(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: auditctl status <case_id>")
	}
	var out map[string]any
	if err := c.do(http.MethodGet, "/audits/"+args[0], nil, &out); err != nil {
		return err
	}
	if !c.json {
		printStatus(out)
	}
	return nil
}

func printStatus(out map[string]any) {
	status, _ := out["status"].(string)
	step, _ := out["current_step"].(string)
	label := color.CyanString(status)
	switch status {
	case "completed":
		label = color.GreenString(status)
	case "failed":
		label = color.RedString(status)
	case "waiting_approval":
		label = color.YellowString(status)
	}
	fmt.Printf("case:   %v\nstatus: %s\nstep:   %v\n", out["case_id"], label, step)
	if tickets, ok := out["jira_ticket_ids"].([]any); ok && len(tickets) > 0 {
		fmt.Printf("tickets: %v\n", tickets)
	}
}

func (c *client) runResume(args []string) error {
	if len(args) != 2 || (args[1] != "approve" && args[1] != "decline") {
		return fmt.Errorf("usage: auditctl resume <case_id> <approve|decline>")
	}
	body := map[string]any{"decision": args[1]}
	var out map[string]any
	if err := c.do(http.MethodPost, "/audits/"+args[0]+"/resume", body, &out); err != nil {
		return err
	}
	if !c.json {
		fmt.Println(color.GreenString("resolved: %s -> %s", args[0], args[1]))
	}
	return nil
}

func (c *client) runLogs(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: auditctl logs <case_id>")
	}
	var out struct {
		Entries []struct {
			Index     int       `json:"index"`
			Agent     string    `json:"agent"`
			Message   string    `json:"message"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"entries"`
	}
	if err := c.do(http.MethodGet, "/audits/"+args[0]+"/logs", nil, &out); err != nil {
		return err
	}
	if !c.json {
		for _, e := range out.Entries {
			fmt.Printf("%s %s %s\n", e.Timestamp.Format(time.RFC3339), color.MagentaString("[%s]", e.Agent), e.Message)
		}
	}
	return nil
}
