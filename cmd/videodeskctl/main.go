package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/videodesk-io/videodesk/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "health":
		cmdHealth()
	case "videos":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: videodeskctl videos <list|route|escalate>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdVideosList(os.Args[3:])
		case "route":
			if len(os.Args) < 5 {
				fmt.Fprintln(os.Stderr, "usage: videodeskctl videos route <id> <tab>")
				os.Exit(1)
			}
			cmdVideosRoute(os.Args[3], os.Args[4])
		case "escalate":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: videodeskctl videos escalate <id> [flags]")
				os.Exit(1)
			}
			cmdVideosEscalate(os.Args[3], os.Args[4:])
		default:
			fmt.Fprintf(os.Stderr, "unknown videos subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "assign":
		cmdAssign(os.Args[2:])
	case "runs":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: videodeskctl runs <list|show>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdRunsList()
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: videodeskctl runs show <id>")
				os.Exit(1)
			}
			cmdRunsShow(os.Args[3])
		default:
			fmt.Fprintf(os.Stderr, "unknown runs subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: videodeskctl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// --- Commands ---

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdVideosList(args []string) {
	fs := flag.NewFlagSet("videos list", flag.ExitOnError)
	tab := fs.String("tab", "", "Filter by tab (queue|downloaded|not_relevant|ticketed)")
	channel := fs.String("channel", "", "Filter by channel")
	search := fs.String("q", "", "Search title and channel")
	page := fs.Int("page", 1, "Page number")
	perPage := fs.Int("per-page", 50, "Results per page")
	fs.Parse(args)

	q := url.Values{}
	q.Set("page", strconv.Itoa(*page))
	q.Set("per_page", strconv.Itoa(*perPage))
	if *tab != "" {
		q.Set("tab", *tab)
	}
	if *channel != "" {
		q.Set("channel", *channel)
	}
	if *search != "" {
		q.Set("q", *search)
	}

	body, err := apiGet("/api/videos?" + q.Encode())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var resp struct {
		Videos []map[string]any `json:"videos"`
		Total  int              `json:"total"`
	}
	json.Unmarshal(body, &resp)
	for _, v := range resp.Videos {
		fmt.Printf("%-16s %-12s %-20s %s\n", v["id"], v["tab"], v["channel"], v["title"])
	}
	fmt.Printf("total: %d\n", resp.Total)
}

func cmdVideosRoute(id, tab string) {
	body, err := apiPost("/api/videos/"+id+"/route", map[string]string{"tab": tab})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdVideosEscalate(id string, args []string) {
	fs := flag.NewFlagSet("videos escalate", flag.ExitOnError)
	subject := fs.String("subject", "", "Ticket subject (required)")
	description := fs.String("description", "", "Ticket description")
	fs.Parse(args)

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "error: --subject is required")
		os.Exit(1)
	}

	body, err := apiPost("/api/videos/"+id+"/escalate", map[string]string{
		"subject":     *subject,
		"description": *description,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdAssign(args []string) {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	viewID := fs.Int64("view", 0, "View ID (default: daemon config)")
	fieldID := fs.Int64("field", 0, "Assignee custom field ID (default: daemon config)")
	agents := fs.String("agents", "", "Comma-separated agent IDs (default: daemon config)")
	fs.Parse(args)

	req := map[string]any{}
	if *viewID != 0 {
		req["view_id"] = *viewID
	}
	if *fieldID != 0 {
		req["field_id"] = *fieldID
	}
	if *agents != "" {
		var ids []int64
		for _, part := range strings.Split(*agents, ",") {
			n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: bad agent id %q\n", part)
				os.Exit(1)
			}
			ids = append(ids, n)
		}
		req["agent_ids"] = ids
	}

	body, err := apiPost("/api/assign", req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdRunsList() {
	body, err := apiGet("/api/runs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var runs []map[string]any
	json.Unmarshal(body, &runs)
	for _, r := range runs {
		fmt.Printf("%-38s total=%v started=%v\n", r["run_id"], r["total"], r["started_at"])
	}
}

func cmdRunsShow(id string) {
	body, err := apiGet("/api/runs/" + id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdConfigValidate(path string) {
	_, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func apiGet(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", apiBase()+path, nil)
	if err != nil {
		return nil, err
	}
	return apiDo(req, 10*time.Second)
}

// apiPost uses a long timeout: a paced assignment run holds the request
// open until every chunk is dispatched.
func apiPost(path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", apiBase()+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return apiDo(req, 10*time.Minute)
}

func apiDo(req *http.Request, timeout time.Duration) ([]byte, error) {
	if key := os.Getenv("VIDEODESK_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func apiBase() string {
	if v := os.Getenv("VIDEODESK_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func printUsage() {
	fmt.Println("videodeskctl — video triage desk CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health                      Check daemon health")
	fmt.Println("  videos list                 List videos (--tab, --channel, --q, --page, --per-page)")
	fmt.Println("  videos route <id> <tab>     Move a video to a tab")
	fmt.Println("  videos escalate <id>        Open a ticket for a video (--subject, --description)")
	fmt.Println("  assign                      Run round-robin assignment (--view, --field, --agents)")
	fmt.Println("  runs list                   List assignment runs")
	fmt.Println("  runs show <id>              Show run details")
	fmt.Println("  config validate <path>      Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  VIDEODESK_API_URL  Daemon URL (default: http://localhost:8080)")
	fmt.Println("  VIDEODESK_API_KEY  API key for authentication")
}
