package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/blockworld/internal/api/replay"
	"github.com/annel0/blockworld/internal/eventbus"
)

const (
	defaultServerAddr = "http://localhost:8088"
	timeFormat        = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		serverAddr = flag.String("server", defaultServerAddr, "REST API server address")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		dimension  = flag.String("dim", "", "Dimension filter")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m) or absolute time")
		until      = flag.String("until", "", "End time (RFC3339 format)")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		interval   = flag.Duration("interval", 2*time.Second, "Polling interval for -follow")
	)
	flag.Parse()

	client := &Client{base: strings.TrimRight(*serverAddr, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	opts := &QueryOptions{
		EventTypes: parseStringList(*eventTypes),
		Dimension:  *dimension,
		Since:      *since,
		Until:      *until,
		Limit:      *limit,
	}

	var err error
	switch *command {
	case "tail":
		err = tailEvents(client, opts, *follow, *interval)
	case "stats":
		err = showStats(client, opts)
	case "types":
		err = showTypes(client)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, types")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// QueryOptions - фильтры запроса к журналу событий
type QueryOptions struct {
	EventTypes []string
	Dimension  string
	Since      string
	Until      string
	Limit      int
}

func (o *QueryOptions) values(now time.Time) (url.Values, error) {
	q := url.Values{}
	for _, t := range o.EventTypes {
		q.Add("type", t)
	}
	if o.Dimension != "" {
		q.Set("dimension", o.Dimension)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}

	end := now
	if o.Until != "" {
		var err error
		end, err = time.Parse(timeFormat, o.Until)
		if err != nil {
			return nil, fmt.Errorf("invalid until time: %v", err)
		}
		q.Set("until", end.UTC().Format(time.RFC3339))
	}
	if o.Since != "" {
		start, err := parseSinceTime(o.Since, end)
		if err != nil {
			return nil, fmt.Errorf("invalid since time: %v", err)
		}
		q.Set("since", start.UTC().Format(time.RFC3339))
	}
	return q, nil
}

// Client - клиент отладочного REST API
type Client struct {
	base string
	http *http.Client
}

// get выполняет GET и раскладывает поле data ответа в out
func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return fmt.Errorf("%s: %d %s", path, resp.StatusCode, body.Message)
	}
	return json.Unmarshal(body.Data, out)
}

// tailEvents выводит события; с follow опрашивает сервер до Ctrl+C
func tailEvents(client *Client, opts *QueryOptions, follow bool, interval time.Duration) error {
	fmt.Printf("🎬 Tailing events (limit: %d, follow: %v)\n", opts.Limit, follow)

	seen := make(map[string]bool)
	total := 0
	for {
		q, err := opts.values(time.Now())
		if err != nil {
			return err
		}
		var page struct {
			Events []*eventbus.Envelope `json:"events"`
		}
		if err := client.get(context.Background(), "/api/events", q, &page); err != nil {
			return err
		}
		for _, ev := range page.Events {
			if seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			printEvent(ev)
			total++
		}
		if !follow {
			break
		}
		time.Sleep(interval)
	}

	fmt.Printf("\n📊 Total events: %d\n", total)
	return nil
}

// showStats выводит статистику событий
func showStats(client *Client, opts *QueryOptions) error {
	fmt.Println("📊 Event statistics")

	q, err := opts.values(time.Now())
	if err != nil {
		return err
	}
	var stats replay.EventStats
	if err := client.get(context.Background(), "/api/events/stats", q, &stats); err != nil {
		return err
	}

	if stats.Oldest != nil && stats.Newest != nil {
		fmt.Printf("Period: %s - %s\n", stats.Oldest.Format(timeFormat), stats.Newest.Format(timeFormat))
	}
	fmt.Printf("Total events: %d\n", stats.TotalEvents)
	fmt.Println("\nBy event type:")
	for t, n := range stats.EventTypes {
		fmt.Printf("  %s: %d events\n", t, n)
	}
	return nil
}

// showTypes выводит типы событий журнала
func showTypes(client *Client) error {
	fmt.Println("📋 Available event types")

	var types []string
	if err := client.get(context.Background(), "/api/events/types", nil, &types); err != nil {
		return err
	}
	for _, t := range types {
		fmt.Printf("Type: %s\n", t)
	}
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n",
		ev.Timestamp.Format("15:04:05"),
		ev.Source,
		ev.EventType,
		ev.ID)

	switch ev.EventType {
	case eventbus.TypeBlockChanged:
		fmt.Printf("  Dimension: %s Position: %s\n", ev.Metadata["dimension"], ev.Metadata["position"])
	case eventbus.TypeChunkGenerated, eventbus.TypeChunkLoaded:
		fmt.Printf("  Dimension: %s Chunk: %s\n", ev.Metadata["dimension"], ev.Metadata["chunk"])
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m"
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
