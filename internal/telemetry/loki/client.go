// Package loki ships telemetry events to Grafana Loki through its HTTP push API.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"daily-trivia/internal/telemetry/domain"
)

// Job is the stream label every pushed line carries.
const Job = "daily-trivia"

const (
	pushPath       = "/loki/api/v1/push"
	defaultTimeout = 10 * time.Second
)

// invalidLabelChars matches characters replaced with "_" in label values.
var invalidLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// PushRequest is the body of a v1 push call.
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is one label set with its [timestamp_ns, line] values.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// Entry is one log line to push.
type Entry struct {
	Time   time.Time
	Line   string
	Labels map[string]string
}

// Client pushes entries to a single Loki instance.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient returns a Client for baseURL (e.g. http://localhost:3100). A nil httpClient uses one with a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("loki: base URL is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: strings.TrimSuffix(baseURL, "/") + pushPath, http: httpClient}, nil
}

// Push sends entries in one request, one stream per distinct label set.
func (c *Client) Push(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	payload, err := json.Marshal(buildRequest(entries))
	if err != nil {
		return fmt.Errorf("loki: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

func buildRequest(entries []Entry) PushRequest {
	var (
		out   PushRequest
		index = map[string]int{}
	)
	for _, e := range entries {
		labels := streamLabels(e.Labels)
		key := labelKey(labels)
		i, ok := index[key]
		if !ok {
			i = len(out.Streams)
			index[key] = i
			out.Streams = append(out.Streams, Stream{Stream: labels})
		}
		out.Streams[i].Values = append(out.Streams[i].Values,
			[]string{strconv.FormatInt(e.Time.UnixNano(), 10), e.Line})
	}
	return out
}

// streamLabels adds job and sanitizes values; blank values are dropped.
func streamLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		if v = invalidLabelChars.ReplaceAllString(strings.TrimSpace(v), "_"); v != "" {
			out[k] = v
		}
	}
	out["job"] = Job
	return out
}

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

// EntryFromMessage turns a Kafka message value into an entry. The value is kept verbatim as the line;
// request ids stay in it rather than in the labels.
// Values that do not decode as an event are pushed at now with only the job label.
func EntryFromMessage(value []byte, now time.Time) Entry {
	entry := Entry{Time: now, Line: string(value)}
	var ev domain.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return entry
	}
	entry.Labels = EventLabels(&ev)
	if !ev.CreatedAt.IsZero() {
		entry.Time = ev.CreatedAt
	}
	return entry
}

// EventLabels returns the low-cardinality labels for ev: event type, source and, for
// http_request events, the status class and served language.
func EventLabels(ev *domain.Event) map[string]string {
	labels := map[string]string{
		"event_type": ev.EventType,
		"source":     ev.Source,
	}
	if ev.EventType != domain.EventTypeHTTPRequest || len(ev.Metadata) == 0 {
		return labels
	}
	var meta domain.HTTPRequestMetadata
	if err := json.Unmarshal(ev.Metadata, &meta); err != nil {
		return labels
	}
	if meta.Status > 0 {
		labels["status_class"] = strconv.Itoa(meta.Status/100) + "xx"
	}
	labels["lang"] = meta.Lang
	return labels
}
