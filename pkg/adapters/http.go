package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPAdapter calls a REST endpoint and extracts a weekly series from the
// JSON response with gjson paths.
//
// Example for a surveillance API:
//
//	adapter := &HTTPAdapter{
//	    URL:       "https://api.example.com/surveillance/{{.Series}}",
//	    Headers:   map[string]string{"Authorization": "Bearer {{.Token}}"},
//	    ValuePath: "weeks.#.cases",
//	    TimePath:  "weeks.#.week",
//	    TemplateVars: map[string]string{"Series": "flu", "Token": "..."},
//	}
type HTTPAdapter struct {
	// URL is the endpoint to call (required). It may use template variables.
	URL string

	// Method defaults to GET.
	Method string

	// Headers are added to the request. Values can use template variables.
	Headers map[string]string

	// Body is the request body template.
	Body string

	// ValuePath is the gjson path of the incidence values, e.g. "data.#.value".
	// JSON null marks an unobserved week.
	ValuePath string

	// TimePath is the optional gjson path of the times. It must return as
	// many elements as ValuePath. Without it times are 0,1,2,...
	TimePath string

	// TimeFormat selects how times are read:
	//   "number"  - numeric week index (default)
	//   "rfc3339" - RFC3339 strings, converted to weeks since the first one
	//   "unix"    - Unix seconds, converted to weeks since the first one
	TimeFormat string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are available in URL, Body and Headers templates.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

const week = 7 * 24 * time.Hour

// Collect implements Adapter.
func (h *HTTPAdapter) Collect(ctx context.Context) (*Series, error) {
	if err := h.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}

	data := map[string]any{"Now": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range h.TemplateVars {
		data[k] = v
	}

	url, err := renderTemplate(h.URL, data)
	if err != nil {
		return nil, fmt.Errorf("render url template: %w", err)
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if h.Body != "" {
		body, err := renderTemplate(h.Body, data)
		if err != nil {
			return nil, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, data)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return h.parse(respBody)
}

func (h *HTTPAdapter) parse(body []byte) (*Series, error) {
	values := gjson.GetBytes(body, h.ValuePath)
	if !values.Exists() {
		return nil, fmt.Errorf("value path %q not found in response", h.ValuePath)
	}
	valArray := values.Array()

	ys := make([]float64, len(valArray))
	for i, v := range valArray {
		if v.Type == gjson.Null {
			ys[i] = math.NaN()
			continue
		}
		ys[i] = v.Float()
	}

	if h.TimePath == "" {
		return newSeries(nil, ys)
	}

	times := gjson.GetBytes(body, h.TimePath)
	if !times.Exists() {
		return nil, fmt.Errorf("time path %q not found in response", h.TimePath)
	}
	tsArray := times.Array()
	if len(tsArray) != len(valArray) {
		return nil, fmt.Errorf("value count (%d) != time count (%d)", len(valArray), len(tsArray))
	}

	ts, err := h.parseTimes(tsArray)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(ts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return ts[idx[a]] < ts[idx[b]] })

	s := &Series{Times: make([]float64, len(ts)), Values: make([]float64, len(ts))}
	for k, i := range idx {
		s.Times[k] = ts[i]
		s.Values[k] = ys[i]
	}
	return newSeries(s.Times, s.Values)
}

func (h *HTTPAdapter) parseTimes(raw []gjson.Result) ([]float64, error) {
	out := make([]float64, len(raw))
	switch h.TimeFormat {
	case "", "number":
		for i, r := range raw {
			out[i] = r.Float()
		}
		return out, nil
	}

	stamps := make([]time.Time, len(raw))
	for i, r := range raw {
		switch h.TimeFormat {
		case "rfc3339":
			t, err := time.Parse(time.RFC3339, r.String())
			if err != nil {
				return nil, fmt.Errorf("parse time[%d]: %w", i, err)
			}
			stamps[i] = t
		case "unix":
			stamps[i] = time.Unix(r.Int(), 0).UTC()
		default:
			return nil, fmt.Errorf("unsupported time format: %s", h.TimeFormat)
		}
	}

	first := stamps[0]
	for _, t := range stamps[1:] {
		if t.Before(first) {
			first = t
		}
	}
	for i, t := range stamps {
		out[i] = float64(t.Sub(first)) / float64(week)
	}
	return out, nil
}

// renderTemplate renders a text template with the given data.
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateConfig checks that the adapter is usable.
func (h *HTTPAdapter) ValidateConfig() error {
	if h.URL == "" {
		return errors.New("url is required")
	}
	if h.ValuePath == "" {
		return errors.New("valuePath is required")
	}
	switch h.TimeFormat {
	case "", "number", "rfc3339", "unix":
	default:
		return fmt.Errorf("invalid timeFormat: %s (must be number, rfc3339, or unix)", h.TimeFormat)
	}
	return nil
}
