package adapters

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/epicast/epicast/pkg/epidemic"
	"github.com/epicast/epicast/pkg/httpx"
	epicasttls "github.com/epicast/epicast/pkg/tls"
)

// New creates an adapter from its kind and a flat configuration map.
//
// Supported kinds and keys:
//   - "simulate": population, i0, repo, infectiousPeriod, weeks, daysPerWeek,
//     observedWeeks, seed
//   - "file": path, valueColumn, timeColumn
//   - "http": url, method, body, valuePath, timePath, timeFormat,
//     headers (JSON object), templateVars (JSON object), timeout (duration),
//     tlsCaFile, tlsCertFile, tlsKeyFile (any of them enables TLS)
func New(kind string, config map[string]string) (Adapter, error) {
	switch kind {
	case "simulate":
		return newSimulate(config)
	case "file":
		return newFile(config)
	case "http":
		return newHTTP(config)
	default:
		return nil, fmt.Errorf("unknown adapter kind: %s (must be simulate, file, or http)", kind)
	}
}

func newSimulate(config map[string]string) (Adapter, error) {
	var (
		a   SimulateAdapter
		err error
	)
	num := func(key string, def float64) float64 {
		if err != nil {
			return 0
		}
		v, ok := config[key]
		if !ok || v == "" {
			return def
		}
		var f float64
		f, err = strconv.ParseFloat(v, 64)
		if err != nil {
			err = fmt.Errorf("simulate adapter: invalid %s %q: %w", key, v, err)
		}
		return f
	}

	weeks := int(num("weeks", 32))
	days := int(num("daysPerWeek", 7))
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, fmt.Errorf("simulate adapter: daysPerWeek must be > 0, got %d", days)
	}
	// time runs in weeks, one simulation step per day
	a.Params = epidemic.Params{
		N:                int(num("population", 1000)),
		I0:               int(num("i0", 5)),
		Repo:             num("repo", 2),
		InfectiousPeriod: num("infectiousPeriod", 2),
		Start:            0,
		End:              float64(weeks),
		Dt:               1 / float64(days),
	}
	a.Weeks = weeks
	a.ObservedWeeks = int(num("observedWeeks", 0))
	a.Seed = uint64(num("seed", 1))
	if err != nil {
		return nil, err
	}
	if err := a.Params.Validate(); err != nil {
		return nil, fmt.Errorf("simulate adapter: %w", err)
	}
	return &a, nil
}

func newFile(config map[string]string) (Adapter, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("file adapter requires 'path' config")
	}
	return &FileAdapter{
		Path:        path,
		ValueColumn: config["valueColumn"],
		TimeColumn:  config["timeColumn"],
	}, nil
}

func newHTTP(config map[string]string) (Adapter, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http adapter requires 'url' config")
	}
	if config["valuePath"] == "" {
		return nil, fmt.Errorf("http adapter requires 'valuePath' config")
	}

	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	var templateVars map[string]string
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &templateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}

	timeout := 10 * time.Second
	if v := config["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid 'timeout' %q", v)
		}
		timeout = d
	}
	tlsCfg := epicasttls.Config{
		CAFile:   config["tlsCaFile"],
		CertFile: config["tlsCertFile"],
		KeyFile:  config["tlsKeyFile"],
	}
	tlsCfg.Enabled = tlsCfg.CAFile != "" || tlsCfg.CertFile != "" || tlsCfg.KeyFile != ""
	client, err := httpx.NewClient(tlsCfg, timeout)
	if err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}

	h := &HTTPAdapter{
		URL:          url,
		Method:       config["method"],
		Headers:      headers,
		Body:         config["body"],
		ValuePath:    config["valuePath"],
		TimePath:     config["timePath"],
		TimeFormat:   config["timeFormat"],
		TemplateVars: templateVars,
		HTTPClient:   client,
	}
	if err := h.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}
	return h, nil
}
