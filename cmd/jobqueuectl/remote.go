package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/monitor"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/notify"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/websocket"
)

// apiClient reads the monitor state held by a running jobqueue service.
type apiClient struct {
	base *url.URL
	http *retry.HTTPClient
}

func newAPIClient(rawURL string, logger logging.Logger) (*apiClient, error) {
	base, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", rawURL)
	}
	cfg := retry.DefaultHTTPRetryConfig()
	cfg.RetryConfig.MaxRetries = 3
	cfg.RetryConfig.InitialDelay = 500 * time.Millisecond
	client, err := retry.NewHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &apiClient{base: base, http: client}, nil
}

func (a *apiClient) endpoint(path string, query url.Values) string {
	u := *a.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (a *apiClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint(path, query), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.http.DoWithRetry(req)
	if err != nil {
		return fmt.Errorf("jobqueue api unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode api response: %w", err)
	}
	return nil
}

// alertStreamURL maps http(s)://host/prefix to ws(s)://host/prefix/ws/alerts.
func (a *apiClient) alertStreamURL() string {
	u := *a.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/alerts"
	u.RawQuery = ""
	return u.String()
}

func (c *ctl) remote(cc *cli.Context) (*apiClient, error) {
	return newAPIClient(cc.String("api"), loggerFor(cc))
}

func (c *ctl) alertsCommand() *cli.Command {
	return &cli.Command{
		Name:  "alerts",
		Usage: "List alerts raised by the running service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Usage: "minimum level: info, warning, error, critical"},
			&cli.IntFlag{Name: "hours", Value: 24, Usage: "look-back window"},
			queueFlag,
		},
		Action: func(cc *cli.Context) error {
			if cc.Int("hours") <= 0 {
				return errors.New("--hours must be positive")
			}
			query := url.Values{"hours": {strconv.Itoa(cc.Int("hours"))}}
			if lvl := cc.String("level"); lvl != "" {
				if _, ok := types.ParseAlertLevel(lvl); !ok {
					return fmt.Errorf("unknown alert level %q", lvl)
				}
				query.Set("min_level", lvl)
			}
			if q := cc.String("queue"); q != "" {
				p, err := types.ParsePriority(q)
				if err != nil {
					return err
				}
				query.Set("queue", string(p))
			}

			api, err := c.remote(cc)
			if err != nil {
				return err
			}
			defer api.http.Close()
			var alerts []types.QueueAlert
			if err := api.getJSON(cc.Context, "/alerts", query, &alerts); err != nil {
				return err
			}
			printAlerts(c.out, alerts)
			return nil
		},
	}
}

func (c *ctl) reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Generate a monitoring report, optionally exported to a file",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "hours", Value: 24, Usage: "report window"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the report to this file"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json or yaml; defaults from the output extension, else json"},
		},
		Action: func(cc *cli.Context) error {
			format, err := reportFormat(cc.String("format"), cc.String("output"))
			if err != nil {
				return err
			}
			api, err := c.remote(cc)
			if err != nil {
				return err
			}
			defer api.http.Close()

			var report monitor.Report
			query := url.Values{"hours": {strconv.Itoa(cc.Int("hours"))}}
			if err := api.getJSON(cc.Context, "/report", query, &report); err != nil {
				return err
			}
			data, err := encodeReport(report, format)
			if err != nil {
				return err
			}

			out := cc.String("output")
			if out == "" {
				_, err := c.out.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Fprintf(c.out, "Report for the last %d hour(s) written to %s\n", report.WindowHours, out)
			return nil
		},
	}
}

func reportFormat(format, output string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".yaml", ".yml":
			return "yaml", nil
		default:
			return "json", nil
		}
	}
	switch f := strings.ToLower(format); f {
	case "json", "yaml":
		return f, nil
	case "yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

func encodeReport(r monitor.Report, format string) ([]byte, error) {
	if format == "yaml" {
		return yaml.Marshal(r)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (c *ctl) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream alerts from the running service until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Usage: "minimum level to print"},
		},
		Action: func(cc *cli.Context) error {
			minLevel := types.AlertInfo
			if lvl := cc.String("level"); lvl != "" {
				parsed, ok := types.ParseAlertLevel(lvl)
				if !ok {
					return fmt.Errorf("unknown alert level %q", lvl)
				}
				minLevel = parsed
			}
			api, err := c.remote(cc)
			if err != nil {
				return err
			}
			defer api.http.Close()

			logger := loggerFor(cc)
			client, err := websocket.NewClient(api.alertStreamURL(), websocket.DefaultConfig(), logger)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Connect(cc.Context); err != nil {
				return fmt.Errorf("failed to connect to alert stream: %w", err)
			}
			fmt.Fprintf(c.out, "Watching alerts at %s\n", api.alertStreamURL())
			return c.watch(cc.Context, client, minLevel)
		},
	}
}

type messageReader interface {
	ReadMessage(ctx context.Context) ([]byte, error)
}

// watch prints alerts until ctx ends. Interruption is not an error.
func (c *ctl) watch(ctx context.Context, r messageReader, minLevel types.AlertLevel) error {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var a types.QueueAlert
		if err := json.Unmarshal(msg, &a); err != nil {
			fmt.Fprintf(c.out, "skipping malformed alert: %v\n", err)
			continue
		}
		if a.Level.Severity() < minLevel.Severity() {
			continue
		}
		fmt.Fprintln(c.out, notify.FormatText(a))
		fmt.Fprintln(c.out)
	}
}
