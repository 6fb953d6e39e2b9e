package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	logx "wablast/pkg/logx"
)

// Gateway talks to an HTTP WhatsApp gateway:
//
//	POST {base}/send/message  {"phone": address, "message": body}
//	GET  {base}/user/check?phone=address
//	GET  {base}/group/list
//	GET  {base}{health_path}  (default /app/status)
//
// Every response is an envelope {"code", "message", "results"}.
type Gateway struct {
	cfg  Config
	log  logx.Logger
	http *http.Client
	base *url.URL

	connected atomic.Bool
	events    chan Event
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

func NewGateway(cfg Config, log logx.Logger) (*Gateway, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("transport.base_url is required for gateway driver")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("transport.base_url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 10 * time.Second
	}
	if strings.TrimSpace(cfg.HealthPath) == "" {
		cfg.HealthPath = "/app/status"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gateway{
		cfg:    cfg,
		log:    log,
		http:   &http.Client{Timeout: cfg.Timeout},
		base:   u,
		events: make(chan Event, 16),
	}, nil
}

func (g *Gateway) Connected() bool { return g.connected.Load() }

func (g *Gateway) Events() <-chan Event { return g.events }

func (g *Gateway) Send(ctx context.Context, address, body string) error {
	payload, _ := json.Marshal(map[string]string{"phone": address, "message": body})
	_, err := g.do(ctx, http.MethodPost, "/send/message", nil, payload)
	return err
}

func (g *Gateway) IsRegistered(ctx context.Context, address string) (bool, error) {
	res, err := g.do(ctx, http.MethodGet, "/user/check", url.Values{"phone": {address}}, nil)
	if err != nil {
		return false, err
	}
	var out struct {
		IsOnWhatsApp bool `json:"is_on_whatsapp"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return false, fmt.Errorf("decode user check: %w", err)
	}
	return out.IsOnWhatsApp, nil
}

func (g *Gateway) Groups(ctx context.Context) ([]Group, error) {
	res, err := g.do(ctx, http.MethodGet, "/group/list", nil, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []struct {
			JID  string `json:"JID"`
			Name string `json:"Name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fmt.Errorf("decode group list: %w", err)
	}
	groups := make([]Group, 0, len(out.Data))
	for _, d := range out.Data {
		groups = append(groups, Group{ID: d.JID, Name: d.Name})
	}
	return groups, nil
}

// Run polls the gateway health endpoint and publishes connect/disconnect
// transitions until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	g.poll(ctx)
	ticker := time.NewTicker(g.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.poll(ctx)
		}
	}
}

func (g *Gateway) poll(ctx context.Context) {
	up, detail := g.check(ctx)
	if ctx.Err() != nil {
		return
	}
	was := g.connected.Swap(up)
	if up == was {
		return
	}
	ev := Event{Kind: EventDisconnected, Time: time.Now(), Detail: detail}
	if up {
		ev.Kind = EventConnected
		g.log.Info("gateway connected")
	} else {
		g.log.Warn("gateway disconnected", logx.String("reason", detail))
	}
	select {
	case g.events <- ev:
	default:
		g.log.Warn("transport event dropped", logx.String("kind", string(ev.Kind)))
	}
}

func (g *Gateway) check(ctx context.Context) (bool, string) {
	res, err := g.do(ctx, http.MethodGet, g.cfg.HealthPath, nil, nil)
	if err != nil {
		return false, err.Error()
	}
	var st struct {
		IsConnected *bool `json:"is_connected"`
	}
	if len(res) > 0 && json.Unmarshal(res, &st) == nil && st.IsConnected != nil && !*st.IsConnected {
		return false, "session not logged in"
	}
	return true, ""
}

func (g *Gateway) do(ctx context.Context, method, path string, q url.Values, body []byte) (json.RawMessage, error) {
	u := *g.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if q != nil {
		u.RawQuery = q.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.cfg.Username != "" {
		req.SetBasicAuth(g.cfg.Username, g.cfg.Password)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var env envelope
	_ = json.Unmarshal(b, &env)
	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = strings.TrimSpace(string(b))
		}
		return nil, fmt.Errorf("gateway %s %s: %d %s", method, path, resp.StatusCode, msg)
	}
	return env.Results, nil
}
