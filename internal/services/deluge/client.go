package deluge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"time"

	"bookarr/internal/config"
	"bookarr/internal/services"
)

// HTTPDoer describes the HTTP client used by the Deluge client. The web UI
// authenticates with a session cookie, so production clients carry a cookie
// jar.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransferStatus is the subset of torrent state the importer polls for.
type TransferStatus struct {
	Name     string
	State    string
	Progress float64
	SavePath string
	Finished bool
}

// Active reports whether the transfer is moving data.
func (s TransferStatus) Active() bool {
	return s.State == "Downloading" || s.State == "Checking" || s.State == "Allocating"
}

// Client talks to a Deluge web UI endpoint over JSON-RPC.
type Client struct {
	endpoint  string
	password  string
	client    HTTPDoer
	requestID atomic.Int64
}

// New constructs a client against the given /json endpoint.
func New(endpoint, password string, client HTTPDoer) *Client {
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Jar: jar}
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		password: password,
		client:   client,
	}
}

// NewFromConfig constructs a client from the deluge config section with a
// session cookie jar and bounded per-request timeout.
func NewFromConfig(cfg *config.Config) *Client {
	if cfg == nil {
		return New("", "", nil)
	}
	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{
		Jar:     jar,
		Timeout: time.Duration(cfg.Workflow.RequestTimeoutSeconds) * time.Second,
	}
	return New(cfg.DelugeEndpoint(), cfg.Deluge.Password, httpClient)
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	ID     int64           `json:"id"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if c.endpoint == "" {
		return services.Wrap(services.ErrValidation, "deluge", method, "deluge endpoint must be configured", nil)
	}
	if params == nil {
		params = []any{}
	}

	body, err := json.Marshal(rpcRequest{Method: method, Params: params, ID: c.requestID.Add(1)})
	if err != nil {
		return services.Wrap(services.ErrUpstream, "deluge", method, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrUpstream, "deluge", method, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "deluge", method, "", err)
		}
		return services.Wrap(services.ErrUpstream, "deluge", method, "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrUpstream, "deluge", method, fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return services.Wrap(services.ErrUpstream, "deluge", method, "response was not json", err)
	}
	if len(rpc.Error) > 0 && string(rpc.Error) != "null" {
		return services.Wrap(services.ErrUpstream, "deluge", method, string(rpc.Error), nil)
	}
	if out != nil && len(rpc.Result) > 0 {
		if err := json.Unmarshal(rpc.Result, out); err != nil {
			return services.Wrap(services.ErrUpstream, "deluge", method, "decode result", err)
		}
	}
	return nil
}

// Login authenticates the session against the web UI.
func (c *Client) Login(ctx context.Context) error {
	var ok bool
	if err := c.call(ctx, "auth.login", []any{c.password}, &ok); err != nil {
		return err
	}
	if !ok {
		return services.Wrap(services.ErrUpstream, "deluge", "auth.login", "rejected password", nil)
	}
	return nil
}

// AddMagnet logs in, submits the magnet, and labels the resulting torrent.
// The returned transfer handle is the magnet's info hash. Label assignment
// is best-effort: the Label plugin may not be enabled.
func (c *Client) AddMagnet(ctx context.Context, magnetURL, label string) (string, error) {
	if !strings.HasPrefix(magnetURL, "magnet:") {
		return "", services.Wrap(services.ErrValidation, "deluge", "add magnet", "locator is not a magnet uri", nil)
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}

	transferID, _ := InfoHash(magnetURL)

	options := map[string]any{}
	if label != "" {
		options["label"] = label
	}
	if err := c.call(ctx, "core.add_torrent_magnet", []any{magnetURL, options}, nil); err != nil {
		return "", err
	}

	if label != "" && transferID != "" {
		c.call(ctx, "label.set_torrent", []any{transferID, label}, nil)
	}
	return transferID, nil
}

// statusFields are the torrent fields Status requests from the daemon.
var statusFields = []any{"name", "state", "progress", "save_path", "is_finished"}

// Status fetches the transfer state for a torrent by info hash. A torrent
// Deluge no longer knows about reports as not found.
func (c *Client) Status(ctx context.Context, transferID string) (TransferStatus, error) {
	transferID = strings.ToLower(strings.TrimSpace(transferID))
	if transferID == "" {
		return TransferStatus{}, services.Wrap(services.ErrValidation, "deluge", "status", "transfer id must not be empty", nil)
	}
	if err := c.Login(ctx); err != nil {
		return TransferStatus{}, err
	}

	var raw struct {
		Name       string  `json:"name"`
		State      string  `json:"state"`
		Progress   float64 `json:"progress"`
		SavePath   string  `json:"save_path"`
		IsFinished bool    `json:"is_finished"`
	}
	if err := c.call(ctx, "core.get_torrent_status", []any{transferID, statusFields}, &raw); err != nil {
		return TransferStatus{}, err
	}
	if raw.Name == "" && raw.State == "" {
		return TransferStatus{}, services.Wrap(services.ErrNotFound, "deluge", "status", "unknown transfer "+transferID, nil)
	}

	return TransferStatus{
		Name:     raw.Name,
		State:    raw.State,
		Progress: raw.Progress,
		SavePath: raw.SavePath,
		Finished: raw.IsFinished || raw.State == "Seeding" || raw.Progress >= 100,
	}, nil
}
