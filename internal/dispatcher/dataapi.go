package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDataAPIDisabled is returned when no data API base URL is configured.
var ErrDataAPIDisabled = errors.New("data api not configured")

// DataAPI fetches agronomy datasets from the upstream data backend. Responses
// are either wrapped as {"success": bool, "data": ...} or bare JSON.
type DataAPI struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDataAPI creates a data API client. An empty baseURL disables it.
func NewDataAPI(baseURL string, timeout time.Duration, httpClient *http.Client, logger *slog.Logger) *DataAPI {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &DataAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Enabled reports whether a base URL is configured.
func (d *DataAPI) Enabled() bool {
	return d != nil && d.baseURL != ""
}

type dataResponse struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// fetch GETs path with params and decodes the payload into out.
func (d *DataAPI) fetch(ctx context.Context, path string, params url.Values, out any) error {
	if !d.Enabled() {
		return ErrDataAPIDisabled
	}

	endpoint := d.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("data api %s: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			d.logger.Debug("failed to close data api response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("data api %s returned status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return decodeData(path, body, out)
}

// decodeData unwraps a {"success", "data"} envelope, or decodes a bare JSON
// body as the payload itself.
func decodeData(path string, body []byte, out any) error {
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) == nil {
		_, hasData := fields["data"]
		_, hasSuccess := fields["success"]
		if hasData || hasSuccess {
			var raw dataResponse
			if err := json.Unmarshal(body, &raw); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			if raw.Success != nil && !*raw.Success {
				if raw.Error != "" {
					return fmt.Errorf("data api %s: %s", path, raw.Error)
				}
				return fmt.Errorf("data api %s reported failure", path)
			}
			body = raw.Data
		}
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("data api %s: empty data", path)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}

// Ping checks that the data API answers.
func (d *DataAPI) Ping(ctx context.Context) error {
	if !d.Enabled() {
		return ErrDataAPIDisabled
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.baseURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping data api: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
