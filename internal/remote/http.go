package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"namecache/internal/models"
	"namecache/internal/utils"
)

// HTTPClient 通过 HTTP JSON 接口访问名字服务
type HTTPClient struct {
	baseURL      string
	http         *http.Client
	displayNames atomic.Bool
	now          func() time.Time
}

// NewHTTPClient 创建客户端；displayNames 为能力探测前的默认值
func NewHTTPClient(baseURL string, timeout time.Duration, displayNames bool) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
	c.displayNames.Store(displayNames)
	return c
}

// SupportsDisplayNames 服务是否支持显示名
func (c *HTTPClient) SupportsDisplayNames() bool {
	return c.displayNames.Load()
}

type capabilities struct {
	DisplayNames bool `json:"display_names"`
}

// Probe 查询服务能力并更新能力标志
func (c *HTTPClient) Probe(ctx context.Context) error {
	var caps capabilities
	if err := c.do(ctx, http.MethodGet, "/capabilities", nil, &caps); err != nil {
		return err
	}
	c.displayNames.Store(caps.DisplayNames)

	logrus.WithField("显示名", caps.DisplayNames).Info("🔎 名字服务能力已探测")
	return nil
}

type idsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type legacyResponse struct {
	Names map[string]string `json:"names"`
}

// LegacyNames 批量查询传统名字
func (c *HTTPClient) LegacyNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	var resp legacyResponse
	if err := c.do(ctx, http.MethodPost, "/names/legacy", idsRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]string, len(resp.Names))
	for key, name := range resp.Names {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		out[id] = utils.SafeName(name)
	}
	return out, nil
}

type agent struct {
	ID                    uuid.UUID `json:"id"`
	UserName              string    `json:"username"`
	DisplayName           string    `json:"display_name"`
	LegacyFirstName       string    `json:"legacy_first_name"`
	LegacyLastName        string    `json:"legacy_last_name"`
	IsDisplayNameDefault  bool      `json:"is_display_name_default"`
	DisplayNameNextUpdate time.Time `json:"display_name_next_update"`
}

type displayResponse struct {
	Agents []agent     `json:"agents"`
	BadIDs []uuid.UUID `json:"bad_ids"`
}

// DisplayNames 批量查询显示名
func (c *HTTPClient) DisplayNames(ctx context.Context, ids []uuid.UUID) ([]models.NameRecord, []uuid.UUID, error) {
	if !c.SupportsDisplayNames() {
		return nil, ids, ErrNotSupported
	}

	var resp displayResponse
	if err := c.do(ctx, http.MethodPost, "/names/display", idsRequest{IDs: ids}, &resp); err != nil {
		return nil, ids, err
	}

	now := c.now()
	records := make([]models.NameRecord, 0, len(resp.Agents))
	for _, a := range resp.Agents {
		records = append(records, a.toRecord(now))
	}
	return records, resp.BadIDs, nil
}

func (a agent) toRecord(now time.Time) models.NameRecord {
	return models.NameRecord{
		ID:                   a.ID,
		LegacyFirstName:      utils.SafeName(a.LegacyFirstName),
		LegacyLastName:       utils.SafeName(a.LegacyLastName),
		DisplayName:          utils.SafeName(a.DisplayName),
		UserName:             utils.SafeName(a.UserName),
		IsDefaultDisplayName: a.IsDisplayNameDefault,
		Updated:              now,
		NextUpdate:           a.DisplayNameNextUpdate,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
