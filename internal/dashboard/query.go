package dashboard

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
	"time"

	"github.com/odyssey-erp/itasset/internal/assets"
)

// StatsBackend is the in-process assets service.
type StatsBackend interface {
	Categories(ctx context.Context, kind assets.CategoryKind) ([]assets.CategoryRef, error)
	GetDashboardStats(ctx context.Context, filter assets.StatsFilter) (assets.DashboardStats, error)
}

// LocalQueryService answers controller queries from an in-process backend.
type LocalQueryService struct {
	backend StatsBackend
}

// NewLocalQueryService wraps backend.
func NewLocalQueryService(backend StatsBackend) *LocalQueryService {
	return &LocalQueryService{backend: backend}
}

// FetchCategories lists categories of the given kind.
func (s *LocalQueryService) FetchCategories(ctx context.Context, kind assets.CategoryKind) ([]assets.CategoryRef, error) {
	return s.backend.Categories(ctx, kind)
}

// FetchAggregateStats decodes params the same way the HTTP query endpoint does.
func (s *LocalQueryService) FetchAggregateStats(ctx context.Context, params Params) (assets.DashboardStats, error) {
	filter, err := assets.ParseStatsRequest(map[string]any(params))
	if err != nil {
		return assets.DashboardStats{}, err
	}
	return s.backend.GetDashboardStats(ctx, filter)
}

// HTTPQueryService talks to a remote /it-asset/query API.
type HTTPQueryService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPQueryService builds a client for baseURL. A nil client gets a 10s timeout.
func NewHTTPQueryService(baseURL string, client *http.Client) *HTTPQueryService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPQueryService{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// FetchCategories calls GET /it-asset/query/categories.
func (s *HTTPQueryService) FetchCategories(ctx context.Context, kind assets.CategoryKind) ([]assets.CategoryRef, error) {
	endpoint := s.baseURL + "/it-asset/query/categories?kind=" + url.QueryEscape(string(kind))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Categories []assets.CategoryRef `json:"categories"`
	}
	if err := s.do(req, &payload); err != nil {
		return nil, err
	}
	if payload.Categories == nil {
		payload.Categories = []assets.CategoryRef{}
	}
	return payload.Categories, nil
}

// FetchAggregateStats calls POST /it-asset/query/stats with params as the body.
func (s *HTTPQueryService) FetchAggregateStats(ctx context.Context, params Params) (assets.DashboardStats, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return assets.DashboardStats{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/it-asset/query/stats", bytes.NewReader(body))
	if err != nil {
		return assets.DashboardStats{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var stats assets.DashboardStats
	if err := s.do(req, &stats); err != nil {
		return assets.DashboardStats{}, err
	}
	return stats, nil
}

func (s *HTTPQueryService) do(req *http.Request, target any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &problem) == nil && (problem.Detail != "" || problem.Title != "") {
			return fmt.Errorf("query service: %s: %s %s", resp.Status, problem.Title, problem.Detail)
		}
		return fmt.Errorf("query service: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("query service: empty response")
		}
		return fmt.Errorf("query service: decode: %w", err)
	}
	return nil
}
