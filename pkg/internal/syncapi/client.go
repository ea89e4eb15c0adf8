// Package syncapi 实现远端 CRUD API 的客户端与照片上传器.
// 本地是权威数据源，同步只做单向推送，不做多端合并.
// 所有请求走 gobreaker 熔断器，服务器连续不可达时快速失败，
// 现场设备不会因为断网把每次保存都拖到超时.
package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"

	"github.com/JSB847123/simple-business-database/pkg/cache"
	"github.com/JSB847123/simple-business-database/pkg/configs"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
)

// ErrRemoteNotFound 远端没有这条记录.
var ErrRemoteNotFound = errors.New("syncapi: record not found on server")

// APIError 远端返回 success=false 时的业务错误.
type APIError struct {
	Status  int
	Err     string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("sync api error (status %d): %s: %s", e.Status, e.Err, e.Message)
	}

	return fmt.Sprintf("sync api error (status %d): %s", e.Status, e.Err)
}

// Client 远端 CRUD API 客户端.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	grants  *cache.Cache
}

// NewClient 创建同步客户端.cfg 为 nil 时读全局配置.
// 熔断采用 gobreaker 默认策略（连续失败 5 次进入打开态），
// 半开探测数与冷却时间来自配置.
func NewClient(cfg *configs.SyncConfig) *Client {
	if cfg == nil {
		cfg = &configs.GetConfig().Sync
	}

	timeout := cfg.GetTimeoutDuration()
	if timeout <= 0 {
		timeout = configs.DefaultSyncTimeout * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "sync-api",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    time.Duration(cfg.BreakerInterval) * time.Second,
		Timeout:     time.Duration(cfg.BreakerTimeout) * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			nlog.Logger().Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("sync circuit breaker state changed")
		},
	}

	// 上传授权缓存放进程内存即可，授权本来就是短时的
	var grants *cache.Cache
	if mem, err := kvc.NewMemoryKV(context.Background(), nil); err == nil {
		grants = cache.NewCache(mem)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		grants:  grants,
	}
}

// CreateRecord 在远端创建记录.
func (c *Client) CreateRecord(ctx context.Context, rec *model.Record) error {
	body, status, err := c.do(ctx, http.MethodPost, "/records", nil, rec)
	if err != nil {
		return err
	}

	_, err = decodeEnvelope[json.RawMessage](body, status)

	return err
}

// GetRecord 拉取单条远端记录，404 返回 (nil, nil).
func (c *Client) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/records/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, nil
	}

	rec, err := decodeEnvelope[model.Record](body, status)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// ListRecords 按过滤条件拉取远端记录列表.
func (c *Client) ListRecords(ctx context.Context, q types.ListRecordsQuery) ([]model.Record, error) {
	vals := url.Values{}
	if q.Page > 0 {
		vals.Set("page", strconv.Itoa(q.Page))
	}

	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
	}

	if q.LocationType != "" {
		vals.Set("locationType", q.LocationType)
	}

	if q.Search != "" {
		vals.Set("search", q.Search)
	}

	if q.StartDate != "" {
		vals.Set("startDate", q.StartDate)
	}

	if q.EndDate != "" {
		vals.Set("endDate", q.EndDate)
	}

	body, status, err := c.do(ctx, http.MethodGet, "/records", vals, nil)
	if err != nil {
		return nil, err
	}

	return decodeEnvelope[[]model.Record](body, status)
}

// UpdateRecord 按 id 更新远端记录，远端不存在返回 ErrRemoteNotFound.
func (c *Client) UpdateRecord(ctx context.Context, rec *model.Record) error {
	body, status, err := c.do(ctx, http.MethodPut, "/records/"+url.PathEscape(rec.ID), nil, rec)
	if err != nil {
		return err
	}

	if status == http.StatusNotFound {
		return ErrRemoteNotFound
	}

	_, err = decodeEnvelope[json.RawMessage](body, status)

	return err
}

// UpsertRecord 先按 id 更新，远端不存在时转为创建.
func (c *Client) UpsertRecord(ctx context.Context, rec *model.Record) error {
	err := c.UpdateRecord(ctx, rec)
	if errors.Is(err, ErrRemoteNotFound) {
		return c.CreateRecord(ctx, rec)
	}

	return err
}

// DeleteRecord 删除远端记录，远端本来就没有视为成功.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	body, status, err := c.do(ctx, http.MethodDelete, "/records/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}

	if status == http.StatusNotFound {
		return nil
	}

	_, err = decodeEnvelope[json.RawMessage](body, status)

	return err
}

// do 发送一次 JSON 请求，熔断器包住整个往返.
// 传输失败与 5xx 计入熔断；4xx 视为业务响应原样返回.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody any) ([]byte, int, error) {
	var payload []byte

	if reqBody != nil {
		raw, err := sonic.Marshal(reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}

		payload = raw
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.roundTrip(ctx, method, path, query, payload)
	})
	if err != nil {
		return nil, 0, err
	}

	res := result.(*httpResult)

	return res.body, res.status, nil
}

type httpResult struct {
	status int
	body   []byte
}

// roundTrip 实际执行 HTTP 往返.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, payload []byte) (any, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync server unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("sync server error: status %d", resp.StatusCode)
	}

	return &httpResult{status: resp.StatusCode, body: body}, nil
}

// decodeEnvelope 解开 {success, data?, error?, message?} 响应壳.
func decodeEnvelope[T any](body []byte, status int) (T, error) {
	var zero T

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data,omitempty"`
		Error   string          `json:"error,omitempty"`
		Message string          `json:"message,omitempty"`
	}

	if err := sonic.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}

	if !env.Success {
		return zero, &APIError{Status: status, Err: env.Error, Message: env.Message}
	}

	if len(env.Data) == 0 {
		return zero, nil
	}

	var data T
	if err := sonic.Unmarshal(env.Data, &data); err != nil {
		return zero, fmt.Errorf("decode response data: %w", err)
	}

	return data, nil
}
