// Package workorder is the client of the external work-order business API.
package workorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/internal/metrics"
)

// API paths.
const (
	PathNatureList  = "/business/workOrder/natureList"
	PathPOISearch   = "/business/overview-mode/search/getPoiName"
	PathRoutes      = "/route/getRouteByRadius"
	PathRouteInfo   = "/route/getByRouteId"
	PathCreateOrder = "/business/workOrder/create"
)

// SourceAI marks work orders created by the assistant.
const SourceAI = 2

// ErrNoCredential is returned when the context carries no bearer token.
var ErrNoCredential = errors.New("no credential in context")

// APIError is a non-success envelope or HTTP status from the API.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("work-order api status %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("work-order api code %d: %s", e.Code, e.Msg)
}

// Client calls the work-order API on behalf of the caller carried in ctx.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a new work-order API client.
// rps <= 0 disables rate limiting.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: maxRetries,
		retryDelay: 500 * time.Millisecond,
	}
}

// envelope is the response wrapper of every endpoint. Code 0 is success.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// NatureResponse is an entry of the work-order nature dictionary.
type NatureResponse struct {
	ID        int    `json:"id"`
	ItemValue string `json:"itemValue"`
	Label     string `json:"label"`
}

// POIResponse is a point of interest returned by the search endpoint.
type POIResponse struct {
	RecordID int64   `json:"recordId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Name     string  `json:"name"`
	Address  string  `json:"address"`
}

// RouteRequest queries routes around a coordinate.
type RouteRequest struct {
	Type   int     `json:"type,omitempty"`
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Radius float64 `json:"radius"`
}

// RouteResponse is a flight route.
type RouteResponse struct {
	RouteID          int     `json:"routeId"`
	RouteName        string  `json:"routeName"`
	Type             int     `json:"type"`
	EstimateDuration int     `json:"estimateDuration"`
	RouteLength      float64 `json:"routeLength"`
	PointNum         int     `json:"pointNum"`
}

// ExecutionTime is a keyed execution time slot.
type ExecutionTime struct {
	Key   int    `json:"key"`
	Value string `json:"value"`
}

// RouteInfo describes the route attached to an execution strategy.
type RouteInfo struct {
	RouteName      string  `json:"routeName,omitempty"`
	RouteType      int     `json:"routeType,omitempty"`
	ExistRouteType int     `json:"existRouteType,omitempty"`
	RouteID        int     `json:"routeId,omitempty"`
	EstimatedTime  int     `json:"estimatedTime,omitempty"`
	RouteLength    float64 `json:"routeLength,omitempty"`
	PointCount     int     `json:"pointCount,omitempty"`
}

// ExecuteStrategy is how and when an order runs.
type ExecuteStrategy struct {
	ExecutionTimes      []ExecutionTime `json:"executionTimes,omitempty"`
	ExecutionStrategy   int             `json:"executionStrategy"`
	RouteInfo           *RouteInfo      `json:"routeInfo,omitempty"`
	SingleExecutionTime string          `json:"singleExecutionTime,omitempty"`
	ExecutionTimePoint  []string        `json:"executionTimePoint,omitempty"`
	StrategyDesc        string          `json:"executionStrategyDesc,omitempty"`
}

// CreateOrderRequest is the body of the create endpoint.
type CreateOrderRequest struct {
	Name                string            `json:"name"`
	NatureID            string            `json:"natureId,omitempty"`
	Description         string            `json:"description,omitempty"`
	ExecuteStrategyList []ExecuteStrategy `json:"executeStrategyList,omitempty"`
	AchievementType     []string          `json:"achievementType,omitempty"`
	RouteIDs            []int             `json:"routeIds,omitempty"`
	Source              int               `json:"source"`
}

// NatureList fetches the work-order nature dictionary.
func (c *Client) NatureList(ctx context.Context) ([]NatureResponse, error) {
	var out []NatureResponse
	if err := c.do(ctx, http.MethodGet, PathNatureList, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchPOI finds points of interest by name.
func (c *Client) SearchPOI(ctx context.Context, name string) ([]POIResponse, error) {
	var out []POIResponse
	if err := c.do(ctx, http.MethodPost, PathPOISearch, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RoutesByRadius lists routes within radius metres of a coordinate.
func (c *Client) RoutesByRadius(ctx context.Context, req RouteRequest) ([]RouteResponse, error) {
	var out []RouteResponse
	if err := c.do(ctx, http.MethodPost, PathRoutes, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RouteByID fetches a single route.
func (c *Client) RouteByID(ctx context.Context, routeID string) (*RouteResponse, error) {
	var out RouteResponse
	if err := c.do(ctx, http.MethodPost, PathRouteInfo, map[string]string{"routeId": routeID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder creates a work order and returns its id.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (int, error) {
	var id int
	if err := c.do(ctx, http.MethodPost, PathCreateOrder, req, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	token, ok := credential.Get(ctx)
	if !ok {
		metrics.WorkOrderAPIRequests.WithLabelValues(path, "no_credential").Inc()
		return ErrNoCredential
	}

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
			log.Printf("WARN: retrying work-order api %s (attempt %d): %v", path, attempt+1, lastErr)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		lastErr = c.once(ctx, method, path, token, body, out)
		if lastErr == nil {
			metrics.WorkOrderAPIRequests.WithLabelValues(path, "ok").Inc()
			return nil
		}
		if !retryable(lastErr) {
			break
		}
	}
	metrics.WorkOrderAPIRequests.WithLabelValues(path, "error").Inc()
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path, token string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(respBody))}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status >= 500:
			return true
		case apiErr.Status == http.StatusRequestTimeout, apiErr.Status == http.StatusTooManyRequests:
			return true
		}
		return false
	}
	var tErr *transportError
	if errors.As(err, &tErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return false
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "failed to send request: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }
