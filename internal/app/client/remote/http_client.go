package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"plantkeeper/internal/domain/location"
	"plantkeeper/internal/domain/plant"
	"plantkeeper/internal/domain/user"
)

const userAgent = "PlantKeeper-Client/1.0"

// HTTPClient ходит в REST API сервера растений.
type HTTPClient struct {
	client  *http.Client
	log     *slog.Logger
	baseURL string

	mu    sync.RWMutex
	token string
}

var _ Store = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:     log.With("component", "remote"),
		baseURL: baseURL,
	}
}

// SetToken устанавливает токен аутентификации
func (h *HTTPClient) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

func (h *HTTPClient) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// HealthCheck проверяет доступность сервера
func (h *HTTPClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// Register регистрирует пользователя и возвращает его id.
func (h *HTTPClient) Register(ctx context.Context, creds user.Credentials) (int, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/user/register", creds, nil)
	if err != nil {
		return 0, err
	}

	var out struct {
		UserID int `json:"user_id"`
	}
	if err := h.parseResponse(resp, &out); err != nil {
		return 0, err
	}
	return out.UserID, nil
}

// Login аутентифицирует пользователя: возвращает токен и id.
func (h *HTTPClient) Login(ctx context.Context, creds user.Credentials) (string, int, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/user/login", creds, nil)
	if err != nil {
		return "", 0, err
	}

	var out struct {
		Token  string `json:"token"`
		UserID int    `json:"user_id"`
	}
	if err := h.parseResponse(resp, &out); err != nil {
		return "", 0, err
	}
	if out.Token == "" {
		return "", 0, fmt.Errorf("сервер не вернул токен")
	}
	return out.Token, out.UserID, nil
}

func (h *HTTPClient) ListPlants(ctx context.Context) ([]plant.Plant, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/plants", nil, nil)
	if err != nil {
		return nil, err
	}

	var plants []plant.Plant
	if err := h.parseResponse(resp, &plants); err != nil {
		return nil, err
	}
	return plants, nil
}

func (h *HTTPClient) CreatePlant(ctx context.Context, idempotencyKey string, req plant.CreateRequest) (plant.Plant, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/plants", req, idempotency(idempotencyKey))
	if err != nil {
		return plant.Plant{}, err
	}

	var p plant.Plant
	if err := h.parseResponse(resp, &p); err != nil {
		return plant.Plant{}, err
	}
	return p, nil
}

func (h *HTTPClient) UpdatePlant(ctx context.Context, id string, req plant.UpdateRequest) (plant.Plant, error) {
	resp, err := h.doRequest(ctx, http.MethodPut, "/api/v1/plants/"+url.PathEscape(id), req, nil)
	if err != nil {
		return plant.Plant{}, err
	}

	var p plant.Plant
	if err := h.parseResponse(resp, &p); err != nil {
		return plant.Plant{}, err
	}
	return p, nil
}

func (h *HTTPClient) DeletePlant(ctx context.Context, id string) error {
	resp, err := h.doRequest(ctx, http.MethodDelete, "/api/v1/plants/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// PlantPhoto скачивает фото растения.
func (h *HTTPClient) PlantPhoto(ctx context.Context, id string) ([]byte, string, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/plants/"+url.PathEscape(id)+"/photo", nil, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: ошибка чтения ответа: %v", ErrUnavailable, err)
	}
	if err := statusError(resp.StatusCode, data); err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (h *HTTPClient) ListLocations(ctx context.Context) ([]location.Location, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/locations", nil, nil)
	if err != nil {
		return nil, err
	}

	var locations []location.Location
	if err := h.parseResponse(resp, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

func (h *HTTPClient) CreateLocation(ctx context.Context, idempotencyKey string, req location.CreateRequest) (location.Location, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/locations", req, idempotency(idempotencyKey))
	if err != nil {
		return location.Location{}, err
	}

	var l location.Location
	if err := h.parseResponse(resp, &l); err != nil {
		return location.Location{}, err
	}
	return l, nil
}

func (h *HTTPClient) UpdateLocation(ctx context.Context, id string, req location.UpdateRequest) (location.Location, error) {
	resp, err := h.doRequest(ctx, http.MethodPut, "/api/v1/locations/"+url.PathEscape(id), req, nil)
	if err != nil {
		return location.Location{}, err
	}

	var l location.Location
	if err := h.parseResponse(resp, &l); err != nil {
		return location.Location{}, err
	}
	return l, nil
}

func (h *HTTPClient) DeleteLocation(ctx context.Context, id string) error {
	resp, err := h.doRequest(ctx, http.MethodDelete, "/api/v1/locations/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

func idempotency(key string) http.Header {
	if key == "" {
		return nil
	}
	hdr := http.Header{}
	hdr.Set("Idempotency-Key", key)
	return hdr
}

func (h *HTTPClient) doRequest(ctx context.Context, method, path string, body any, header http.Header) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	// Добавляем заголовки
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range header {
		req.Header[k] = v
	}
	if token := h.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return resp, nil
}

func (h *HTTPClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: ошибка чтения ответа: %v", ErrUnavailable, err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	if err := statusError(resp.StatusCode, body); err != nil {
		return err
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}

// statusError переводит HTTP-статус в таксономию ошибок ядра.
func statusError(status int, body []byte) error {
	if status < 400 {
		return nil
	}

	msg := problemMessage(body)
	switch {
	case status >= 500, status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		if msg == "" {
			return fmt.Errorf("%w: статус %d", ErrUnavailable, status)
		}
		return fmt.Errorf("%w: статус %d: %s", ErrUnavailable, status, msg)
	default:
		return &RejectedError{Status: status, Message: msg}
	}
}

// problemMessage достает текст из ответа application/problem+json.
func problemMessage(body []byte) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &problem); err != nil {
		return ""
	}
	switch {
	case problem.Detail != "":
		return problem.Detail
	case problem.Error != "":
		return problem.Error
	default:
		return problem.Title
	}
}
