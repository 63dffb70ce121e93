package client

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
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"lifelog/internal/domain/entry"
)

// MaxBatchSize - максимальный размер одной пачки загрузки.
const MaxBatchSize = 50

const (
	defaultRequestTimeout = 30 * time.Second
	userAgent             = "Lifelog-Client/1.0"
)

// Transport - клиент Remote Store, которым пользуется движок синхронизации.
type Transport interface {
	Upload(ctx context.Context, batch []entry.Entry) error
	Download(ctx context.Context, filter entry.Filter) ([]entry.Entry, error)
	FetchOne(ctx context.Context, id uuid.UUID) (*entry.Entry, error)
	HealthCheck(ctx context.Context) error
}

type createResponse struct {
	Created *int `json:"created"`
}

// HTTPClient выполняет запросы к серверу строго по одному.
type HTTPClient struct {
	mu      sync.Mutex
	client  *http.Client
	log     *slog.Logger
	baseURL string
	token   string
	timeout time.Duration
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, log *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:     log.With("component", "http_client"),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// HealthCheck проверяет доступность сервера
func (h *HTTPClient) HealthCheck(ctx context.Context) error {
	status, body, err := h.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return h.statusError(status, body, false)
	}
	return nil
}

// Upload отправляет пачку записей одним запросом.
// Пустая, слишком большая или невалидная пачка отклоняется без обращения к сети.
func (h *HTTPClient) Upload(ctx context.Context, batch []entry.Entry) error {
	if len(batch) > MaxBatchSize {
		return &TransportError{
			Kind:    ErrInvalidRequest,
			Message: fmt.Sprintf("batch of %d exceeds limit %d", len(batch), MaxBatchSize),
		}
	}
	if err := entry.ValidateBatch(batch); err != nil {
		return &TransportError{Kind: ErrInvalidRequest, Err: err}
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return &TransportError{Kind: ErrInvalidRequest, Message: "encode batch", Err: err}
	}

	status, body, err := h.do(ctx, http.MethodPost, "/api/entries", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return h.statusError(status, body, false)
	}

	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Created == nil {
		return h.malformed(status, body, err)
	}
	if *resp.Created != len(batch) {
		return h.malformed(status, body, fmt.Errorf("created %d, sent %d", *resp.Created, len(batch)))
	}

	return nil
}

// Download получает одну страницу записей по фильтру.
func (h *HTTPClient) Download(ctx context.Context, filter entry.Filter) ([]entry.Entry, error) {
	status, body, err := h.do(ctx, http.MethodGet, "/api/entries"+encodeFilter(filter), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, h.statusError(status, body, false)
	}

	var entries []entry.Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, h.malformed(status, body, err)
	}
	if entries == nil {
		entries = []entry.Entry{}
	}

	return entries, nil
}

// FetchOne получает одну запись по id.
func (h *HTTPClient) FetchOne(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	status, body, err := h.do(ctx, http.MethodGet, "/api/entries/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, h.statusError(status, body, true)
	}

	var e entry.Entry
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, h.malformed(status, body, err)
	}

	return &e, nil
}

// do выполняет запрос под мьютексом и возвращает статус и тело целиком.
func (h *HTTPClient) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, &TransportError{Kind: ErrInvalidRequest, Message: "build request", Err: err}
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	h.log.Debug("Отправка запроса", "method", method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil, fmt.Errorf("запрос отменен: %w", err)
		}
		return 0, nil, classifyNetError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, &TransportError{Kind: ErrTimeout, Status: resp.StatusCode, Err: err}
		}
		return 0, nil, &TransportError{Kind: ErrConnectivity, Status: resp.StatusCode, Err: err}
	}

	h.log.Debug("Получен ответ", "status", resp.StatusCode, "bytes", len(body))

	return resp.StatusCode, body, nil
}

func (h *HTTPClient) statusError(status int, body []byte, notFoundKind bool) error {
	te := &TransportError{
		Status:  status,
		Message: serverMessage(body),
		Body:    string(body),
	}

	switch {
	case status == http.StatusUnauthorized:
		te.Kind = ErrUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		te.Kind = ErrInvalidRequest
	case status == http.StatusNotFound && notFoundKind:
		te.Kind = ErrNotFound
	default:
		te.Kind = ErrServer
	}

	h.log.Warn("Сервер вернул ошибку", "status", status, "kind", te.Kind.Error(), "message", te.Message)
	return te
}

func (h *HTTPClient) malformed(status int, body []byte, cause error) error {
	h.log.Error("Некорректный ответ сервера", "status", status, "body", string(body), "error", cause)
	return &TransportError{
		Kind:   ErrMalformedResponse,
		Status: status,
		Body:   string(body),
		Err:    cause,
	}
}

// encodeFilter собирает query-строку, опуская незаданные параметры.
func encodeFilter(f entry.Filter) string {
	q := url.Values{}
	if f.Since != nil {
		q.Set("since", f.Since.UTC().Format(time.RFC3339Nano))
	}
	if f.Until != nil {
		q.Set("until", f.Until.UTC().Format(time.RFC3339Nano))
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Source != "" {
		q.Set("source", f.Source.String())
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
