// Package backend is the HTTP client for the cashier REST endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error answer is read.
const maxErrorBody = 64 << 10

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://elpatio-backend.fly.dev.
	BaseURL string
	// HTTPClient is optional.
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// New creates a client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		tracer:     otel.Tracer("github.com/iamp15/elpatio-appCajeros/internal/backend"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (protocol.LoginResult, error) {
	var out protocol.LoginResult
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return out, fmt.Errorf("encode login: %w", err)
	}
	err = c.do(ctx, http.MethodPost, "/api/cajeros/login", "", "application/json", bytes.NewReader(body), &out)
	if err != nil {
		return protocol.LoginResult{}, err
	}
	if out.Token == "" {
		return protocol.LoginResult{}, fmt.Errorf("login: empty token")
	}
	return out, nil
}

// PendingTransactions returns the cashier's pending queue.
func (c *Client) PendingTransactions(ctx context.Context, token string) ([]protocol.TransactionSummary, error) {
	var out struct {
		Transacciones []protocol.TransactionSummary `json:"transacciones"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/transacciones/cajero/pendientes", token, "", nil, &out); err != nil {
		return nil, err
	}
	return out.Transacciones, nil
}

// TransactionDetail returns one transaction.
func (c *Client) TransactionDetail(ctx context.Context, token, id string) (protocol.TransactionDetail, error) {
	var out struct {
		Transaccion protocol.TransactionDetail `json:"transaccion"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/transacciones/"+id, token, "", nil, &out); err != nil {
		return protocol.TransactionDetail{}, err
	}
	return out.Transaccion, nil
}

// MinimumDeposit returns the configured minimum deposit. The endpoint is
// public and answers in display units.
func (c *Client) MinimumDeposit(ctx context.Context) (protocol.Minor, error) {
	var out struct {
		Configuracion struct {
			Minimo *float64 `json:"deposito_monto_minimo"`
		} `json:"configuracion"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/config/depositos", "", "", nil, &out); err != nil {
		return 0, err
	}
	if out.Configuracion.Minimo == nil || *out.Configuracion.Minimo <= 0 {
		return 0, fmt.Errorf("minimum deposit missing from configuration")
	}
	return protocol.FromDisplay(*out.Configuracion.Minimo), nil
}

// UploadEvidence uploads a rejection image and returns its public URL.
func (c *Client) UploadEvidence(ctx context.Context, token string, ev protocol.Evidence) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="imagen"; filename=%q`, ev.Filename))
	h.Set("Content-Type", ev.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(ev.Data); err != nil {
		return "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	var out struct {
		Imagen struct {
			URL string `json:"url"`
		} `json:"imagen"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/upload/imagen-rechazo", token, w.FormDataContentType(), &buf, &out); err != nil {
		return "", err
	}
	if out.Imagen.URL == "" {
		return "", fmt.Errorf("upload: empty url")
	}
	return out.Imagen.URL, nil
}

func (c *Client) do(ctx context.Context, method, path, token, contentType string, body io.Reader, out any) error {
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		reqErr := &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
		span.SetStatus(codes.Error, reqErr.Error())
		return reqErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts the backend's message from an error body. The backend
// uses "mensaje", "message" or "error" depending on the route.
func errorMessage(raw []byte) string {
	var body struct {
		Mensaje string `json:"mensaje"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, s := range []string{body.Mensaje, body.Message, body.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
