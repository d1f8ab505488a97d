package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/pkg/authtoken"
	"github.com/clinicore/consulta-engine/pkg/config"
)

// Client is the typed HTTP client for the clinic backend. The backend
// is an external collaborator; this client only shapes requests and
// classifies failures, it never retries.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  authtoken.Source
	logger  *zap.Logger
}

// NewClient creates a backend client using the provided config.
func NewClient(cfg *config.APIConfig, tokens authtoken.Source, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		tokens:  tokens,
		logger:  logger,
	}
}

// do performs a JSON round trip against the backend. A nil body sends no
// payload; a nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.ErrInternal(err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.ErrInternal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.ErrTransient(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusToError(method+" "+path, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.ErrTransient(method+" "+path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// authorize attaches the bearer token from the token source.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func decodeJSON(r io.Reader, out interface{}) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusToError classifies a non-2xx response into the engine taxonomy.
// 404 maps to NOT_FOUND so update paths can treat it as the create
// fallback signal; everything unexpected is transient and user-retryable.
func (c *Client) statusToError(operation string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))

	if c.logger != nil {
		c.logger.Debug("backend returned error status",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("body", msg),
		)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.AppError{
			Kind:    errors.KindNotFound,
			Message: "Resource not found",
		}.WithDetail("operation", operation)
	case http.StatusConflict:
		return errors.ErrConflict("Backend rejected a conflicting operation").
			WithDetail("operation", operation).
			WithDetail("response", msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.ErrValidation("Backend rejected the request payload").
			WithDetail("operation", operation).
			WithDetail("response", msg)
	default:
		return errors.ErrTransient(operation, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, msg))
	}
}
