package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meeyouu/skiniveAPI/internal/imageprocessor"
)

// DefaultTimeout bounds every call to the analysis API.
const DefaultTimeout = 30 * time.Second

// MaxResponseSize caps the body read from the analysis API.
const MaxResponseSize = 4 << 20

// Preconditions checked before any request is issued.
var (
	ErrMissingToken = errors.New("authorization token is required")
	ErrMissingImage = errors.New("image is required")
)

const (
	imageField = "img"
	langField  = "lang"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Client forwards dashboard actions to the Skinive API. It keeps no state
// between calls.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient returns a client whose requests are cut off after timeout.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("relay"),
	}
}

// Validate asks the API whether the image is usable for analysis.
func (c *Client) Validate(ctx context.Context, cfg Config, img *imageprocessor.Image) (Response, error) {
	if err := checkPreconditions(cfg, img, true); err != nil {
		return Response{}, err
	}
	headers := http.Header{}
	headers.Set("Authorization", cfg.AuthToken)
	return c.postImage(ctx, "relay.validate", cfg.ValidateURL, headers, img, nil), nil
}

// Predict requests a diagnosis for the image. lang is sent as a form field
// only when non-empty.
func (c *Client) Predict(ctx context.Context, cfg Config, img *imageprocessor.Image, lang string) (Response, error) {
	if err := checkPreconditions(cfg, img, true); err != nil {
		return Response{}, err
	}
	headers := http.Header{}
	headers.Set("Authorization", cfg.AuthToken)
	headers.Set("Locale", cfg.Locale)

	var fields map[string]string
	if lang != "" {
		fields = map[string]string{langField: lang}
	}
	return c.postImage(ctx, "relay.predict", cfg.PredictURL, headers, img, fields), nil
}

// GetDiseaseClasses lists the disease categories known to the API.
func (c *Client) GetDiseaseClasses(ctx context.Context, cfg Config) (Response, error) {
	if err := checkPreconditions(cfg, nil, false); err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ClassesURL, nil)
	if err != nil {
		return c.failure("relay.get_disease_classes", cfg.ClassesURL, err), nil
	}
	req.Header.Set("Authorization", cfg.AuthToken)
	req.Header.Set("Locale", cfg.Locale)
	return c.do("relay.get_disease_classes", req), nil
}

func checkPreconditions(cfg Config, img *imageprocessor.Image, needImage bool) error {
	if cfg.AuthToken == "" {
		return ErrMissingToken
	}
	if needImage && (img == nil || len(img.Data) == 0) {
		return ErrMissingImage
	}
	return nil
}

func (c *Client) postImage(ctx context.Context, operation, endpoint string, headers http.Header, img *imageprocessor.Image, fields map[string]string) Response {
	body, contentType, err := encodeMultipart(img, fields)
	if err != nil {
		return c.failure(operation, endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return c.failure(operation, endpoint, err)
	}
	for key, values := range headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(operation, req)
}

func (c *Client) do(operation string, req *http.Request) Response {
	endpoint := req.URL.String()
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failure(operation, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return c.failure(operation, endpoint, fmt.Errorf("read response body: %w", err))
	}
	if len(body) > MaxResponseSize {
		return c.failure(operation, endpoint, fmt.Errorf("response body exceeds %d bytes", MaxResponseSize))
	}
	if !json.Valid(body) {
		return c.failure(operation, endpoint, fmt.Errorf("invalid JSON response (status %d)", resp.StatusCode))
	}

	c.logger.Debug("api call completed",
		zap.String("operation", operation),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)
	return NewResponse(body)
}

func (c *Client) failure(operation, endpoint string, err error) Response {
	c.logger.Warn("api call failed",
		zap.String("operation", operation),
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)
	return ErrorResponse(err.Error())
}

func encodeMultipart(img *imageprocessor.Image, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := img.Name
	if filename == "" {
		filename = imageField
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, imageField, quoteEscaper.Replace(filename)))
	if img.MediaType != "" {
		header.Set("Content-Type", img.MediaType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
