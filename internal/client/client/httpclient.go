package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/otaverifier/internal/client/models"
	"github.com/dmitrijs2005/otaverifier/internal/common"
	"github.com/dmitrijs2005/otaverifier/internal/netx"
	"github.com/google/uuid"
)

const (
	pathHealth        = "/health"
	pathPublicKey     = "/get_public_key/"
	pathUploadBundle  = "/upload_bundle_files/"
	pathBundles       = "/bundles"
	pathInstallBundle = "/install-bundle"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for baseURL. A zero timeout leaves requests
// bounded only by their context and the transport defaults.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) url(path string) string {
	return c.baseURL + path
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		var s string
		switch {
		case len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &s) == nil:
			apiErr.Detail = s
		case len(payload.Detail) > 0:
			apiErr.Detail = string(payload.Detail)
		case payload.Message != "":
			apiErr.Detail = payload.Message
		}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// Ping checks GET /health and expects {"status":"OK"}.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(pathHealth), nil)
	if err != nil {
		return err
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

// GetPublicKey fetches the PEM public key used to encrypt credentials.
func (c *HTTPClient) GetPublicKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(pathPublicKey), nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.PublicKey) == "" {
		return "", fmt.Errorf("%w: empty public_key in response", common.ErrPublicKeyNotLoaded)
	}
	return resp.PublicKey, nil
}

// UploadBundle streams the multipart submission and returns the backend's
// "message". progress, if set, is called as body bytes are consumed by the
// transport. Transport and backend failures wrap common.ErrUploadFailed;
// an *APIError stays reachable with errors.As.
func (c *HTTPClient) UploadBundle(ctx context.Context, r *models.UploadRequest, progress ProgressFunc) (string, error) {
	if r.Bundle == nil || r.Checksum == nil {
		return "", common.ErrFilesMissing
	}

	body, err := netx.NewMultipartBody(uploadFields(r), []netx.FilePart{
		{Field: models.FieldBundleFile, Blob: r.Bundle},
		{Field: models.FieldChecksumFile, Blob: r.Checksum},
	})
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}

	pr := netx.NewProgressReader(body, body.Size(), progress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(pathUploadBundle), pr)
	if err != nil {
		return "", err
	}
	req.ContentLength = body.Size()
	req.Header.Set("Content-Type", body.ContentType())
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())

	var resp struct {
		Result  string `json:"result"`
		Message string `json:"message"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
	}
	if resp.Result == "error" {
		// The backend reports storage failures with 200 and result=error.
		return "", fmt.Errorf("%w: %w", common.ErrUploadFailed, &APIError{StatusCode: http.StatusOK, Detail: resp.Message})
	}
	return resp.Message, nil
}

// uploadFields lists the text fields in the order the backend form expects.
// Optional fields are left out when blank.
func uploadFields(r *models.UploadRequest) []netx.Field {
	fields := []netx.Field{
		{Name: models.FieldVersion, Value: r.Version},
		{Name: models.FieldEncryptedAccessKey, Value: r.EncryptedAccessKey},
		{Name: models.FieldEncryptedSecretKey, Value: r.EncryptedSecretKey},
	}
	if r.EncryptedSessionToken != "" {
		fields = append(fields, netx.Field{Name: models.FieldEncryptedSessionToken, Value: r.EncryptedSessionToken})
	}
	if r.Bucket != "" {
		fields = append(fields, netx.Field{Name: models.FieldBucket, Value: r.Bucket})
	}
	if r.Region != "" {
		fields = append(fields, netx.Field{Name: models.FieldRegion, Value: r.Region})
	}
	return fields
}

// ListBundles returns the bundle keys the backend knows about.
func (c *HTTPClient) ListBundles(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(pathBundles), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Bundles []string `json:"bundles"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.Bundles == nil {
		return []string{}, nil
	}
	return resp.Bundles, nil
}

// InstallBundle asks the backend to roll bundleKey out to devices and returns
// its JSON reply as is.
func (c *HTTPClient) InstallBundle(ctx context.Context, bundleKey string) (map[string]any, error) {
	if strings.TrimSpace(bundleKey) == "" {
		return nil, errors.New("bundle key is required")
	}

	payload, err := json.Marshal(map[string]string{"bundle_key": bundleKey})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(pathInstallBundle), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp map[string]any
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
