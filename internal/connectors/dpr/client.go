package dpr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const maxBodyBytes = 2048

// Client talks to the DPR ingestion backend.
type Client struct {
	endpoint      string
	http          *http.Client
	uploadTimeout time.Duration
	listTimeout   time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient returns a client for the backend rooted at endpoint
// (e.g. http://localhost:8080/api/v1).
func NewClient(endpoint string, uploadTimeout, listTimeout time.Duration, opts ...Option) *Client {
	c := &Client{
		endpoint:      strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		http:          &http.Client{},
		uploadTimeout: uploadTimeout,
		listTimeout:   listTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Endpoint returns the configured base URL.
func (c *Client) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

// Submit uploads a PDF and returns the job id assigned by the backend.
func (c *Client) Submit(ctx context.Context, filename string, content io.Reader) (string, error) {
	if !c.Enabled() {
		return "", &Error{Op: OpUpload, Kind: KindTransport, Message: "DPR backend is not configured"}
	}
	ctx, cancel := withTimeout(ctx, c.uploadTimeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, sanitizeFilename(filename)))
	header.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", &Error{Op: OpUpload, Kind: KindTransport, Message: genericMessages[OpUpload], Err: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", &Error{Op: OpUpload, Kind: KindTransport, Message: "failed to read upload", Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &Error{Op: OpUpload, Kind: KindTransport, Message: genericMessages[OpUpload], Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/dpr/upload", &body)
	if err != nil {
		return "", &Error{Op: OpUpload, Kind: KindTransport, Message: genericMessages[OpUpload], Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.do(req, OpUpload, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.JobID) == "" {
		return "", decodeError(OpUpload, fmt.Errorf("response has no jobId"))
	}
	return out.JobID, nil
}

// Status fetches the lifecycle state of a job. No timeout is applied beyond ctx.
func (c *Client) Status(ctx context.Context, jobID string) (*StatusResponse, error) {
	if !c.Enabled() {
		return nil, &Error{Op: OpStatus, Kind: KindTransport, Message: "DPR backend is not configured"}
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/dpr/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, &Error{Op: OpStatus, Kind: KindTransport, Message: genericMessages[OpStatus], Err: err}
	}
	out := &StatusResponse{}
	if err := c.do(req, OpStatus, out); err != nil {
		return nil, err
	}
	return out, nil
}

// List fetches every job known to the backend.
func (c *Client) List(ctx context.Context) ([]Job, error) {
	if !c.Enabled() {
		return nil, &Error{Op: OpList, Kind: KindTransport, Message: "DPR backend is not configured"}
	}
	ctx, cancel := withTimeout(ctx, c.listTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/dpr/list", nil)
	if err != nil {
		return nil, &Error{Op: OpList, Kind: KindTransport, Message: genericMessages[OpList], Err: err}
	}
	req.Header.Set("Accept", "application/json")

	var out []Job
	if err := c.do(req, OpList, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Job{}
	}
	return out, nil
}

// Remove deletes one job and returns the backend's confirmation message.
func (c *Client) Remove(ctx context.Context, jobID string) (string, error) {
	if !c.Enabled() {
		return "", &Error{Op: OpDelete, Kind: KindTransport, Message: "DPR backend is not configured"}
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/dpr/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", &Error{Op: OpDelete, Kind: KindTransport, Message: genericMessages[OpDelete], Err: err}
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(req, OpDelete, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(c.endpoint + path)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

func (c *Client) do(req *http.Request, op Op, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		blob, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return statusError(op, resp.StatusCode, blob)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, err)
	}
	if len(bytes.TrimSpace(blob)) == 0 {
		return nil
	}
	if err := json.Unmarshal(blob, out); err != nil {
		return decodeError(op, err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "upload.pdf"
	}
	return name
}
