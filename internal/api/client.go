// Package api implements the HTTP client for the remote compression service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"
)

// Options configures a Client.
type Options struct {
	BaseURL             string
	RequestTimeout      time.Duration // whole-call timeout for upload/compress
	StreamReadTimeout   time.Duration // idle read timeout on the event stream
	DownloadReadTimeout time.Duration // idle read timeout on the download body
}

// Client talks to the compression service. The small compress POST is bounded
// by a whole-request timeout; uploads, the event stream, and downloads all run
// for minutes legitimately on large files, so they get a response-header
// timeout plus a progress-based deadline on the transfer instead.
type Client struct {
	baseURL             string
	request             *http.Client
	streaming           *http.Client
	requestTimeout      time.Duration
	streamReadTimeout   time.Duration
	downloadReadTimeout time.Duration
}

// NewClient creates a client for the service at opts.BaseURL.
func NewClient(opts Options) *Client {
	return &Client{
		baseURL:        opts.BaseURL,
		requestTimeout: opts.RequestTimeout,
		request: &http.Client{
			Timeout: opts.RequestTimeout,
		},
		streaming: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: opts.RequestTimeout,
			},
		},
		streamReadTimeout:   opts.StreamReadTimeout,
		downloadReadTimeout: opts.DownloadReadTimeout,
	}
}

// StatusError reports a non-2xx response from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Body)
}

// UploadResult identifies an uploaded file on the service side.
type UploadResult struct {
	Filename string `json:"filename"`
	JobID    string `json:"job_id"`
}

// Upload streams the file at path as a multipart body to POST /upload.
// The body is produced on the fly, so a failed upload is not replayed; the
// whole file is retried on a later scan cycle instead. There is no whole-call
// deadline: a large file uploading slowly but steadily is fine, and only a
// transfer that makes no progress for the request timeout is aborted.
func (c *Client) Upload(ctx context.Context, path string, targetSizeMB float64) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
		header.Set("Content-Type", contentType(path))
		part, err := writer.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	// The transport pulls body bytes as the socket drains, so a stalled
	// connection shows up as the body going unread. The watchdog cancels the
	// request when that lasts longer than the request timeout.
	upCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var stalled atomic.Bool
	body := newStallReader(pr, c.requestTimeout, func() {
		stalled.Store(true)
		cancel()
	})

	uploadURL := fmt.Sprintf("%s/upload?target_size_mb=%s",
		c.baseURL, url.QueryEscape(formatFloat(targetSizeMB)))
	req, err := http.NewRequestWithContext(upCtx, http.MethodPost, uploadURL, body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.streaming.Do(req)
	if err != nil {
		if stalled.Load() && ctx.Err() == nil {
			return UploadResult{}, fmt.Errorf("upload: no progress for %s", c.requestTimeout)
		}
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	resp.Body = newIdleReader(resp.Body, c.requestTimeout)
	defer resp.Body.Close()

	var result UploadResult
	if err := decodeResponse(resp, &result); err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	if result.Filename == "" || result.JobID == "" {
		return UploadResult{}, fmt.Errorf("upload: response missing filename or job_id")
	}
	return result, nil
}

// CompressRequest is the body of POST /compress.
type CompressRequest struct {
	Filename         string  `json:"filename"`
	JobID            string  `json:"job_id"`
	TargetSizeMB     float64 `json:"target_size_mb"`
	VideoCodec       string  `json:"video_codec"`
	AudioCodec       string  `json:"audio_codec"`
	AudioBitrateKbps int     `json:"audio_bitrate_kbps"`
	Preset           string  `json:"preset"`
	Tune             string  `json:"tune"`
	Container        string  `json:"container"`
	AutoResolution   bool    `json:"auto_resolution"`
	ForceHWDecode    bool    `json:"force_hw_decode"`
}

// DefaultCompressRequest returns the fixed codec settings sent for every job.
// Auto-resolution stays off so the service never downscales; hardware decode
// is forced.
func DefaultCompressRequest(targetSizeMB float64) CompressRequest {
	return CompressRequest{
		TargetSizeMB:     targetSizeMB,
		VideoCodec:       "av1_nvenc",
		AudioCodec:       "aac",
		AudioBitrateKbps: 128,
		Preset:           "p6",
		Tune:             "hq",
		Container:        "mp4",
		AutoResolution:   false,
		ForceHWDecode:    true,
	}
}

// Compress starts compression of an uploaded file and returns the task ID.
func (c *Client) Compress(ctx context.Context, req CompressRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode compress request: %w", err)
	}

	resp, err := c.doRetry(ctx, c.request, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compress", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		TaskID string `json:"task_id"`
	}
	if err := decodeResponse(resp, &result); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	if result.TaskID == "" {
		return "", fmt.Errorf("compress: response missing task_id")
	}
	return result.TaskID, nil
}

// Download opens GET /jobs/{task_id}/download and returns the body stream and
// the reported content length (-1 when unknown). The caller must close the
// stream.
func (c *Client) Download(ctx context.Context, taskID string, wait time.Duration) (io.ReadCloser, int64, error) {
	downloadURL := fmt.Sprintf("%s/jobs/%s/download?wait=%s",
		c.baseURL, url.PathEscape(taskID), url.QueryEscape(formatFloat(wait.Seconds())))

	resp, err := c.doRetry(ctx, c.streaming, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, 0, fmt.Errorf("download: %w", statusError(resp))
	}
	return newIdleReader(resp.Body, c.downloadReadTimeout), resp.ContentLength, nil
}

// decodeResponse checks for a 2xx status and unmarshals the JSON body into v.
func decodeResponse(resp *http.Response, v any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// statusError captures a bounded amount of response body for diagnostics.
func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
