package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"pitch-recorder/dto"
)

var (
	// ErrUploadFailed is returned for any non-2xx webhook response.
	ErrUploadFailed = errors.New("upload failed")
	// ErrEmptyResult is returned when a 2xx body is not a JSON object.
	ErrEmptyResult = errors.New("webhook returned no result object")
)

type Client struct {
	http *resty.Client
}

func NewClient(timeout time.Duration) *Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{http: c}
}

// Upload performs a single attempt. Retrying is the caller's job.
func (c *Client) Upload(ctx context.Context, url string, seg dto.Segment) (dto.WebhookResult, error) {
	fields := map[string]string{
		"startSlide": strconv.Itoa(seg.StartSlide),
		"endSlide":   strconv.Itoa(seg.EndSlide),
	}
	if seg.Audience != "" {
		fields["audience"] = seg.Audience
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("audio", seg.ID+".webm", bytes.NewReader(seg.Audio)).
		SetMultipartFormData(fields).
		Post(url)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, ErrUploadFailed
	}

	var result dto.WebhookResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decoding webhook response: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("decoding webhook response: %w", ErrEmptyResult)
	}
	return result, nil
}
