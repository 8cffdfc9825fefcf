package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/agentmitra/portalctl/internal/errors"
)

// envelope is the portal's response wrapper. Endpoints that return a bare
// object simply have no data key.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// ListOptions selects a page. Zero values let the server pick.
type ListOptions struct {
	Page     int
	PageSize int
}

func (o ListOptions) apply(q map[string][]string) {
	if o.Page > 0 {
		q["page"] = []string{strconv.Itoa(o.Page)}
	}
	if o.PageSize > 0 {
		q["pageSize"] = []string{strconv.Itoa(o.PageSize)}
	}
}

// Download is a binary response such as an export or a report file.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAPIDecode, "failed to read response", err)
	}
	return body, nil
}

// unwrap returns the payload of an envelope, or the body itself when it is
// not enveloped. success=false becomes an error carrying the server message.
func unwrap(status int, body []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		// Arrays and scalars are bare payloads.
		return body, nil
	}

	var env envelope
	_ = json.Unmarshal(body, &env)
	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "request was not successful"
		}
		return nil, errors.NewAPIError(status, msg)
	}
	if data, ok := fields["data"]; ok {
		return data, nil
	}
	return body, nil
}

// getData performs r and decodes the enveloped payload into T.
func getData[T any](ctx context.Context, c *Client, r request) (T, error) {
	var out T
	resp, err := c.do(ctx, r)
	if err != nil {
		return out, err
	}
	status := resp.StatusCode
	body, err := readBody(resp)
	if err != nil {
		return out, err
	}
	if len(body) == 0 {
		return out, nil
	}

	payload, err := unwrap(status, body)
	if err != nil {
		return out, err
	}
	if string(payload) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, errors.Wrap(errors.ErrCodeAPIDecode, "failed to decode response", err)
	}
	return out, nil
}

// getPage performs r and decodes a bare paginated body.
func getPage[T any](ctx context.Context, c *Client, r request) (*Page[T], error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	status := resp.StatusCode
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if _, err := unwrap(status, body); err != nil {
		return nil, err
	}

	page := &Page[T]{}
	if err := json.Unmarshal(body, page); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAPIDecode, "failed to decode page", err)
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	return page, nil
}

// exec performs r and discards the payload, still honouring success=false.
func exec(ctx context.Context, c *Client, r request) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	status := resp.StatusCode
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err = unwrap(status, body)
	return err
}

// download performs r and returns the raw body.
func download(ctx context.Context, c *Client, r request, fallbackName string) (*Download, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	d := &Download{
		Filename:    fallbackName,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			d.Filename = params["filename"]
		}
	}
	d.Data, err = readBody(resp)
	if err != nil {
		return nil, err
	}
	return d, nil
}
