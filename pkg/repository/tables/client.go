// Package tables is a client for the clinic's RESTful table API:
// GET/POST {base}/{collection}, GET/PUT/PATCH/DELETE {base}/{collection}/{id}.
package tables

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func New(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "tables").Logger(),
	}
}

type listResponse struct {
	Data  []model.Record `json:"data"`
	Total int            `json:"total,omitempty"`
}

func (c *Client) List(ctx context.Context, collection string, params url.Values) ([]model.Record, error) {
	u := c.baseURL + "/" + url.PathEscape(collection)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return []model.Record{}, nil
		}
		return nil, err
	}
	if resp.Data == nil {
		return []model.Record{}, nil
	}
	return resp.Data, nil
}

func (c *Client) Get(ctx context.Context, collection, id string) (model.Record, error) {
	var rec model.Record
	if err := c.do(ctx, http.MethodGet, c.itemURL(collection, id), nil, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Client) Create(ctx context.Context, collection string, rec model.Record) (model.Record, error) {
	var out model.Record
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/"+url.PathEscape(collection), rec, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Replace(ctx context.Context, collection, id string, rec model.Record) (model.Record, error) {
	var out model.Record
	if err := c.do(ctx, http.MethodPut, c.itemURL(collection, id), rec, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Patch(ctx context.Context, collection, id string, partial model.Record) (model.Record, error) {
	var out model.Record
	if err := c.do(ctx, http.MethodPatch, c.itemURL(collection, id), partial, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, c.itemURL(collection, id), nil, nil)
}

func (c *Client) itemURL(collection, id string) string {
	return c.baseURL + "/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, u string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errs.New("failed to encode request body").Wrap(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errs.New("failed to build request").Arg("url", u).Wrap(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("url", u).Msg("table request failed")
		return errs.Transport("table store unreachable").Arg("method", method).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errs.NotFound("record not found").Arg("url", u)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status", resp.StatusCode).Str("method", method).Str("url", u).Msg("table request rejected")
		return errs.Transport("table store request failed").
			Arg("method", method).
			Arg("status", resp.StatusCode).
			Arg("body", strings.TrimSpace(string(snippet)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return errs.Transport("failed to decode table response").Arg("url", u).Wrap(err)
	}
	return nil
}
