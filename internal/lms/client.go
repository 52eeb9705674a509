// Package lms is a client for the LMS REST API the roster is exported from.
package lms

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/logger"
)

const apiVersion = "2"

// api decodes numbers as json.Number so that large ids survive unchanged.
var api = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

// Client talks to the LMS REST API. It is safe for concurrent use.
type Client struct {
	cfg  *Config
	http *http.Client
	log  *logger.Logger
}

// New returns a Client for cfg. A nil logger discards output.
func New(cfg *Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// Authenticate exchanges the configured credentials for an access token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	payload, err := api.Marshal(map[string]string{
		"username":   c.cfg.Username,
		"password":   c.cfg.Password,
		"privateKey": c.cfg.PrivateKey,
	})
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "encode credentials", err)
	}

	body, err := c.do(ctx, http.MethodPost, "authenticate", "", nil, payload)
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}

	token, err := parseToken(body)
	if err != nil {
		return "", err
	}
	c.log.Info("retrieved access token")
	return token, nil
}

// parseToken accepts either a bare JSON string or an object carrying the
// token under one of the usual names.
func parseToken(body []byte) (string, error) {
	var token string
	if err := api.Unmarshal(body, &token); err == nil && token != "" {
		return token, nil
	}

	var obj map[string]any
	if err := api.Unmarshal(body, &obj); err == nil {
		for _, k := range []string{"accessToken", "access_token", "token"} {
			if s, ok := obj[k].(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return "", errs.New(errs.ErrKindQueryFailed, "authenticate response carries no access token")
}

// usersPage is one page of the users listing.
type usersPage struct {
	TotalItems    int              `json:"totalItems"`
	Limit         int              `json:"limit"`
	Offset        int              `json:"offset"`
	ReturnedItems int              `json:"returnedItems"`
	Users         []map[string]any `json:"users"`
}

// ListUsers returns every user matching filter, following _offset paging
// until the reported total is reached or a page comes back empty. The
// paging envelope (totalItems, limit, offset, returnedItems) is dropped.
func (c *Client) ListUsers(ctx context.Context, token, filter string) ([]map[string]any, error) {
	path, err := c.Endpoint(ResourceListUsers, "")
	if err != nil {
		return nil, err
	}

	var users []map[string]any
	offset := 0
	for {
		q := url.Values{}
		if filter != "" {
			q.Set("_filter", filter)
		}
		if c.cfg.PageSize > 0 {
			q.Set("_limit", strconv.Itoa(c.cfg.PageSize))
		}
		if offset > 0 {
			q.Set("_offset", strconv.Itoa(offset))
		}

		body, err := c.do(ctx, http.MethodGet, path, token, q, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve users: %w", err)
		}

		var page usersPage
		if err := api.Unmarshal(body, &page); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "decode users page", err)
		}

		users = append(users, page.Users...)
		c.log.With().
			Int("offset", offset).
			Int("returned", len(page.Users)).
			Int("total", page.TotalItems).
			Logger().
			Debug("retrieved users page")

		n := page.ReturnedItems
		if n == 0 {
			n = len(page.Users)
		}
		offset += n
		if n == 0 || offset >= page.TotalItems {
			break
		}
	}

	c.log.Infof("retrieved %d users", len(users))
	return users, nil
}

// do sends one API request, retrying network failures, 429 and 5xx responses
// with exponential backoff. It returns the body of a 200 response.
func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, payload []byte) ([]byte, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body []byte
	op := func() error {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return backoff.Permanent(errs.Wrap(errs.ErrKindInvalidInput, "build request", err))
		}
		req.Header.Set("x-api-key", c.cfg.PrivateKey)
		req.Header.Set("x-api-version", apiVersion)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(errs.Wrap(errs.ErrKindTimeout, method+" "+path, err))
			}
			return errs.Wrap(errs.ErrKindConnectionFailed, method+" "+path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.Wrap(errs.ErrKindConnectionFailed, "read response body", err)
		}

		if resp.StatusCode == http.StatusOK {
			body = data
			return nil
		}

		statusErr := statusError(method, path, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	notify := func(err error, wait time.Duration) {
		c.log.WarnWith("lms request failed, retrying", err, map[string]interface{}{
			"path": path,
			"wait": wait.String(),
		})
	}

	if err := backoff.RetryNotify(op, c.backoff(ctx), notify); err != nil {
		if errs.KindOf(err) == errs.ErrKindUnknown && ctx.Err() != nil {
			return nil, errs.Wrap(errs.ErrKindTimeout, method+" "+path, err)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)
}

func statusError(method, path string, status int) *errs.Error {
	msg := fmt.Sprintf("%s %s returned %d %s", method, path, status, http.StatusText(status))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.New(errs.ErrKindPermissionDenied, msg)
	case status == http.StatusNotFound:
		return errs.New(errs.ErrKindNotFound, msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return errs.New(errs.ErrKindConnectionFailed, msg)
	default:
		return errs.New(errs.ErrKindQueryFailed, msg)
	}
}
