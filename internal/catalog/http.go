package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"trawl/internal/logging"
	"trawl/internal/services"
)

// HTTPOptions configures the REST catalog client.
type HTTPOptions struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	Retries   int
	// RetryWait is the initial wait between retries; it doubles per attempt.
	RetryWait time.Duration
}

// HTTPClient talks to the catalog REST API:
//
//	GET /artists/{id}
//	GET /artists/{id}/similar
//	GET /artists/{id}/tracks
//	GET /tracks/{id}/download?quality=
type HTTPClient struct {
	api    *resty.Client
	stream *resty.Client
	logger *slog.Logger
}

type similarResponse struct {
	Artists []struct {
		ID string `json:"id"`
	} `json:"artists"`
}

type tracksResponse struct {
	Tracks []Track `json:"tracks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPClient builds a catalog client. Metadata requests are retried on 429
// and 5xx responses; payload downloads are not, because the download
// orchestrator applies its own retry policy.
func NewHTTPClient(opts HTTPOptions, logger *slog.Logger) *HTTPClient {
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	api := newResty(opts).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryWait * 8).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})
	return &HTTPClient{
		api:    api,
		stream: newStreamResty(opts),
		logger: logging.NewComponentLogger(logger, "catalog"),
	}
}

// newStreamResty bounds connecting and waiting for response headers by
// opts.Timeout but not reading the body, so a large track on a slow link is
// limited only by the caller's context.
func newStreamResty(opts HTTPOptions) *resty.Client {
	timeout := opts.Timeout
	opts.Timeout = 0
	client := newResty(opts)
	if timeout > 0 {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
		client.SetTransport(transport)
	}
	return client
}

func newResty(opts HTTPOptions) *resty.Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}
	return client
}

// Artist fetches artist metadata.
func (c *HTTPClient) Artist(ctx context.Context, id string) (Artist, error) {
	var out Artist
	resp, err := c.api.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&errorResponse{}).
		Get("/artists/{id}")
	if err := classify(ctx, "artist", id, resp, err); err != nil {
		return Artist{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// Similar fetches the ordered similar-artist list.
func (c *HTTPClient) Similar(ctx context.Context, id string) ([]string, error) {
	var out similarResponse
	resp, err := c.api.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&errorResponse{}).
		Get("/artists/{id}/similar")
	if err := classify(ctx, "similar", id, resp, err); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Artists))
	for _, a := range out.Artists {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

// Tracks fetches the artist's catalog in provider order.
func (c *HTTPClient) Tracks(ctx context.Context, id string) ([]Track, error) {
	var out tracksResponse
	resp, err := c.api.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&errorResponse{}).
		Get("/artists/{id}/tracks")
	if err := classify(ctx, "tracks", id, resp, err); err != nil {
		return nil, err
	}
	for i := range out.Tracks {
		if out.Tracks[i].ArtistID == "" {
			out.Tracks[i].ArtistID = id
		}
	}
	return out.Tracks, nil
}

// Fetch streams a track payload. The response body is handed to the caller
// unparsed.
func (c *HTTPClient) Fetch(ctx context.Context, trackID string, quality Quality) (io.ReadCloser, error) {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetPathParam("id", trackID).
		SetQueryParam("quality", string(quality)).
		SetHeader("Accept", "*/*").
		SetDoNotParseResponse(true).
		Get("/tracks/{id}/download")
	if err != nil {
		return nil, classify(ctx, "fetch", trackID, resp, err)
	}
	body := resp.RawBody()
	if resp.StatusCode() >= 300 {
		if body != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
			body.Close()
		}
		return nil, classify(ctx, "fetch", trackID, resp, nil)
	}
	c.logger.Debug("track stream opened",
		logging.String(logging.FieldTrackID, trackID),
		logging.String("quality", string(quality)),
	)
	return body, nil
}

func classify(ctx context.Context, operation, id string, resp *resty.Response, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransport, "catalog", operation, id, err)
	}
	if resp == nil {
		return services.Wrap(services.ErrTransport, "catalog", operation, id, errors.New("empty response"))
	}
	code := resp.StatusCode()
	switch {
	case code == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "catalog", operation, id, nil)
	case code >= 400:
		detail := fmt.Sprintf("%s: status %d", id, code)
		if e, ok := resp.Error().(*errorResponse); ok && e != nil && e.Error != "" {
			detail += ": " + e.Error
		}
		return services.Wrap(services.ErrTransport, "catalog", operation, detail, nil)
	}
	return nil
}
