package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/curbdata/parking-aggregator/internal/config"
)

// OpenDataClient pages through a Socrata-style open data portal. Datasets
// are resources returning JSON arrays; $limit/$offset paginate and an
// empty page terminates. One client is shared by the meters, census, and
// citations adapters so their requests share a single pacer against the
// portal's per-host rate limit.
type OpenDataClient struct {
	apiClient
	baseURL  string
	appToken string
	pageSize int
	logger   *slog.Logger
}

// NewOpenDataClient creates a portal client. AppToken is optional;
// anonymous requests are throttled harder by the portal, which the 429
// retry path absorbs.
func NewOpenDataClient(cfg config.OpenDataConfig, logger *slog.Logger) *OpenDataClient {
	return &OpenDataClient{
		apiClient: newAPIClient(cfg.RequestTimeout, cfg.PageInterval, cfg.MaxRetries),
		baseURL:   cfg.BaseURL,
		appToken:  cfg.AppToken,
		pageSize:  cfg.PageSize,
		logger:    logger,
	}
}

// fetchDataset retrieves every record of a dataset resource. params are
// passed through on each page, e.g. a $where filter.
func (c *OpenDataClient) fetchDataset(ctx context.Context, dataset string, params url.Values) ([]json.RawMessage, error) {
	var records []json.RawMessage
	offset := 0
	for {
		page, err := c.fetchPage(ctx, dataset, params, offset)
		if err != nil {
			return nil, fmt.Errorf("dataset %s offset %d: %w", dataset, offset, err)
		}
		if len(page) == 0 {
			return records, nil
		}
		records = append(records, page...)
		c.logger.Debug("fetched page", "dataset", dataset, "offset", offset, "records", len(page))
		offset += len(page)
	}
}

func (c *OpenDataClient) fetchPage(ctx context.Context, dataset string, params url.Values, offset int) ([]json.RawMessage, error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("$limit", strconv.Itoa(c.pageSize))
	q.Set("$offset", strconv.Itoa(offset))

	fullURL := fmt.Sprintf("%s/resource/%s.json?%s", c.baseURL, dataset, q.Encode())

	var header http.Header
	if c.appToken != "" {
		header = http.Header{"X-App-Token": {c.appToken}}
	}

	var page []json.RawMessage
	if err := c.getJSON(ctx, fullURL, header, &page); err != nil {
		return nil, err
	}
	return page, nil
}
