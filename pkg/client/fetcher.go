package client

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/datataps/roomtap/pkg/errors"
	"github.com/datataps/roomtap/pkg/models"
)

// dateTimeFormat is the value injected into each record's date field: the
// request's logical day, normalized to midnight.
const dateTimeFormat = "2006-01-02 15:04"

// defaultDataKey names the result list in the envelope when a stream does
// not declare its own.
const defaultDataKey = "results"

// Fetcher accumulates and normalizes all pages of a single logical request:
// one stream, one day, one parent context.
type Fetcher struct {
	executor  *Executor
	pageLimit int
	logger    *zap.Logger
}

// NewFetcher creates a paginated fetcher on top of the request executor
func NewFetcher(executor *Executor, pageLimit int, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		executor:  executor,
		pageLimit: pageLimit,
		logger:    logger.With(zap.String("component", "fetcher")),
	}
}

// FetchDay fetches every page for the request context and returns the
// flattened, normalized record list. Pagination stops at the first page
// whose result list is empty; the absence of results, not the absence of a
// cursor, is the termination signal. Errors from the executor propagate
// unchanged. No page-count bound is enforced: an upstream that never returns
// an empty page is an external contract violation, not something guarded
// here.
func (f *Fetcher) FetchDay(ctx context.Context, route string, base map[string]string, day time.Time, dataKey string) ([]models.Record, error) {
	if dataKey == "" {
		dataKey = defaultDataKey
	}

	params := make(map[string]string, len(base)+2)
	for k, v := range base {
		params[k] = v
	}
	params["limit"] = strconv.Itoa(f.pageLimit)

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dateStamp := midnight.Format(dateTimeFormat)

	var out []models.Record
	page := 1

	for {
		env, err := f.executor.Execute(ctx, route, params)
		if err != nil {
			return nil, err
		}

		items, err := resultList(env, dataKey)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			raw, ok := item.(map[string]interface{})
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeData, "result item in %q is not an object", dataKey)
			}
			out = append(out, normalize(raw, dateStamp))
		}

		cursor, _ := env["cursor"].(string)
		params["cursor"] = cursor

		f.logger.Debug("fetched page",
			zap.String("route", route),
			zap.Int("page", page),
			zap.Int("records", len(items)))
		page++
	}

	return out, nil
}

// resultList extracts the result list from the envelope. A missing key is
// an empty page; a present key of the wrong shape is a data error.
func resultList(env Envelope, dataKey string) ([]interface{}, error) {
	raw, ok := env[dataKey]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "envelope key %q is not a list", dataKey)
	}
	return items, nil
}

// normalize injects the request day and strips explicit nulls
func normalize(raw map[string]interface{}, dateStamp string) models.Record {
	rec := make(models.Record, len(raw)+1)
	rec["date"] = dateStamp
	for k, v := range raw {
		if v == nil {
			continue
		}
		rec[k] = v
	}
	return rec
}
