package client

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datataps/roomtap/pkg/errors"
)

func testFetcher(t *testing.T, handler http.Handler) *Fetcher {
	t.Helper()
	executor, _ := testExecutor(t, handler)
	return NewFetcher(executor, 400, zap.NewNop())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFetchDayPaginates(t *testing.T) {
	pages := []string{
		`{"data":{"results":[{"id":"r1"},{"id":"r2"}],"cursor":"c1"}}`,
		`{"data":{"results":[{"id":"r3"}],"cursor":"c2"}}`,
		`{"data":{"results":[],"cursor":"c3"}}`,
	}
	var cursors []string
	calls := 0

	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursors = append(cursors, r.URL.Query().Get("cursor"))
		require.Less(t, calls, len(pages), "no request may follow an empty page")
		_, _ = w.Write([]byte(pages[calls]))
		calls++
	}))

	records, err := fetcher.FetchDay(context.Background(), "venue/v1/reservations", nil, day(2024, 1, 5), "results")
	require.NoError(t, err)

	assert.Len(t, records, 3)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"", "c1", "c2"}, cursors)
}

func TestFetchDayEmptyFirstPage(t *testing.T) {
	calls := 0
	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"data":{"results":[],"cursor":"c1"}}`))
	}))

	records, err := fetcher.FetchDay(context.Background(), "venues", nil, day(2024, 1, 5), "results")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, calls, "a present cursor must not extend pagination past an empty page")
}

func TestFetchDayNormalizesRecords(t *testing.T) {
	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") != "" {
			_, _ = w.Write([]byte(`{"data":{"results":[]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"results":[{"a":1,"b":null,"c":"x"}],"cursor":"c1"}}`))
	}))

	records, err := fetcher.FetchDay(context.Background(), "venues", nil, day(2024, 1, 5), "results")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "2024-01-05 00:00", rec["date"])
	assert.Contains(t, rec, "a")
	assert.Equal(t, "x", rec["c"])
	assert.NotContains(t, rec, "b", "null fields are stripped, not kept as nil")
}

func TestFetchDayKeepsRecordDateField(t *testing.T) {
	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") != "" {
			_, _ = w.Write([]byte(`{"data":{"results":[]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"results":[{"id":"r1","date":"2024-01-05 19:30"}],"cursor":"c1"}}`))
	}))

	records, err := fetcher.FetchDay(context.Background(), "venues", nil, day(2024, 1, 5), "results")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-05 19:30", records[0]["date"], "a date reported by the API wins over the injected one")
}

func TestFetchDaySendsLimitAndBaseParams(t *testing.T) {
	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "400", r.URL.Query().Get("limit"))
		assert.Equal(t, "2024-01-05", r.URL.Query().Get("from_date"))
		assert.Equal(t, "2024-01-05", r.URL.Query().Get("to_date"))
		_, _ = w.Write([]byte(`{"data":{"results":[]}}`))
	}))

	base := map[string]string{"from_date": "2024-01-05", "to_date": "2024-01-05"}
	_, err := fetcher.FetchDay(context.Background(), "venues", base, day(2024, 1, 5), "results")
	require.NoError(t, err)
}

func TestFetchDayMissingDataKeyIsEmptyPage(t *testing.T) {
	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"cursor":"c1"}}`))
	}))

	records, err := fetcher.FetchDay(context.Background(), "venues", nil, day(2024, 1, 5), "results")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchDayWrongShapeIsDataError(t *testing.T) {
	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"results":"not a list"}}`))
	}))

	_, err := fetcher.FetchDay(context.Background(), "venues", nil, day(2024, 1, 5), "results")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestFetchDayPropagatesExecutorError(t *testing.T) {
	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"msg":"no access"}`))
	}))

	_, err := fetcher.FetchDay(context.Background(), "venues", nil, day(2024, 1, 5), "results")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePermission))
}

func TestFetchDayDoesNotMutateBaseParams(t *testing.T) {
	calls := 0
	fetcher := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(fmt.Sprintf(`{"data":{"results":[{"id":"r%d"}],"cursor":"c1"}}`, calls)))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"results":[]}}`))
	}))

	base := map[string]string{"venue_group_id": "vg1"}
	_, err := fetcher.FetchDay(context.Background(), "venues", base, day(2024, 1, 5), "results")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"venue_group_id": "vg1"}, base)
}
