// Package sync orchestrates extraction: the per-stream day loop, the
// parent-to-child cascade, and checkpoint advancement. The driver is the
// only component with cross-stream knowledge; everything below it sees one
// request context at a time.
package sync

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datataps/roomtap/pkg/catalog"
	"github.com/datataps/roomtap/pkg/config"
	"github.com/datataps/roomtap/pkg/emit"
	"github.com/datataps/roomtap/pkg/errors"
	"github.com/datataps/roomtap/pkg/metrics"
	"github.com/datataps/roomtap/pkg/models"
	"github.com/datataps/roomtap/pkg/state"
)

// Fetcher fetches all pages for one stream, one day, one parent context
type Fetcher interface {
	FetchDay(ctx context.Context, route string, base map[string]string, day time.Time, dataKey string) ([]models.Record, error)
}

// Driver runs the extraction across all selected streams
type Driver struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	fetcher Fetcher
	store   *state.Store
	emitter emit.Emitter
	logger  *zap.Logger

	schemasSent map[string]bool
}

// NewDriver assembles the sync driver
func NewDriver(cfg *config.Config, cat *catalog.Catalog, fetcher Fetcher, store *state.Store, emitter emit.Emitter, logger *zap.Logger) *Driver {
	return &Driver{
		cfg:         cfg,
		catalog:     cat,
		fetcher:     fetcher,
		store:       store,
		emitter:     emitter,
		logger:      logger.With(zap.String("component", "sync")),
		schemasSent: make(map[string]bool),
	}
}

// Run syncs every selected top-level stream in order. An empty selection
// means all streams. If a previous run left a currently-syncing marker, the
// order is rotated so the interrupted stream resumes first. Any error
// escaping a stream aborts the run; the marker is left in place so the next
// run resumes there.
func (d *Driver) Run(ctx context.Context, selected []string) error {
	selection := make(map[string]bool, len(selected))
	for _, name := range selected {
		selection[strings.TrimSpace(name)] = true
	}

	order := d.streamOrder()

	for _, name := range order {
		stream := d.catalog.Streams[name]
		if !treeSelected(stream, selection) {
			d.logger.Info("stream not selected, skipping", zap.String("stream", name))
			continue
		}

		if err := d.store.SetCurrentlySyncing(name); err != nil {
			return err
		}
		if err := d.emitter.State(d.store.Snapshot()); err != nil {
			return err
		}

		if err := d.syncStream(ctx, stream, selection); err != nil {
			return errors.Wrap(err, errors.TypeOf(err), "stream "+name+" failed").WithDetail("stream", name)
		}
	}

	if err := d.store.ClearCurrentlySyncing(); err != nil {
		return err
	}
	return d.emitter.State(d.store.Snapshot())
}

// streamOrder returns top-level stream names, rotated so an interrupted
// stream from a prior run goes first.
func (d *Driver) streamOrder() []string {
	order := d.catalog.StreamNames()

	marker := d.store.CurrentlySyncing()
	if marker == "" {
		return order
	}
	for i, name := range order {
		if name == marker {
			d.logger.Warn("resuming interrupted run", zap.String("stream", marker))
			return append(order[i:], order[:i]...)
		}
	}
	return order
}

// syncStream walks the stream's day window. The first day is the configured
// start, or the day after the resume bookmark when one exists and is later;
// each completed day moves the bookmark and is never re-fetched by a resumed
// run.
func (d *Driver) syncStream(ctx context.Context, stream *catalog.StreamDefinition, selection map[string]bool) error {
	day := d.cfg.Start()
	if bookmark, ok := d.resumeBookmark(stream, selection); ok {
		if next := bookmark.AddDate(0, 0, 1); next.After(day) {
			day = next
		}
	}
	end := d.cfg.End()

	d.logger.Info("syncing stream",
		zap.String("stream", stream.Name),
		zap.String("from", day.Format(config.DateFormat)),
		zap.String("to", end.Format(config.DateFormat)))

	for !day.After(end) {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "sync cancelled")
		}
		if err := d.syncDay(ctx, stream, day, selection); err != nil {
			return err
		}
		day = day.AddDate(0, 0, 1)
	}

	return nil
}

// resumeBookmark returns the day up to which the stream tree is known
// complete. For a bookmarked stream that is its own bookmark. A stream
// without a replication key resumes at the oldest bookmark among its
// selected children: a day is only skippable once every child has it.
func (d *Driver) resumeBookmark(stream *catalog.StreamDefinition, selection map[string]bool) (time.Time, bool) {
	if stream.HasReplicationKey() {
		return d.store.Bookmark(stream.Name)
	}

	var oldest time.Time
	found := false
	for _, childName := range stream.ChildNames() {
		if !isSelected(childName, selection) {
			continue
		}
		bookmark, ok := d.store.Bookmark(childName)
		if !ok {
			return time.Time{}, false
		}
		if !found || bookmark.Before(oldest) {
			oldest = bookmark
			found = true
		}
	}
	return oldest, found
}

// syncDay extracts one day of the parent stream, cascades into selected
// children per parent record, then checkpoints the day.
func (d *Driver) syncDay(ctx context.Context, stream *catalog.StreamDefinition, day time.Time, selection map[string]bool) error {
	if isSelected(stream.Name, selection) {
		if err := d.sendSchema(stream); err != nil {
			return err
		}
	}

	// the parent is always fetched (children need its keys) but its records
	// are only emitted when it is itself selected
	records, err := d.fetcher.FetchDay(ctx, stream.Path, d.buildParams(stream, day, nil), day, stream.DataKey)
	if err != nil {
		return err
	}
	if isSelected(stream.Name, selection) {
		for _, rec := range records {
			if err := d.emitter.Record(stream.Name, rec); err != nil {
				return err
			}
		}
		metrics.RecordsEmitted.WithLabelValues(stream.Name).Add(float64(len(records)))
	}

	for _, childName := range stream.ChildNames() {
		if !isSelected(childName, selection) {
			continue
		}
		child := stream.Children[childName]
		if err := d.syncChildDay(ctx, stream, child, day, records); err != nil {
			return err
		}
	}

	if stream.HasReplicationKey() && isSelected(stream.Name, selection) {
		if err := d.checkpoint(stream.Name, day); err != nil {
			return err
		}
	}
	metrics.DaysSynced.WithLabelValues(stream.Name).Inc()

	d.logger.Info("day complete",
		zap.String("stream", stream.Name),
		zap.String("day", day.Format(config.DateFormat)),
		zap.Int("records", len(records)))
	return nil
}

// syncChildDay fetches one day of a child stream once per parent record,
// substituting the parent's key into the child's path. A day at or before
// the child's own bookmark is already checkpointed and is not fetched again:
// an interrupt between sibling checkpoints leaves the children on unequal
// bookmarks, and the shared day loop resumes from the slowest one.
func (d *Driver) syncChildDay(ctx context.Context, parent, child *catalog.StreamDefinition, day time.Time, parents []models.Record) error {
	if bookmark, ok := d.store.Bookmark(child.Name); ok && !bookmark.Before(day) {
		d.logger.Debug("day already checkpointed, skipping",
			zap.String("stream", child.Name),
			zap.String("day", day.Format(config.DateFormat)))
		return nil
	}

	if err := d.sendSchema(child); err != nil {
		return err
	}

	keyField := parent.KeyProperty()
	emitted := 0

	for _, parentRec := range parents {
		key := parentRec.Key(keyField)
		if key == "" {
			d.logger.Warn("parent record missing key, skipping children",
				zap.String("stream", parent.Name),
				zap.String("key_field", keyField))
			continue
		}

		route := catalog.SubstitutePath(child.Path, key)
		records, err := d.fetcher.FetchDay(ctx, route, d.buildParams(child, day, parentRec), day, child.DataKey)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := d.emitter.Record(child.Name, rec); err != nil {
				return err
			}
		}
		emitted += len(records)
	}
	metrics.RecordsEmitted.WithLabelValues(child.Name).Add(float64(emitted))

	if child.HasReplicationKey() {
		if err := d.checkpoint(child.Name, day); err != nil {
			return err
		}
	}
	metrics.DaysSynced.WithLabelValues(child.Name).Inc()
	return nil
}

// buildParams assembles request parameters for one stream and day.
// Placeholder values in extra parameters resolve from run configuration
// first, then from the current parent record. Date filters are only sent
// when the stream declares them.
func (d *Driver) buildParams(stream *catalog.StreamDefinition, day time.Time, parent models.Record) map[string]string {
	params := make(map[string]string, len(stream.ExtraParams)+2)

	for k, v := range stream.ExtraParams {
		params[k] = d.resolvePlaceholder(v, parent)
	}
	if stream.UseDates {
		stamp := day.Format(config.DateFormat)
		params["from_date"] = stamp
		params["to_date"] = stamp
	}
	return params
}

func (d *Driver) resolvePlaceholder(value string, parent models.Record) string {
	if !strings.HasPrefix(value, "{") || !strings.HasSuffix(value, "}") {
		return value
	}
	name := value[1 : len(value)-1]
	if v, ok := d.cfg.Params[name]; ok {
		return v
	}
	if parent != nil {
		if v := parent.Key(name); v != "" {
			return v
		}
	}
	return ""
}

// sendSchema emits the stream's schema message once per run
func (d *Driver) sendSchema(stream *catalog.StreamDefinition) error {
	if d.schemasSent[stream.Name] {
		return nil
	}
	if err := d.emitter.Schema(stream.Name, stream.KeyProperties, stream.ReplicationKeys); err != nil {
		return err
	}
	d.schemasSent[stream.Name] = true
	return nil
}

// isSelected reports whether a stream is in the selection; an empty
// selection selects everything.
func isSelected(name string, selection map[string]bool) bool {
	return len(selection) == 0 || selection[name]
}

// treeSelected reports whether a top-level stream or any of its children is
// selected. Selecting only a child still requires the parent's fetch.
func treeSelected(stream *catalog.StreamDefinition, selection map[string]bool) bool {
	if isSelected(stream.Name, selection) {
		return true
	}
	for _, childName := range stream.ChildNames() {
		if isSelected(childName, selection) {
			return true
		}
	}
	return false
}

// checkpoint records a completed day and emits the updated state
func (d *Driver) checkpoint(stream string, day time.Time) error {
	if err := d.store.SetBookmark(stream, day); err != nil {
		return err
	}
	return d.emitter.State(d.store.Snapshot())
}
