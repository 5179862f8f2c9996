package status_rt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

const maxFeedBytes = 64 << 20

// Outcomes of applying one trip update, used as metric labels.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeUnmatched = "unmatched"
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
)

// ClassifyTripUpdate maps a trip update to a schedule status. Cancelled trips
// win over delays; otherwise the largest stop delay decides between delayed
// and on-time.
func ClassifyTripUpdate(tripUpdate *gtfs.TripUpdate, threshold time.Duration) (model.ScheduleStatus, int) {
	if tripUpdate.GetTrip().GetScheduleRelationship() == gtfs.TripDescriptor_CANCELED {
		return model.StatusCancelled, 0
	}

	var maxDelay int32
	for _, stopTimeUpdate := range tripUpdate.GetStopTimeUpdate() {
		if arrival := stopTimeUpdate.GetArrival(); arrival != nil && arrival.GetDelay() > maxDelay {
			maxDelay = arrival.GetDelay()
		}
		if departure := stopTimeUpdate.GetDeparture(); departure != nil && departure.GetDelay() > maxDelay {
			maxDelay = departure.GetDelay()
		}
	}

	delay := time.Duration(maxDelay) * time.Second
	if delay >= threshold {
		return model.StatusDelayed, int(delay / time.Minute)
	}
	return model.StatusOnTime, 0
}

type StatusWatcher struct {
	Urls      []string
	Client    *http.Client
	store     *store.Store
	metrics   *common.FeedMetrics
	logger    *slog.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time

	eventBuffer []store.StatusEvent
}

func NewStatusWatcher(urls []string, ticketingStore *store.Store, metrics *common.FeedMetrics, logger *slog.Logger, interval, threshold time.Duration) *StatusWatcher {
	return &StatusWatcher{
		Urls:        urls,
		Client:      &http.Client{Timeout: 30 * time.Second},
		store:       ticketingStore,
		metrics:     metrics,
		logger:      logger,
		interval:    interval,
		threshold:   threshold,
		now:         time.Now,
		eventBuffer: make([]store.StatusEvent, 0, 256),
	}
}

// DumpFeed writes a feed message as indented protojson.
func DumpFeed(writer io.Writer, message proto.Message) error {
	options := protojson.MarshalOptions{Multiline: true}
	jsonBytes, err := options.Marshal(message)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(writer, string(jsonBytes))
	return err
}

// FetchFeed downloads and decodes one GTFS-realtime feed. metrics may be nil.
func FetchFeed(ctx context.Context, client *http.Client, url string, metrics *common.FeedMetrics) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if metrics != nil {
		metrics.HttpTTFBSeconds.WithLabelValues(url).Observe(time.Since(start).Seconds())
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP Error: status code %d", resp.StatusCode)
	}

	readStart := time.Now()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		metrics.HttpReadBodySeconds.WithLabelValues(url).Observe(time.Since(readStart).Seconds())
		metrics.HttpBytesTotal.WithLabelValues(url).Add(float64(len(body)))
	}

	feedMessage := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feedMessage); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	return feedMessage, nil
}

func (watcher *StatusWatcher) SampleEndpoint(ctx context.Context, url string) (*gtfs.FeedMessage, error) {
	return FetchFeed(ctx, watcher.Client, url, watcher.metrics)
}

func (watcher *StatusWatcher) FlushStatusEvents(ctx context.Context) error {
	if _, err := watcher.store.RecordStatusEvents(ctx, watcher.eventBuffer); err != nil {
		return err
	}

	watcher.eventBuffer = watcher.eventBuffer[:0]
	return nil
}

// ApplyTripUpdate updates the schedule matching the trip and buffers an
// observation for it.
func (watcher *StatusWatcher) ApplyTripUpdate(ctx context.Context, tripUpdate *gtfs.TripUpdate, observedAt time.Time) (string, error) {
	tripID := tripUpdate.GetTrip().GetTripId()
	if tripID == "" {
		return OutcomeSkipped, nil
	}

	status, delay := ClassifyTripUpdate(tripUpdate, watcher.threshold)
	schedule, changed, err := watcher.store.ApplyScheduleStatus(ctx, tripID, status, delay)
	if errors.Is(err, store.ErrNotFound) {
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", fmt.Errorf("trip %s: %w", tripID, err)
	}
	if schedule.Status == model.StatusCompleted {
		return OutcomeCompleted, nil
	}

	watcher.eventBuffer = append(watcher.eventBuffer, store.StatusEvent{
		ScheduleID:   schedule.ID,
		Status:       status,
		DelayMinutes: delay,
		ObservedAt:   observedAt,
	})

	if !changed {
		return OutcomeUnchanged, nil
	}
	watcher.logger.Info("schedule status changed",
		"schedule", schedule.ID,
		"trip", tripID,
		"status", status,
		"delay_minutes", delay,
	)
	return OutcomeChanged, nil
}

// IngestFeedMessage applies every trip update of a feed and records the
// observations. Counts are keyed by outcome.
func (watcher *StatusWatcher) IngestFeedMessage(ctx context.Context, feedMessage *gtfs.FeedMessage) (map[string]int, error) {
	observedAt := watcher.now()
	if timestamp := feedMessage.GetHeader().GetTimestamp(); timestamp > 0 {
		observedAt = time.Unix(int64(timestamp), 0)
	}

	counts := map[string]int{}
	for _, entity := range feedMessage.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}

		outcome, err := watcher.ApplyTripUpdate(ctx, tripUpdate, observedAt)
		if err != nil {
			return counts, err
		}
		counts[outcome]++
		if watcher.metrics != nil {
			watcher.metrics.TripUpdatesTotal.WithLabelValues(outcome).Inc()
		}
	}

	if err := watcher.FlushStatusEvents(ctx); err != nil {
		return counts, err
	}

	return counts, nil
}

func (watcher *StatusWatcher) SampleEndpoints(ctx context.Context) error {
	benchmarker := common.NewBenchmarker(watcher.logger, "sample-endpoints")
	defer benchmarker.Close()

	for _, url := range watcher.Urls {
		feedMessage, err := watcher.SampleEndpoint(ctx, url)
		if err != nil {
			if watcher.metrics != nil {
				watcher.metrics.HttpErrorsTotal.WithLabelValues(url).Inc()
			}
			watcher.logger.Warn("failed to sample feed", "url", url, "error", err)
			continue
		}

		counts, err := watcher.IngestFeedMessage(ctx, feedMessage)
		if err != nil {
			return fmt.Errorf("failed to ingest feed from %s: %w", url, err)
		}
		watcher.logger.Info("sampled feed",
			"url", url,
			"entities", len(feedMessage.GetEntity()),
			"changed", counts[OutcomeChanged],
			"unmatched", counts[OutcomeUnmatched],
		)
	}
	return nil
}

// Watch polls every interval until ctx is cancelled. The first poll happens
// immediately.
func (watcher *StatusWatcher) Watch(ctx context.Context) error {
	ticker := time.NewTicker(watcher.interval)
	defer ticker.Stop()

	for {
		if err := watcher.SampleEndpoints(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
