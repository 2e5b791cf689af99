package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/bus"
	"github.com/desertthunder/beatsync/internal/cache"
	"github.com/desertthunder/beatsync/internal/models"
	"github.com/desertthunder/beatsync/internal/scraper"
	"github.com/desertthunder/beatsync/internal/shared"
)

// HistoryRecorder persists cycle outcomes. A nil recorder disables history
// without disabling the pipeline.
type HistoryRecorder interface {
	StartRun(ctx context.Context, startedAt time.Time, sources int) (int64, error)
	FinishRun(ctx context.Context, runID int64, finishedAt time.Time, synced, failed int) error
	RecordPlaylistSync(ctx context.Context, sync models.PlaylistSync) error
}

// cycleState tracks one in-flight cycle so the pipeline can log total cycle
// runtime and close the run record once every source has settled.
type cycleState struct {
	runID     int64
	startedAt time.Time
	remaining int
	synced    int
	failed    int
}

// Pipeline wires the sync stages to the bus topics. Each handler consumes
// one topic, does one stage of work, and publishes the next topic, so a
// cycle fans out across sources and the stages run concurrently.
type Pipeline struct {
	sources    []string
	scraper    scraper.Scraper
	reconciler *Reconciler
	cache      *cache.TrackMatchCache
	publisher  message.Publisher
	history    HistoryRecorder
	logger     *log.Logger

	mu    sync.Mutex
	cycle *cycleState
}

// NewPipeline creates the pipeline over the configured source URLs.
func NewPipeline(sources []string, sc scraper.Scraper, reconciler *Reconciler, matchCache *cache.TrackMatchCache, publisher message.Publisher, history HistoryRecorder, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		sources:    sources,
		scraper:    sc,
		reconciler: reconciler,
		cache:      matchCache,
		publisher:  publisher,
		history:    history,
		logger:     logger,
	}
}

// Register attaches the sync stage handlers to the router. Cover stage
// handlers are registered separately by the caller so the pipeline stays
// ignorant of the cover feature flag.
func (p *Pipeline) Register(router *message.Router, subscriber message.Subscriber) {
	router.AddNoPublisherHandler("cycle_fan_out", bus.TopicCycleScheduled, subscriber, p.HandleCycleScheduled)
	router.AddNoPublisherHandler("source_scraper", bus.TopicSourceObtained, subscriber, p.HandleSourceObtained)
	router.AddNoPublisherHandler("playlist_reconciler", bus.TopicPlaylistParsed, subscriber, p.HandlePlaylistParsed)
}

// HandleCycleScheduled opens a new run and fans the configured source URLs
// out onto the bus, one message per chart. A tick arriving while a previous
// cycle is still settling is skipped, so stragglers can never decrement a
// newer cycle's counters or close its run early.
func (p *Pipeline) HandleCycleScheduled(msg *message.Message) error {
	p.mu.Lock()
	inFlight := p.cycle != nil
	p.mu.Unlock()
	if inFlight {
		p.logger.Warn("previous cycle still in flight, skipping this tick")
		return nil
	}

	startedAt := time.Now()
	p.logger.Info("scheduled update started", "sources", len(p.sources))

	var runID int64
	if p.history != nil {
		id, err := p.history.StartRun(msg.Context(), startedAt, len(p.sources))
		if err != nil {
			p.logger.Error("failed to record run start", "err", err)
		} else {
			runID = id
		}
	}

	p.mu.Lock()
	p.cycle = &cycleState{runID: runID, startedAt: startedAt, remaining: len(p.sources)}
	p.mu.Unlock()

	for _, url := range p.sources {
		event, err := bus.Marshal(bus.SourceObtained{URL: url})
		if err != nil {
			return err
		}
		if err := p.publisher.Publish(bus.TopicSourceObtained, event); err != nil {
			return err
		}
	}

	if len(p.sources) == 0 {
		p.logger.Warn("no source URLs configured, nothing to sync")
		p.finishCycle(msg.Context())
	}
	return nil
}

// HandleSourceObtained scrapes one chart page and publishes the parsed
// playlist. Scrape failures settle the source as failed instead of retrying
// forever; the next cycle gets a fresh attempt anyway.
func (p *Pipeline) HandleSourceObtained(msg *message.Message) error {
	var event bus.SourceObtained
	if err := bus.Unmarshal(msg, &event); err != nil {
		p.logger.Error("dropping malformed source event", "err", err)
		return nil
	}

	ctx := msg.Context()

	playlist, err := p.scraper.Scrape(ctx, event.URL)
	if err != nil {
		p.logger.Error("failed to scrape source", "url", event.URL, "err", err)
		p.settleSource(ctx, models.PlaylistSync{
			SourceURL: event.URL,
			Err:       err.Error(),
		})
		return nil
	}

	p.logger.Info("scraped source playlist", "title", playlist.Title, "tracks", len(playlist.Tracks))

	parsed, err := bus.Marshal(playlist)
	if err != nil {
		return err
	}
	return p.publisher.Publish(bus.TopicPlaylistParsed, parsed)
}

// HandlePlaylistParsed reconciles one parsed playlist against Spotify and
// settles the source. The match cache is flushed after every playlist so a
// crash mid-cycle keeps the matches already paid for.
func (p *Pipeline) HandlePlaylistParsed(msg *message.Message) error {
	var playlist models.SourcePlaylist
	if err := bus.Unmarshal(msg, &playlist); err != nil {
		p.logger.Error("dropping malformed playlist", "err", err)
		return nil
	}

	ctx := msg.Context()
	record := models.PlaylistSync{
		Title:     playlist.Title,
		SourceURL: playlist.URL,
		Total:     len(playlist.Tracks),
	}

	result, err := p.reconciler.Reconcile(ctx, &playlist)
	if err != nil {
		p.logger.Error("failed to sync playlist", "title", playlist.Title, "err", err)
		record.Err = err.Error()
	} else {
		record.TargetID = result.Target.ID
		record.Matched = result.Matched
		record.Created = result.Created
	}

	if p.cache != nil {
		if err := p.cache.Flush(); err != nil {
			p.logger.Error("failed to persist track match cache", "err", err)
		}
	}

	p.settleSource(ctx, record)
	return nil
}

// settleSource records one finished source and, when it was the last one
// outstanding, closes the cycle.
func (p *Pipeline) settleSource(ctx context.Context, record models.PlaylistSync) {
	record.FinishedAt = time.Now()

	p.mu.Lock()
	if p.cycle != nil {
		record.RunID = p.cycle.runID
		if record.Succeeded() {
			p.cycle.synced++
		} else {
			p.cycle.failed++
		}
		if p.cycle.remaining > 0 {
			p.cycle.remaining--
		}
	}
	done := p.cycle != nil && p.cycle.remaining == 0
	p.mu.Unlock()

	if p.history != nil {
		if err := p.history.RecordPlaylistSync(ctx, record); err != nil {
			p.logger.Error("failed to record playlist sync", "err", err)
		}
	}

	if done {
		p.finishCycle(ctx)
	}
}

func (p *Pipeline) finishCycle(ctx context.Context) {
	p.mu.Lock()
	state := p.cycle
	p.cycle = nil
	p.mu.Unlock()

	if state == nil {
		return
	}

	finishedAt := time.Now()
	p.logger.Info("scheduled update finished",
		"synced", state.synced,
		"failed", state.failed,
		"duration", finishedAt.Sub(state.startedAt).Round(time.Millisecond),
	)

	if p.history != nil && state.runID != 0 {
		if err := p.history.FinishRun(ctx, state.runID, finishedAt, state.synced, state.failed); err != nil {
			p.logger.Error("failed to record run finish", "err", err)
		}
	}
}
