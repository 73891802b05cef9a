// Package sync keeps the in-memory message stream converged with the room:
// optimistic local sends, push deliveries from the channel and a polling
// fallback all funnel through one merge path.
package sync

import (
	"context"
	"sort"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glotpad/glotpad/internal/bus"
	"github.com/glotpad/glotpad/internal/identity"
	"github.com/glotpad/glotpad/internal/realtime"
	"github.com/glotpad/glotpad/internal/store"
	"github.com/glotpad/glotpad/internal/translate"
)

const checkpointKey = "poll.cursor"

// Options carries the engine's collaborators and tuning knobs.
type Options struct {
	DB           *store.DB
	Channel      realtime.Channel
	Translator   *translate.Translator
	Bus          *bus.Bus
	Logger       *zap.Logger
	Profile      identity.Profile
	SourceLocale string
	Targets      []string
	PollInterval time.Duration
}

// Engine owns the ordered message history for one room.
type Engine struct {
	db           *store.DB
	channel      realtime.Channel
	translator   *translate.Translator
	bus          *bus.Bus
	logger       *zap.Logger
	profile      identity.Profile
	sourceLocale string
	targets      []string
	pollInterval time.Duration

	mu      gosync.Mutex
	history []*store.Message
	ids     map[string]bool

	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// NewEngine builds an engine; Start must be called before use.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Engine{
		db:           opts.DB,
		channel:      opts.Channel,
		translator:   opts.Translator,
		bus:          opts.Bus,
		logger:       logger.Named("sync"),
		profile:      opts.Profile,
		sourceLocale: opts.SourceLocale,
		targets:      opts.Targets,
		pollInterval: interval,
		ids:          make(map[string]bool),
	}
}

// Start loads durable history and begins consuming push deliveries and the
// poll ticker. It returns once the initial load is done.
func (e *Engine) Start(ctx context.Context) error {
	rows, err := e.db.ListMessagesAfter(0)
	if err != nil {
		return err
	}
	e.mu.Lock()
	for i := range rows {
		m := rows[i]
		e.history = append(e.history, &m)
		e.ids[m.MsgID] = true
	}
	e.mu.Unlock()
	e.logger.Info("history loaded", zap.Int("messages", len(rows)))

	ctx, e.cancel = context.WithCancel(ctx)

	events, unsub := e.channel.Subscribe(64)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-events:
				if evt.Kind == realtime.EventMessageInsert && evt.Message != nil {
					e.MergeRemote(evt.Message)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.pollOnce()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop cancels the engine's goroutines and waits for them.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// History returns a snapshot copy of the ordered stream.
func (e *Engine) History() []store.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]store.Message, len(e.history))
	for i, m := range e.history {
		out[i] = *m
	}
	return out
}

// Send appends the message optimistically and hands off enrichment,
// persistence and broadcast to the background. Blank content and a missing
// profile are both silent no-ops.
func (e *Engine) Send(ctx context.Context, content string) {
	content = strings.TrimSpace(content)
	if content == "" || e.profile.IsZero() {
		return
	}

	msg := &store.Message{
		MsgID:            uuid.NewString(),
		Content:          content,
		OriginalLanguage: e.sourceLocale,
		Translations:     map[string]string{},
		UserName:         e.profile.Name,
		Status:           store.StatusOptimistic,
		CreatedAt:        time.Now().UnixMilli(),
	}

	e.mu.Lock()
	e.history = append(e.history, msg)
	e.ids[msg.MsgID] = true
	e.mu.Unlock()

	e.publish(bus.KindMessageAppended, *msg)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(ctx, msg.MsgID, content)
	}()
}

// deliver runs the post-send pipeline: translate, persist, broadcast. Each
// stage failure is logged and the later stages still run so the local copy
// never disappears.
func (e *Engine) deliver(ctx context.Context, msgID, content string) {
	translations := e.translator.TranslateBatch(ctx, content, e.targets, e.sourceLocale, "chat message")
	enriched := e.applyTranslations(msgID, translations)
	if enriched != nil {
		e.publish(bus.KindMessageEnriched, *enriched)
	}

	persisted := e.persist(msgID)
	if persisted == nil {
		return
	}
	if err := e.channel.PublishMessage(ctx, persisted); err != nil {
		e.logger.Warn("broadcast failed, peers will pick the message up by poll",
			zap.String("msg_id", msgID), zap.Error(err))
	}
}

func (e *Engine) applyTranslations(msgID string, translations map[string]string) *store.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.history {
		if m.MsgID == msgID {
			m.Translations = translations
			cp := *m
			return &cp
		}
	}
	return nil
}

func (e *Engine) persist(msgID string) *store.Message {
	e.mu.Lock()
	var target *store.Message
	for _, m := range e.history {
		if m.MsgID == msgID {
			target = m
			break
		}
	}
	if target == nil {
		e.mu.Unlock()
		return nil
	}
	cp := *target
	e.mu.Unlock()

	cp.Status = store.StatusConfirmed
	if err := e.db.InsertMessage(&cp); err != nil {
		e.logger.Warn("persist failed, keeping optimistic copy",
			zap.String("msg_id", msgID), zap.Error(err))
		return nil
	}

	e.mu.Lock()
	target.Status = store.StatusConfirmed
	cp = *target
	e.mu.Unlock()

	e.publish(bus.KindMessageConfirmed, cp)
	return &cp
}

// MergeRemote is the single entry point for messages arriving from outside,
// whether pushed or polled. Own messages and duplicates are dropped.
func (e *Engine) MergeRemote(msg *store.Message) {
	if msg == nil {
		return
	}
	if e.isOwn(msg.UserName) {
		return
	}

	e.mu.Lock()
	if e.ids[msg.MsgID] {
		e.mu.Unlock()
		return
	}
	if last := e.last(); last != nil &&
		last.Content == msg.Content && last.UserName == msg.UserName {
		e.mu.Unlock()
		return
	}
	cp := *msg
	e.history = append(e.history, &cp)
	e.ids[cp.MsgID] = true
	e.mu.Unlock()

	e.publish(bus.KindMessageMerged, cp)
}

// pollOnce asks the store for rows newer than the latest known timestamp and
// merges whatever the push path missed.
func (e *Engine) pollOnce() {
	cursor := e.cursor()
	rows, err := e.db.ListMessagesAfter(cursor)
	if err != nil {
		e.logger.Warn("poll failed", zap.Error(err))
		return
	}
	if len(rows) == 0 {
		return
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt < rows[j].CreatedAt })
	for i := range rows {
		e.MergeRemote(&rows[i])
	}

	if err := e.db.SetCheckpoint(checkpointKey, strconv.FormatInt(e.cursor(), 10)); err != nil {
		e.logger.Warn("checkpoint write failed", zap.Error(err))
	}
}

// cursor is the newest CreatedAt the engine has seen, or the persisted
// checkpoint when the in-memory stream is empty.
func (e *Engine) cursor() int64 {
	e.mu.Lock()
	var max int64
	for _, m := range e.history {
		if m.CreatedAt > max {
			max = m.CreatedAt
		}
	}
	e.mu.Unlock()
	if max > 0 {
		return max
	}
	if v, err := e.db.GetCheckpoint(checkpointKey); err == nil && v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return ts
		}
	}
	return 0
}

func (e *Engine) isOwn(userName string) bool {
	key := e.profile.Key()
	return key != "" && strings.ToLower(strings.TrimSpace(userName)) == key
}

// last returns the newest history entry. Callers hold e.mu.
func (e *Engine) last() *store.Message {
	if len(e.history) == 0 {
		return nil
	}
	return e.history[len(e.history)-1]
}

func (e *Engine) publish(kind string, msg store.Message) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: msg})
}
