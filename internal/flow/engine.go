// Package flow implements the conversation engine: a priority-ordered rule
// list that maps an inbound WhatsApp event plus the user's session state to
// exactly one outbound reply sequence.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iae-bsb/iae-bot/internal/llm"
	"github.com/iae-bsb/iae-bot/internal/metrics"
	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/persona"
	"github.com/iae-bsb/iae-bot/internal/ranking"
	"github.com/iae-bsb/iae-bot/internal/recommend"
	"github.com/iae-bsb/iae-bot/internal/session"
	"github.com/iae-bsb/iae-bot/internal/speech"
	"github.com/iae-bsb/iae-bot/internal/sponsor"
	"github.com/iae-bsb/iae-bot/internal/store"
	"github.com/iae-bsb/iae-bot/internal/tone"
)

// resumeGap is the inactivity gap after which the next message gets a
// welcome-back greeting instead of normal dispatch.
const resumeGap = 48 * time.Hour

// PlacesClient is the slice of the places provider the engine needs.
type PlacesClient interface {
	NearbySearch(ctx context.Context, lat, lng float64, venue models.Venue, opts models.SearchOptions) ([]models.Place, error)
	Details(ctx context.Context, placeID string) (*models.PlaceDetails, error)
	FindPlace(ctx context.Context, input string) (*models.PlaceCandidate, error)
	GeocodeText(ctx context.Context, text string) (*models.GeocodedPlace, error)
}

// Sender delivers outbound messages and read receipts.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
	MarkRead(ctx context.Context, from, messageID string) error
}

// Telemetry receives fire-and-forget usage events.
type Telemetry interface {
	RecordMessage(userID string, at time.Time)
	RecordSearch(rec metrics.SearchRecord)
	RecordPlacesShown(n int)
}

// Deps carries the engine's collaborators. Sessions, Sender, Places, and
// Sponsors are required; the rest degrade gracefully when nil.
type Deps struct {
	Sessions    session.Store
	Sender      Sender
	Places      PlacesClient
	Sponsors    *sponsor.Directory
	Personas    *persona.Cache
	Store       store.Store
	Telemetry   Telemetry
	Generator   llm.Generator
	Scorer      ranking.Scorer
	Transcriber speech.Transcriber
	Logger      *slog.Logger
}

// Engine dispatches inbound events through the ordered rule list.
type Engine struct {
	deps     Deps
	logger   *slog.Logger
	features *recommend.Inferrer
	nowFunc  func() time.Time
}

// NewEngine validates required collaborators and builds an engine.
func NewEngine(deps Deps) (*Engine, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("flow: session store is required")
	}
	if deps.Sender == nil {
		return nil, fmt.Errorf("flow: sender is required")
	}
	if deps.Places == nil {
		return nil, fmt.Errorf("flow: places client is required")
	}
	if deps.Sponsors == nil {
		return nil, fmt.Errorf("flow: sponsor directory is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{deps: deps, logger: logger, features: recommend.NewInferrer(), nowFunc: time.Now}, nil
}

// evctx bundles everything a rule needs about the event being handled.
type evctx struct {
	ctx    context.Context
	ev     models.Event
	sess   *session.Session
	now    time.Time
	resume bool
	pers   *persona.Persona
}

func (c *evctx) userID() string { return c.ev.From }

// HandleEvent runs one inbound event through the dispatcher. The session
// lock is held for the whole run, so events for the same user serialize.
func (e *Engine) HandleEvent(ctx context.Context, ev models.Event) {
	if ev.FromSelf {
		return
	}
	if ev.From == "" {
		e.logger.Warn("Dropping event without sender", "message_id", ev.MessageID)
		return
	}

	sess := e.deps.Sessions.GetOrCreate(ev.From)
	sess.Lock()
	defer sess.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Handler panic recovered", "user", ev.From, "panic", r)
			sess.ClearFlow()
			if err := e.deps.Sender.SendMessage(ctx, ev.From, msgHandlerPanic); err != nil {
				e.logger.Error("Failed to send panic apology", "user", ev.From, "error", err)
			}
		}
	}()

	if sess.SeenMessage(ev.MessageID) {
		e.logger.Debug("Dropping duplicate message", "user", ev.From, "message_id", ev.MessageID)
		return
	}
	if ev.Location != nil && sess.IsNearDuplicateLocation(ev.Location.Lat, ev.Location.Lng) {
		e.logger.Debug("Dropping near-duplicate location", "user", ev.From)
		return
	}

	if ev.MessageID != "" {
		if err := e.deps.Sender.MarkRead(ctx, ev.From, ev.MessageID); err != nil {
			e.logger.Debug("MarkRead failed", "user", ev.From, "error", err)
		}
	}

	now := e.nowFunc()
	c := &evctx{ctx: ctx, ev: ev, sess: sess, now: now}
	c.resume = !sess.LastInteraction.IsZero() && now.Sub(sess.LastInteraction) > resumeGap
	sess.Touch(now)

	if ev.Audio != nil && ev.Text == "" {
		if !e.transcribeAudio(c) {
			return
		}
	}

	if c.ev.HasText() {
		sess.UpdateMood(tone.ClassifyMood(ctx, e.deps.Generator, c.ev.Text), now)
	}

	if e.deps.Personas != nil {
		c.pers = e.deps.Personas.Get(ev.From)
	}
	if c.pers == nil {
		c.pers = &persona.Persona{}
	}

	e.recordInbound(c)

	for _, r := range rules {
		if !r.match(e, c) {
			continue
		}
		e.logger.Debug("Rule claimed event", "user", ev.From, "rule", r.name)
		if err := r.run(e, c); err != nil {
			e.logger.Error("Rule handler failed", "user", ev.From, "rule", r.name, "error", err)
		}
		return
	}
	// The fallback rule always matches; reaching here means the table is
	// misconfigured.
	e.logger.Error("No rule claimed event", "user", ev.From)
}

// transcribeAudio turns a voice note into text on the event, replying and
// returning false when transcription is unavailable or fails.
func (e *Engine) transcribeAudio(c *evctx) bool {
	if e.deps.Transcriber == nil {
		e.reply(c, msgAudioUnavailable)
		return false
	}
	text, err := e.deps.Transcriber.Transcribe(c.ctx, c.ev.Audio)
	if err != nil || text == "" {
		e.logger.Warn("Audio transcription failed", "user", c.userID(), "error", err)
		e.reply(c, msgAudioFailed)
		return false
	}
	e.logger.Debug("Audio transcribed", "user", c.userID(), "chars", len(text))
	c.ev.Text = text
	return true
}

// recordInbound persists the user message to every best-effort sink.
func (e *Engine) recordInbound(c *evctx) {
	if c.ev.HasText() {
		c.sess.AppendHistory(models.RoleUser, c.ev.Text, c.now)
	}
	if e.deps.Telemetry != nil {
		e.deps.Telemetry.RecordMessage(c.userID(), c.now)
	}
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.UpsertUser(store.User{ID: c.userID(), Name: c.pers.Nome, LastSeen: c.now}); err != nil {
		e.logger.Warn("User upsert failed", "user", c.userID(), "error", err)
	}
	if c.ev.HasText() {
		if err := e.deps.Store.AddConversation(c.userID(), models.RoleUser, c.ev.Text, c.now); err != nil {
			e.logger.Warn("Conversation append failed", "user", c.userID(), "error", err)
		}
	}
}

// reply sends one outbound message, mirroring it into history and the
// conversation log.
func (e *Engine) reply(c *evctx, text string) {
	if text == "" {
		return
	}
	if err := e.deps.Sender.SendMessage(c.ctx, c.userID(), text); err != nil {
		e.logger.Error("Send failed", "user", c.userID(), "error", err)
		return
	}
	c.sess.AppendHistory(models.RoleBot, text, c.now)
	if e.deps.Store != nil {
		if err := e.deps.Store.AddConversation(c.userID(), models.RoleBot, text, c.now); err != nil {
			e.logger.Warn("Conversation append failed", "user", c.userID(), "error", err)
		}
	}
}

// replyWithOpener prefixes the message with the mood opener, if any.
func (e *Engine) replyWithOpener(c *evctx, text string) {
	e.reply(c, tone.Opener(c.sess.Mood)+text)
}

// preferences loads the learned preference map, empty on any failure.
func (e *Engine) preferences(userID string) map[string]string {
	if e.deps.Store == nil {
		return map[string]string{}
	}
	prefs, err := e.deps.Store.GetPreferences(userID)
	if err != nil {
		e.logger.Warn("Preference load failed", "user", userID, "error", err)
		return map[string]string{}
	}
	return prefs
}

// savePreferences persists learned preference signals, best effort.
func (e *Engine) savePreferences(userID string, learned map[string]string) {
	if e.deps.Store == nil || len(learned) == 0 {
		return
	}
	for k, v := range learned {
		if err := e.deps.Store.SetPreference(userID, k, v); err != nil {
			e.logger.Warn("Preference save failed", "user", userID, "key", k, "error", err)
		}
	}
}

// setName records the user's name in the persona cache and the store.
func (e *Engine) setName(c *evctx, name string) {
	c.pers.Nome = name
	if e.deps.Personas != nil {
		if err := e.deps.Personas.SetName(c.userID(), name); err != nil {
			e.logger.Warn("Persona name save failed", "user", c.userID(), "error", err)
		}
	}
	if e.deps.Store != nil {
		if err := e.deps.Store.SetUserName(c.userID(), name); err != nil {
			e.logger.Warn("Store name save failed", "user", c.userID(), "error", err)
		}
	}
}
