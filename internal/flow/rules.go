package flow

import (
	"fmt"
	"strings"

	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/recommend"
	"github.com/iae-bsb/iae-bot/internal/session"
	"github.com/iae-bsb/iae-bot/internal/sponsor"
	"github.com/iae-bsb/iae-bot/internal/store"
)

// rule is one entry of the priority-ordered dispatch table. match reports
// whether the rule claims the event; run handles it terminally.
type rule struct {
	name  string
	match func(*Engine, *evctx) bool
	run   func(*Engine, *evctx) error
}

// rules is evaluated top to bottom until one claims the event. Duplicate
// message ids and near-duplicate locations are dropped before dispatch.
var rules = []rule{
	{name: "reset-intent", match: matchResetIntent, run: runResetIntent},
	{name: "name-capture", match: matchNameCapture, run: runNameCapture},
	{name: "canned-reply", match: matchCannedReply, run: runCannedReply},
	{name: "resume-greeting", match: matchResumeGreeting, run: runResumeGreeting},
	{name: "first-contact", match: matchFirstContact, run: runFirstContact},
	{name: "greeting", match: matchGreeting, run: runGreeting},
	{name: "intent-choice", match: matchIntentChoice, run: runIntentChoice},
	{name: "interview-answer", match: matchInterviewAnswer, run: runInterviewAnswer},
	{name: "cta-followup", match: matchCTAFollowup, run: runCTAFollowup},
	{name: "football-shortcut", match: matchFootballShortcut, run: runFootballShortcut},
	{name: "location-stage", match: matchLocationStage, run: runLocationStage},
	{name: "location-pin", match: matchLocationPin, run: runLocationPin},
	{name: "place-feedback", match: matchPlaceFeedback, run: runPlaceFeedback},
	{name: "fallback", match: matchAlways, run: runFallback},
}

func matchAlways(*Engine, *evctx) bool { return true }

// --- reset intent -----------------------------------------------------

func matchResetIntent(e *Engine, c *evctx) bool {
	if !c.ev.HasText() || !c.sess.HasActiveFlow() {
		return false
	}
	return isResetIntent(c.ctx, e.deps.Generator, c.ev.Text)
}

func runResetIntent(e *Engine, c *evctx) error {
	c.sess.ClearFlow()
	c.sess.SelectedPlace = nil
	c.sess.Flow = session.Flow{Kind: session.FlowAwaitingIntentChoice}
	e.replyWithOpener(c, msgResetAck)
	return nil
}

// --- name capture -----------------------------------------------------

func matchNameCapture(_ *Engine, c *evctx) bool {
	return c.sess.Flow.Kind == session.FlowAwaitingName && c.ev.HasText()
}

func runNameCapture(e *Engine, c *evctx) error {
	name := extractName(c.ev.Text)
	if name == "" {
		e.reply(c, msgAskName)
		return nil
	}
	e.setName(c, name)
	c.sess.Flow = session.Flow{Kind: session.FlowAwaitingIntentChoice}
	e.replyWithOpener(c, fmt.Sprintf("Prazer, %s! 🤝 %s", name, msgAskIntent))
	return nil
}

// --- canned replies ---------------------------------------------------

func matchCannedReply(_ *Engine, c *evctx) bool {
	if !c.ev.HasText() {
		return false
	}
	return isCarnivalQuestion(c.ev.Text) || isLaunchQuestion(c.ev.Text)
}

func runCannedReply(e *Engine, c *evctx) error {
	if isCarnivalQuestion(c.ev.Text) {
		e.reply(c, msgCarnival)
		return nil
	}
	e.reply(c, msgLaunch)
	return nil
}

// --- resume greeting --------------------------------------------------

func matchResumeGreeting(_ *Engine, c *evctx) bool {
	return c.resume
}

func runResumeGreeting(e *Engine, c *evctx) error {
	c.sess.ClearFlow()
	c.sess.Flow = session.Flow{Kind: session.FlowAwaitingIntentChoice}
	if c.pers.Nome != "" {
		e.replyWithOpener(c, fmt.Sprintf("Quanto tempo, %s! 👋 Bora achar um rolê? É *bar* ou *restaurante* hoje?", c.pers.Nome))
		return nil
	}
	e.replyWithOpener(c, msgResumeGreet)
	return nil
}

// --- first contact ----------------------------------------------------

func matchFirstContact(_ *Engine, c *evctx) bool {
	if !c.ev.HasText() || c.pers.Nome != "" || c.sess.HasActiveFlow() {
		return false
	}
	// The current inbound line is already in history.
	return len(c.sess.History) <= 1
}

func runFirstContact(e *Engine, c *evctx) error {
	c.sess.Flow = session.Flow{Kind: session.FlowAwaitingName}
	e.reply(c, msgAskName)
	return nil
}

// --- greeting / small talk --------------------------------------------

func matchGreeting(_ *Engine, c *evctx) bool {
	if !c.ev.HasText() || c.sess.HasActiveFlow() {
		return false
	}
	return isGreeting(c.ev.Text) || isSmallTalk(c.ev.Text)
}

func runGreeting(e *Engine, c *evctx) error {
	if isSmallTalk(c.ev.Text) {
		e.replyWithOpener(c, msgSmallTalk)
		c.sess.Flow = session.Flow{Kind: session.FlowAwaitingIntentChoice}
		return nil
	}
	greet := msgAskIntent
	if c.pers.Nome != "" {
		greet = fmt.Sprintf("E aí, %s! 🍻 %s", c.pers.Nome, msgAskIntent)
	}
	e.replyWithOpener(c, greet)
	c.sess.Flow = session.Flow{Kind: session.FlowAwaitingIntentChoice}
	return nil
}

// --- intent choice ----------------------------------------------------

func matchIntentChoice(_ *Engine, c *evctx) bool {
	return c.sess.Flow.Kind == session.FlowAwaitingIntentChoice && c.ev.HasText()
}

func runIntentChoice(e *Engine, c *evctx) error {
	venue, ok := detectVenue(c.ctx, e.deps.Generator, c.ev.Text)
	if !ok {
		e.reply(c, msgIntentRetry)
		return nil
	}
	return e.startSearchFlow(c, venue)
}

// startSearchFlow enters the interview for the venue, or jumps straight to
// finalization when a location pin arrived before the choice.
func (e *Engine) startSearchFlow(c *evctx, venue models.Venue) error {
	if pin := c.sess.PendingLocation; pin != nil {
		c.sess.Flow = session.Flow{Kind: session.FlowRefining, Venue: venue}
		c.sess.Flow.SetCoords(pin.Lat, pin.Lng)
		c.sess.PendingLocation = nil
		return e.finalizeSearch(c)
	}
	c.sess.Flow = session.Flow{Kind: session.FlowInterviewing, Venue: venue, QuestionIdx: 0}
	e.replyWithOpener(c, nextInterviewPrompt(venue, 0))
	return nil
}

// --- interview answers ------------------------------------------------

func matchInterviewAnswer(_ *Engine, c *evctx) bool {
	k := c.sess.Flow.Kind
	return (k == session.FlowInterviewing || k == session.FlowRefining) && c.ev.HasText()
}

func runInterviewAnswer(e *Engine, c *evctx) error {
	sess := c.sess
	if sess.Flow.Kind == session.FlowRefining {
		// A free-text refinement after the scripted questions.
		sess.Flow.SetAnswer("extras", c.ev.Text)
		return e.finalizeSearch(c)
	}
	if sess.Flow.Answers == nil {
		sess.Flow.Answers = make(map[string]string)
	}
	next, done, err := recordInterviewAnswer(sess.Flow.Venue, sess.Flow.QuestionIdx, c.ev.Text, sess.Flow.Answers)
	if err != nil {
		sess.ClearFlow()
		e.reply(c, msgGenericFallback)
		return err
	}
	e.savePreferences(c.userID(), learnPreferences(c.ev.Text))
	if !done {
		sess.Flow.QuestionIdx++
		e.reply(c, next)
		return nil
	}
	sess.Flow.Kind = session.FlowAwaitingLocationType
	e.reply(c, bridges[sess.Flow.QuestionIdx%len(bridges)]+msgAskLocationType)
	return nil
}

// --- CTA follow-ups ---------------------------------------------------

func matchCTAFollowup(_ *Engine, c *evctx) bool {
	if !c.ev.HasText() {
		return false
	}
	if t := detectTopic(c.ev.Text); t != topicNone {
		return true
	}
	if c.sess.CTA == nil {
		return false
	}
	if isMoreRequest(c.ev.Text) {
		return true
	}
	sel := parseSelection(c.ev.Text)
	return sel > 0 && selectionInRange(c.sess.CTA, sel)
}

func isMoreRequest(text string) bool {
	n := strings.TrimSpace(sponsor.Normalize(text))
	return n == "mais" || n == "mais opcoes" || n == "ver mais" || n == "proxima" || n == "outras"
}

func selectionInRange(cta *session.CTA, sel int) bool {
	idx := cta.PageStart + sel - 1
	return sel >= 1 && sel <= pageSize && idx < len(cta.OrderedResults)
}

func runCTAFollowup(e *Engine, c *evctx) error {
	if c.sess.CTA != nil && isMoreRequest(c.ev.Text) {
		cta := c.sess.CTA
		e.presentPage(c, cta.OrderedResults, cta.PageStart+pageSize)
		return nil
	}
	top := detectTopic(c.ev.Text)
	place := e.resolveSelection(c)
	if place != nil {
		// Any fresh selection, bare or embedded in a question, becomes
		// the context for later follow-ups.
		c.sess.SelectedPlace = place
	}

	if top == topicNone {
		e.reply(c, fmt.Sprintf("*%s*, boa escolha! 🎯 O que você quer saber: *preço*, *horário*, *telefone*, *site* ou *endereço*?", place.Name))
		return nil
	}
	if place == nil {
		place = c.sess.SelectedPlace
	}
	if place == nil && c.sess.CTA == nil {
		// Topic question with no presented page: try resolving a place
		// name straight from the text.
		return e.answerTopicByName(c, top)
	}
	if place == nil {
		e.reply(c, msgAskSelection)
		return nil
	}
	return e.answerTopic(c, top, place)
}

// resolveSelection maps a selection on the current page to a place, or nil
// when the text carries no valid selection. Numbers embedded in a topic
// question ("horário do 2") count.
func (e *Engine) resolveSelection(c *evctx) *models.Place {
	cta := c.sess.CTA
	if cta == nil {
		return nil
	}
	sel := parseSelection(c.ev.Text)
	if sel == 0 {
		sel = embeddedSelection(c.ev.Text)
	}
	if sel == 0 || !selectionInRange(cta, sel) {
		return nil
	}
	p := cta.OrderedResults[cta.PageStart+sel-1]
	return &p
}

// --- football shortcut ------------------------------------------------

func matchFootballShortcut(_ *Engine, c *evctx) bool {
	if !c.ev.HasText() || !isFootballIntent(c.ev.Text) {
		return false
	}
	return c.sess.LastSearch != nil
}

func runFootballShortcut(e *Engine, c *evctx) error {
	last := c.sess.LastSearch
	answers := map[string]string{"extras": "transmissao jogo futebol"}
	for k, v := range last.Answers {
		if _, ok := answers[k]; !ok {
			answers[k] = v
		}
	}
	venue := last.Venue
	if !models.IsValidVenue(venue) {
		venue = models.VenueBar
	}
	c.sess.Flow = session.Flow{Kind: session.FlowRefining, Venue: venue, Answers: answers}
	c.sess.Flow.SetCoords(last.Lat, last.Lng)
	return e.finalizeSearch(c)
}

// --- location stages --------------------------------------------------

func matchLocationStage(_ *Engine, c *evctx) bool {
	k := c.sess.Flow.Kind
	if k != session.FlowAwaitingLocationType && k != session.FlowAwaitingLocationText {
		return false
	}
	return c.ev.HasText()
}

func runLocationStage(e *Engine, c *evctx) error {
	if c.sess.Flow.Kind == session.FlowAwaitingLocationText {
		return e.resolveLocationText(c)
	}
	n := sponsor.Normalize(c.ev.Text)
	switch {
	case strings.Contains(n, "perto") || strings.Contains(n, "aqui") || strings.TrimSpace(n) == "1":
		c.sess.Flow.Kind = session.FlowAwaitingLocationCoord
		e.reply(c, msgAskLocationPin)
	case strings.Contains(n, "outra") || strings.Contains(n, "outro") || strings.Contains(n, "regiao") || strings.TrimSpace(n) == "2":
		c.sess.Flow.Kind = session.FlowAwaitingLocationText
		e.reply(c, msgAskLocationText)
	default:
		e.reply(c, msgAskLocationType)
	}
	return nil
}

// resolveLocationText geocodes a free-text location and finalizes on success.
func (e *Engine) resolveLocationText(c *evctx) error {
	geo, err := e.deps.Places.GeocodeText(c.ctx, c.ev.Text)
	if err != nil {
		e.logger.Warn("Geocoding failed", "user", c.userID(), "error", err)
		e.reply(c, msgLocationTextRetry)
		return nil
	}
	if geo == nil {
		e.reply(c, msgLocationTextRetry)
		return nil
	}
	c.sess.Flow.SetCoords(geo.Lat, geo.Lng)
	return e.finalizeSearch(c)
}

// --- location pin -----------------------------------------------------

func matchLocationPin(_ *Engine, c *evctx) bool {
	return c.ev.Location != nil
}

func runLocationPin(e *Engine, c *evctx) error {
	loc := c.ev.Location
	switch c.sess.Flow.Kind {
	case session.FlowAwaitingLocationCoord, session.FlowAwaitingLocationType, session.FlowAwaitingLocationText:
		c.sess.Flow.SetCoords(loc.Lat, loc.Lng)
		return e.finalizeSearch(c)
	}
	c.sess.PendingLocation = &models.LatLng{Lat: loc.Lat, Lng: loc.Lng}
	c.sess.Flow = session.Flow{Kind: session.FlowAwaitingIntentChoice}
	e.reply(c, msgPendingLocationAck)
	return nil
}

// --- place feedback ---------------------------------------------------

func matchPlaceFeedback(_ *Engine, c *evctx) bool {
	if !c.ev.HasText() || c.sess.SelectedPlace == nil {
		return false
	}
	_, ok := recommend.DetectFeedback(c.ev.Text)
	return ok
}

func runPlaceFeedback(e *Engine, c *evctx) error {
	place := c.sess.SelectedPlace
	liked, _ := recommend.DetectFeedback(c.ev.Text)
	if e.deps.Store != nil {
		fb := store.PlaceFeedback{
			UserID:    c.userID(),
			PlaceID:   place.PlaceID,
			PlaceName: place.Name,
			Liked:     liked,
			CreatedAt: c.now,
		}
		if err := e.deps.Store.AddPlaceFeedback(fb); err != nil {
			e.logger.Warn("Place feedback save failed", "user", c.userID(), "error", err)
		} else if sum, err := e.deps.Store.PlaceFeedbackSummary(place.PlaceID); err == nil {
			e.logger.Debug("Place feedback recorded", "place", place.PlaceID, "likes", sum.Likes, "dislikes", sum.Dislikes)
		}
	}
	if liked {
		e.replyWithOpener(c, fmt.Sprintf(msgFeedbackThanks, place.Name))
		return nil
	}
	e.replyWithOpener(c, msgFeedbackSorry)
	return nil
}

// --- fallback ---------------------------------------------------------

func runFallback(e *Engine, c *evctx) error {
	if !c.ev.HasText() {
		e.reply(c, msgGenericFallback)
		return nil
	}
	if sp, ok := e.deps.Sponsors.MatchMention(c.ev.Text); ok {
		e.reply(c, formatSponsorMention(sp))
		return nil
	}
	if venue, ok := detectVenue(c.ctx, e.deps.Generator, c.ev.Text); ok {
		e.savePreferences(c.userID(), map[string]string{"last_freeform_keyword": strings.ToLower(strings.TrimSpace(c.ev.Text))})
		return e.startSearchFlow(c, venue)
	}
	if isNumericLike(c.ev.Text) {
		e.reply(c, msgNumericNoCTA)
		return nil
	}
	e.replyWithOpener(c, e.adaptiveReply(c))
	return nil
}
