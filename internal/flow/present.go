package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/iae-bsb/iae-bot/internal/llm"
	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/recommend"
	"github.com/iae-bsb/iae-bot/internal/session"
	"github.com/iae-bsb/iae-bot/internal/tone"
)

// pageSize is how many recommendation cards go out per page.
const pageSize = 3

// adaptiveReplyTimeout bounds the LLM call behind the generic fallback.
const adaptiveReplyTimeout = 2500 * time.Millisecond

// presentPage sends one page of cards for the ordered result list and records
// the page on the session for numeric follow-ups.
func (e *Engine) presentPage(c *evctx, ordered []models.Place, start int) {
	if start >= len(ordered) {
		e.reply(c, msgNoMorePages)
		return
	}
	if start == 0 {
		e.replyWithOpener(c, msgResultsHeader)
	}
	end := start + pageSize
	if end > len(ordered) {
		end = len(ordered)
	}
	shown := 0
	for i := start; i < end; i++ {
		e.reply(c, e.formatCard(i-start+1, &ordered[i]))
		shown++
	}
	if e.deps.Telemetry != nil {
		e.deps.Telemetry.RecordPlacesShown(shown)
	}
	if start == 0 && c.sess.LastSearch != nil {
		if callout := e.nearbySponsorCallout(c, ordered[start:end]); callout != "" {
			e.reply(c, callout)
		}
	}
	if end < len(ordered) {
		e.reply(c, msgResultsFooter)
	} else {
		e.reply(c, msgAskSelection)
	}
	c.sess.CTA = &session.CTA{OrderedResults: ordered, PageStart: start}
}

// formatCard renders one numbered recommendation card.
func (e *Engine) formatCard(n int, p *models.Place) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d. %s*\n", n, p.Name)
	if p.Rating > 0 {
		fmt.Fprintf(&b, "⭐ %.1f (%d avaliações)\n", p.Rating, p.UserRatingsTotal)
	}
	if p.Vicinity != "" {
		fmt.Fprintf(&b, "📍 %s\n", p.Vicinity)
	}
	fmt.Fprintf(&b, "🗺️ %s", p.MapsLink())
	if sp, ok := e.deps.Sponsors.Get(p.PlaceID); ok && sp.Active {
		b.WriteString("\n✨ *Parceiro I.aê*")
		if sp.Destaque != "" {
			fmt.Fprintf(&b, ": %s", sp.Destaque)
		}
		if sp.CTA != "" {
			fmt.Fprintf(&b, "\n👉 %s", sp.CTA)
		}
	}
	return b.String()
}

// nearbySponsorCallout advertises partner venues near the search center that
// did not make the presented page.
func (e *Engine) nearbySponsorCallout(c *evctx, page []models.Place) string {
	last := c.sess.LastSearch
	onPage := make(map[string]struct{}, len(page))
	for _, p := range page {
		onPage[p.PlaceID] = struct{}{}
	}
	var names []string
	for _, sp := range e.deps.Sponsors.Nearby(last.Lat, last.Lng) {
		if _, ok := onPage[sp.PlaceID]; ok {
			continue
		}
		if sp.Nome != "" {
			names = append(names, sp.Nome)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("Ah, e tem parceiro I.aê pertinho de você: %s. Vale conferir! ✨", strings.Join(names, ", "))
}

// answerTopic fetches place details and answers the asked topic.
func (e *Engine) answerTopic(c *evctx, top topic, place *models.Place) error {
	details, err := e.deps.Places.Details(c.ctx, place.PlaceID)
	if err != nil {
		e.reply(c, msgGenericFallback)
		return fmt.Errorf("place details: %w", err)
	}
	answer := formatTopicAnswer(top, place.Name, details)
	if hl := recommend.Highlights(e.features.Features(place.PlaceID, details.Reviews)); hl != "" {
		answer += fmt.Sprintf("\n\nPelo que o pessoal comenta por lá: %s. 👌", hl)
	}
	e.reply(c, answer)
	return nil
}

// answerTopicByName resolves a place straight from the message text when no
// page was presented, then answers the topic.
func (e *Engine) answerTopicByName(c *evctx, top topic) error {
	cand, err := e.deps.Places.FindPlace(c.ctx, c.ev.Text)
	if err != nil {
		e.reply(c, msgPlaceNotFound)
		return fmt.Errorf("find place: %w", err)
	}
	if cand == nil {
		e.reply(c, msgPlaceNotFound)
		return nil
	}
	return e.answerTopic(c, top, &models.Place{PlaceID: cand.PlaceID, Name: cand.Name})
}

// formatTopicAnswer renders the detail the user asked about, with an explicit
// not-found line when the provider has no data for it.
func formatTopicAnswer(top topic, name string, d *models.PlaceDetails) string {
	if d.Name != "" {
		name = d.Name
	}
	switch top {
	case topicPrice:
		if d.PriceLevel == nil {
			return fmt.Sprintf("O *%s* não divulga faixa de preço por aqui. 💸 Mas pela avaliação, vale a visita!", name)
		}
		return fmt.Sprintf("Faixa de preço do *%s*: %s", name, priceSigns(*d.PriceLevel))
	case topicHours:
		if d.OpeningHours == nil || len(d.OpeningHours.WeekdayText) == 0 {
			return fmt.Sprintf("Não achei o horário do *%s* por aqui. 🕐 Melhor confirmar por telefone.", name)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Horários do *%s*:\n", name)
		b.WriteString(strings.Join(d.OpeningHours.WeekdayText, "\n"))
		if d.OpeningHours.OpenNow != nil {
			if *d.OpeningHours.OpenNow {
				b.WriteString("\n\n✅ Aberto agora!")
			} else {
				b.WriteString("\n\n❌ Fechado agora.")
			}
		}
		return b.String()
	case topicPhone:
		phone := d.FormattedPhoneNumber
		if phone == "" {
			phone = d.InternationalPhoneNumber
		}
		if phone == "" {
			return fmt.Sprintf("O *%s* não tem telefone cadastrado. 📵", name)
		}
		return fmt.Sprintf("Telefone do *%s*: %s", name, phone)
	case topicWebsite:
		if d.Website == "" {
			if d.URL != "" {
				return fmt.Sprintf("O *%s* não tem site próprio, mas olha a página no mapa: %s", name, d.URL)
			}
			return fmt.Sprintf("Não achei site do *%s*. 🌐", name)
		}
		return fmt.Sprintf("Site do *%s*: %s", name, d.Website)
	case topicAddress:
		addr := d.FormattedAddress
		if addr == "" {
			addr = d.Vicinity
		}
		if addr == "" {
			return fmt.Sprintf("Não achei o endereço exato do *%s*. 🗺️", name)
		}
		return fmt.Sprintf("Endereço do *%s*: %s", name, addr)
	}
	return msgGenericFallback
}

// priceSigns renders a 0-4 price level as currency signs.
func priceSigns(level int) string {
	if level <= 0 {
		return "$ (bem em conta)"
	}
	if level > 4 {
		level = 4
	}
	return strings.Repeat("$", level)
}

// formatSponsorMention answers a direct question about a partner venue.
func formatSponsorMention(sp models.Sponsor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* é parceiro I.aê! ✨\n", sp.Nome)
	if sp.Destaque != "" {
		fmt.Fprintf(&b, "%s\n", sp.Destaque)
	}
	if sp.Detalhes != "" {
		fmt.Fprintf(&b, "%s\n", sp.Detalhes)
	}
	if sp.MenuLink != "" {
		fmt.Fprintf(&b, "🍽️ Cardápio: %s\n", sp.MenuLink)
	}
	if sp.Instagram != "" {
		fmt.Fprintf(&b, "📸 %s\n", sp.Instagram)
	}
	if sp.WhatsApp != "" {
		fmt.Fprintf(&b, "💬 %s\n", sp.WhatsApp)
	}
	if sp.CTA != "" {
		b.WriteString(sp.CTA)
	}
	return strings.TrimRight(b.String(), "\n")
}

// adaptiveReply produces the generic LLM-backed fallback answer, canned when
// no model is configured or the call times out.
func (e *Engine) adaptiveReply(c *evctx) string {
	if e.deps.Generator == nil {
		return msgGenericFallback
	}
	var hist strings.Builder
	for _, h := range c.sess.RecentHistory(6) {
		fmt.Fprintf(&hist, "%s: %s\n", h.Role, h.Message)
	}
	system := "Você é o I.aê, assistente de WhatsApp que recomenda bares e restaurantes em Brasília. " +
		"Responda em português, curto e descontraído, e conduza a conversa de volta para achar um rolê. " +
		tone.PromptGuide(c.sess.Mood)
	user := fmt.Sprintf("Histórico recente:\n%s\nMensagem: %s", hist.String(), c.ev.Text)
	return llm.ClassifyOrDefault(c.ctx, e.deps.Generator, system, user, adaptiveReplyTimeout, msgGenericFallback)
}
