package flow

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iae-bsb/iae-bot/internal/metrics"
	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/persona"
	"github.com/iae-bsb/iae-bot/internal/session"
	"github.com/iae-bsb/iae-bot/internal/sponsor"
)

type mockSender struct {
	mu       sync.Mutex
	sent     []string
	markRead []string
}

func (m *mockSender) SendMessage(_ context.Context, _ string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return nil
}

func (m *mockSender) MarkRead(_ context.Context, _, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markRead = append(m.markRead, messageID)
	return nil
}

func (m *mockSender) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockSender) last() string {
	msgs := m.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type mockPlaces struct {
	nearby  []models.Place
	details *models.PlaceDetails
	geocode *models.GeocodedPlace

	nearbyCalls int
	lastOpts    models.SearchOptions
}

func (m *mockPlaces) NearbySearch(_ context.Context, _, _ float64, _ models.Venue, opts models.SearchOptions) ([]models.Place, error) {
	m.nearbyCalls++
	m.lastOpts = opts
	return m.nearby, nil
}

func (m *mockPlaces) Details(_ context.Context, _ string) (*models.PlaceDetails, error) {
	return m.details, nil
}

func (m *mockPlaces) FindPlace(_ context.Context, _ string) (*models.PlaceCandidate, error) {
	return nil, nil
}

func (m *mockPlaces) GeocodeText(_ context.Context, _ string) (*models.GeocodedPlace, error) {
	return m.geocode, nil
}

type mockTelemetry struct {
	mu       sync.Mutex
	searches []metrics.SearchRecord
	shown    int
}

func (m *mockTelemetry) RecordMessage(string, time.Time) {}

func (m *mockTelemetry) RecordSearch(rec metrics.SearchRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, rec)
}

func (m *mockTelemetry) RecordPlacesShown(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown += n
}

func testPlaces() []models.Place {
	geom := func(lat, lng float64) *models.Geometry {
		return &models.Geometry{Location: models.LatLng{Lat: lat, Lng: lng}}
	}
	return []models.Place{
		{PlaceID: "p1", Name: "Bar do Calaf", Types: []string{"bar"}, Rating: 4.6, UserRatingsTotal: 900, Geometry: geom(-15.79, -47.88), Vicinity: "Setor Bancário Sul"},
		{PlaceID: "p2", Name: "Ernesto Cafés", Types: []string{"bar", "cafe"}, Rating: 4.7, UserRatingsTotal: 2100, Geometry: geom(-15.80, -47.89), Vicinity: "CLS 115"},
		{PlaceID: "p3", Name: "Balaio Café", Types: []string{"bar"}, Rating: 4.4, UserRatingsTotal: 1500, Geometry: geom(-15.81, -47.90), Vicinity: "CLN 201"},
		{PlaceID: "p4", Name: "Pub Brasília", Types: []string{"pub"}, Rating: 4.2, UserRatingsTotal: 400, Geometry: geom(-15.78, -47.87), Vicinity: "Asa Norte"},
	}
}

type testEnv struct {
	engine *Engine
	sender *mockSender
	places *mockPlaces
	tel    *mockTelemetry
	store  *session.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	sponsors, err := sponsor.Load(filepath.Join(dir, "sponsors.json"))
	if err != nil {
		t.Fatalf("sponsor.Load() error = %v", err)
	}
	personas, err := persona.NewCache(filepath.Join(dir, "personas"))
	if err != nil {
		t.Fatalf("persona.NewCache() error = %v", err)
	}
	env := &testEnv{
		sender: &mockSender{},
		places: &mockPlaces{nearby: testPlaces()},
		tel:    &mockTelemetry{},
		store:  session.NewMemoryStore(),
	}
	engine, err := NewEngine(Deps{
		Sessions:  env.store,
		Sender:    env.sender,
		Places:    env.places,
		Sponsors:  sponsors,
		Personas:  personas,
		Telemetry: env.tel,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	env.engine = engine
	return env
}

func (env *testEnv) text(t *testing.T, id, body string) {
	t.Helper()
	env.engine.HandleEvent(context.Background(), models.Event{
		From:      "5561999990000",
		MessageID: id,
		Text:      body,
		Timestamp: time.Now(),
	})
}

func (env *testEnv) location(t *testing.T, id string, lat, lng float64) {
	t.Helper()
	env.engine.HandleEvent(context.Background(), models.Event{
		From:      "5561999990000",
		MessageID: id,
		Location:  &models.LatLng{Lat: lat, Lng: lng},
		Timestamp: time.Now(),
	})
}

func (env *testEnv) session() *session.Session {
	return env.store.Get("5561999990000")
}

func TestFirstContactAsksName(t *testing.T) {
	env := newTestEnv(t)

	env.text(t, "m1", "oi")

	if got := env.sender.last(); got != msgAskName {
		t.Errorf("reply = %q, want name question", got)
	}
	if kind := env.session().Flow.Kind; kind != session.FlowAwaitingName {
		t.Errorf("flow kind = %q, want %q", kind, session.FlowAwaitingName)
	}
}

func TestNameCaptureMovesToIntentChoice(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "m1", "oi")

	env.text(t, "m2", "me chamo Rafa")

	if got := env.sender.last(); !strings.Contains(got, "Rafa") {
		t.Errorf("reply = %q, want greeting with captured name", got)
	}
	if kind := env.session().Flow.Kind; kind != session.FlowAwaitingIntentChoice {
		t.Errorf("flow kind = %q, want %q", kind, session.FlowAwaitingIntentChoice)
	}
}

func TestFullBarSearchScenario(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "m1", "oi")
	env.text(t, "m2", "Rafa")
	env.text(t, "m3", "quero um bar")

	if kind := env.session().Flow.Kind; kind != session.FlowInterviewing {
		t.Fatalf("flow kind after intent = %q, want interviewing", kind)
	}

	env.text(t, "m4", "musica ao vivo")
	env.text(t, "m5", "moderado")
	env.text(t, "m6", "chopp gelado")

	if kind := env.session().Flow.Kind; kind != session.FlowAwaitingLocationType {
		t.Fatalf("flow kind after interview = %q, want awaiting location type", kind)
	}

	env.text(t, "m7", "perto de mim")
	if kind := env.session().Flow.Kind; kind != session.FlowAwaitingLocationCoord {
		t.Fatalf("flow kind = %q, want awaiting location coordinate", kind)
	}

	env.location(t, "m8", -15.794, -47.882)

	sess := env.session()
	if sess.CTA == nil {
		t.Fatal("CTA not set after finalize")
	}
	if got := len(sess.CTA.OrderedResults); got != 4 {
		t.Errorf("ordered results = %d, want 4", got)
	}
	if sess.Flow.Kind != session.FlowIdle && sess.Flow.Kind != "" {
		t.Errorf("flow kind after finalize = %q, want idle", sess.Flow.Kind)
	}
	if sess.IsFinalizing {
		t.Error("IsFinalizing still set after finalize")
	}
	if env.places.nearbyCalls != 1 {
		t.Errorf("nearby calls = %d, want 1", env.places.nearbyCalls)
	}
	if env.tel.shown != 3 {
		t.Errorf("places shown = %d, want 3", env.tel.shown)
	}
	if len(env.tel.searches) != 1 {
		t.Fatalf("search records = %d, want 1", len(env.tel.searches))
	}
	if env.tel.searches[0].Venue != models.VenueBar {
		t.Errorf("recorded venue = %q, want bar", env.tel.searches[0].Venue)
	}
}

func TestDuplicateMessageIgnored(t *testing.T) {
	env := newTestEnv(t)

	env.text(t, "m1", "oi")
	before := len(env.sender.messages())

	env.text(t, "m1", "oi")

	if after := len(env.sender.messages()); after != before {
		t.Errorf("duplicate delivery produced %d extra replies", after-before)
	}
}

func TestNearDuplicateLocationIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.location(t, "m1", -15.794, -47.882)
	before := len(env.sender.messages())

	// About 30 meters away.
	env.location(t, "m2", -15.7942, -47.8821)

	if after := len(env.sender.messages()); after != before {
		t.Errorf("near-duplicate pin produced %d extra replies", after-before)
	}
}

func TestPendingLocationJumpsToSearch(t *testing.T) {
	env := newTestEnv(t)
	// Name already known so first-contact does not claim the pin turn.
	sess := env.store.GetOrCreate("5561999990000")
	sess.AppendHistory(models.RoleUser, "oi", time.Now())
	sess.AppendHistory(models.RoleBot, "oi!", time.Now())

	env.location(t, "m1", -15.794, -47.882)

	if got := env.sender.last(); got != msgPendingLocationAck {
		t.Fatalf("reply = %q, want pending-location ack", got)
	}

	env.text(t, "m2", "restaurante")

	if env.places.nearbyCalls != 1 {
		t.Errorf("nearby calls = %d, want immediate search from pending pin", env.places.nearbyCalls)
	}
	if env.session().PendingLocation != nil {
		t.Error("pending location not consumed")
	}
}

func TestNumericSelectionAndTopicAnswer(t *testing.T) {
	env := newTestEnv(t)
	open := true
	env.places.details = &models.PlaceDetails{
		Name: "Ernesto Cafés",
		OpeningHours: &models.OpeningHours{
			WeekdayText: []string{"segunda-feira: 08:00–22:00"},
			OpenNow:     &open,
		},
	}
	sess := env.store.GetOrCreate("5561999990000")
	sess.CTA = &session.CTA{OrderedResults: testPlaces(), PageStart: 0}

	env.text(t, "m1", "2")

	if got := env.sender.last(); !strings.Contains(got, "Ernesto Cafés") {
		t.Fatalf("selection reply = %q, want topic question about Ernesto Cafés", got)
	}
	if sess.SelectedPlace == nil || sess.SelectedPlace.PlaceID != "p2" {
		t.Fatalf("SelectedPlace = %+v, want p2", sess.SelectedPlace)
	}

	env.text(t, "m2", "qual o horário?")

	got := env.sender.last()
	if !strings.Contains(got, "segunda-feira") || !strings.Contains(got, "Aberto agora") {
		t.Errorf("hours reply = %q, want weekday text and open-now flag", got)
	}
}

func TestOutOfRangeSelectionIsNotASelection(t *testing.T) {
	env := newTestEnv(t)
	sess := env.store.GetOrCreate("5561999990000")
	sess.AppendHistory(models.RoleUser, "oi", time.Now())
	sess.AppendHistory(models.RoleBot, "oi!", time.Now())
	sess.CTA = &session.CTA{OrderedResults: testPlaces()[:3], PageStart: 0}

	env.text(t, "m1", "5")

	if got := env.sender.last(); got != msgNumericNoCTA {
		t.Errorf("reply = %q, want numeric clarification", got)
	}
	if sess.SelectedPlace != nil {
		t.Error("out-of-range selection set SelectedPlace")
	}
}

func TestPaginationShowsNextPage(t *testing.T) {
	env := newTestEnv(t)
	sess := env.store.GetOrCreate("5561999990000")
	sess.CTA = &session.CTA{OrderedResults: testPlaces(), PageStart: 0}

	env.text(t, "m1", "mais")

	if got := env.sender.messages(); !strings.Contains(strings.Join(got, "\n"), "Pub Brasília") {
		t.Errorf("second page missing 4th place, got %q", got)
	}
	if sess.CTA.PageStart != pageSize {
		t.Errorf("PageStart = %d, want %d", sess.CTA.PageStart, pageSize)
	}

	env.text(t, "m2", "mais")

	if got := env.sender.last(); got != msgNoMorePages {
		t.Errorf("exhausted pagination reply = %q, want no-more-pages", got)
	}
}

func TestCannedCarnivalReply(t *testing.T) {
	env := newTestEnv(t)
	sess := env.store.GetOrCreate("5561999990000")
	sess.AppendHistory(models.RoleUser, "oi", time.Now())
	sess.AppendHistory(models.RoleBot, "oi!", time.Now())

	env.text(t, "m1", "como funciona o carnaval em Brasília?")

	if got := env.sender.last(); got != msgCarnival {
		t.Errorf("reply = %q, want canned carnival answer", got)
	}
}

func TestResumeGreetingAfterLongGap(t *testing.T) {
	env := newTestEnv(t)
	sess := env.store.GetOrCreate("5561999990000")
	sess.AppendHistory(models.RoleUser, "oi", time.Now())
	sess.LastInteraction = time.Now().Add(-72 * time.Hour)

	env.text(t, "m1", "oi de novo")

	if got := env.sender.last(); !strings.Contains(got, "bar") {
		t.Errorf("reply = %q, want welcome-back prompt", got)
	}
	if kind := env.session().Flow.Kind; kind != session.FlowAwaitingIntentChoice {
		t.Errorf("flow kind = %q, want awaiting intent choice", kind)
	}
}

func TestFootballShortcutReusesLastSearch(t *testing.T) {
	env := newTestEnv(t)
	sess := env.store.GetOrCreate("5561999990000")
	sess.AppendHistory(models.RoleUser, "oi", time.Now())
	sess.LastSearch = &models.SearchSnapshot{
		Venue: models.VenueBar,
		Lat:   -15.794,
		Lng:   -47.882,
	}

	env.text(t, "m1", "onde dá pra assistir o jogo hoje?")

	if env.places.nearbyCalls != 1 {
		t.Fatalf("nearby calls = %d, want re-run from snapshot", env.places.nearbyCalls)
	}
	if !strings.Contains(env.places.lastOpts.Keyword, "jogo") {
		t.Errorf("search keyword = %q, want broadcast terms", env.places.lastOpts.Keyword)
	}
}

func TestAudioWithoutTranscriberReplies(t *testing.T) {
	env := newTestEnv(t)

	env.engine.HandleEvent(context.Background(), models.Event{
		From:      "5561999990000",
		MessageID: "m1",
		Audio:     &models.Audio{Base64: "b2dn", MimeType: "audio/ogg; codecs=opus"},
	})

	if got := env.sender.last(); got != msgAudioUnavailable {
		t.Errorf("reply = %q, want audio-unavailable notice", got)
	}
}

func TestFromSelfDropped(t *testing.T) {
	env := newTestEnv(t)

	env.engine.HandleEvent(context.Background(), models.Event{
		From:      "5561999990000",
		MessageID: "m1",
		Text:      "oi",
		FromSelf:  true,
	})

	if got := len(env.sender.messages()); got != 0 {
		t.Errorf("from-self event produced %d replies", got)
	}
}

func TestPlaceFeedbackAfterSelection(t *testing.T) {
	env := newTestEnv(t)

	sess := env.store.GetOrCreate("5561999990000")
	sess.AppendHistory(models.RoleUser, "quero um bar", time.Now())
	sess.AppendHistory(models.RoleBot, "olha essas opções", time.Now())
	sess.SelectedPlace = &models.Place{PlaceID: "p2", Name: "Ernesto Cafés"}

	env.text(t, "m1", "gostei demais!")

	if got := env.sender.last(); !strings.Contains(got, "Ernesto Cafés") {
		t.Errorf("reply = %q, want thanks naming the place", got)
	}

	env.text(t, "m2", "na real não curti o ambiente")

	if got := env.sender.last(); !strings.Contains(got, "pena") {
		t.Errorf("reply = %q, want the negative-feedback reply", got)
	}
}

func TestResetRequestRestartsMidInterview(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "m1", "oi")
	env.text(t, "m2", "Rafa")
	env.text(t, "m3", "quero um bar")

	if kind := env.session().Flow.Kind; kind != session.FlowInterviewing {
		t.Fatalf("flow kind = %q, want interviewing", kind)
	}

	env.text(t, "m4", "opa, vamos recomeçar do zero")

	sess := env.session()
	if sess.Flow.Kind != session.FlowAwaitingIntentChoice {
		t.Errorf("flow kind = %q, want intent choice after restart", sess.Flow.Kind)
	}
	if got := env.sender.last(); !strings.Contains(got, "do zero") {
		t.Errorf("reply = %q, want restart acknowledgement", got)
	}
	if sess.SelectedPlace != nil {
		t.Error("restart kept SelectedPlace")
	}

	// The restart must not have been consumed as an interview answer.
	env.text(t, "m5", "restaurante")
	if kind := env.session().Flow.Kind; kind != session.FlowInterviewing {
		t.Errorf("flow kind = %q, want a fresh interview after the new intent", kind)
	}
}

func TestTopicQuestionWithEmbeddedSelection(t *testing.T) {
	env := newTestEnv(t)
	open := true
	env.places.details = &models.PlaceDetails{
		Name: "Ernesto Cafés",
		OpeningHours: &models.OpeningHours{
			WeekdayText: []string{"segunda-feira: 08:00–22:00"},
			OpenNow:     &open,
		},
	}
	sess := env.store.GetOrCreate("5561999990000")
	sess.CTA = &session.CTA{OrderedResults: testPlaces(), PageStart: 0}

	env.text(t, "m1", "qual o horário do 2?")

	if sess.SelectedPlace == nil || sess.SelectedPlace.PlaceID != "p2" {
		t.Fatalf("SelectedPlace = %+v, want p2 from the embedded number", sess.SelectedPlace)
	}
	got := env.sender.last()
	if !strings.Contains(got, "segunda-feira") {
		t.Errorf("reply = %q, want hours for the second listed place", got)
	}
}
