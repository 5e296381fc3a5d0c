// Package llm provides the text-generation abstraction used for intent
// classification, relevance scoring and adaptive replies. Gemini is the
// primary backend with OpenAI as the alternative; every conversational
// decision that consults a model goes through ClassifyOrDefault so a slow or
// missing model degrades to a scripted default instead of blocking the flow.
package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Generator produces a completion for a system/user prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClassifyOrDefault asks the generator to classify something, waiting at most
// timeout. On a nil generator, error, empty output or timeout it returns the
// fallback. A result arriving after the deadline is discarded; the reply the
// user already got stands.
func ClassifyOrDefault(ctx context.Context, g Generator, systemPrompt, userPrompt string, timeout time.Duration, fallback string) string {
	if g == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := g.Generate(ctx, systemPrompt, userPrompt)
		ch <- result{text: text, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			slog.Debug("llm.ClassifyOrDefault falling back", "error", r.err)
			return fallback
		}
		text := strings.TrimSpace(r.text)
		if text == "" {
			return fallback
		}
		return text
	case <-ctx.Done():
		slog.Debug("llm.ClassifyOrDefault timed out", "timeout", timeout)
		return fallback
	}
}
