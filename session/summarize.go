package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/model"
)

// Summarizer condenses a slice of conversation messages into a compact
// summary, optionally seeded with the previous summary for continuity.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, msgs []core.Message) (string, error)
}

// SummarizerFunc adapts a plain function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, priorSummary string, msgs []core.Message) (string, error)

// Summarize implements the Summarizer interface for SummarizerFunc.
func (f SummarizerFunc) Summarize(ctx context.Context, priorSummary string, msgs []core.Message) (string, error) {
	return f(ctx, priorSummary, msgs)
}

const summarizerInstructions = `You condense conversation transcripts. Produce a concise summary that
preserves facts, decisions, open questions and tool outcomes. Respond with
the summary text only.`

// ModelSummarizer produces summaries by prompting a language model.
type ModelSummarizer struct {
	model model.Model
}

// NewModelSummarizer constructs a summarizer backed by the given model.
func NewModelSummarizer(m model.Model) *ModelSummarizer {
	return &ModelSummarizer{model: m}
}

// Summarize renders the transcript into a prompt and returns the model's
// final text output.
func (s *ModelSummarizer) Summarize(ctx context.Context, priorSummary string, msgs []core.Message) (string, error) {
	var sb strings.Builder
	if priorSummary != "" {
		sb.WriteString("Previous summary:\n")
		sb.WriteString(priorSummary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Conversation to condense:\n")
	for _, msg := range msgs {
		if text := msg.Text(); text != "" {
			fmt.Fprintf(&sb, "%s: %s\n", msg.Role, text)
		}
		for _, call := range msg.FunctionCalls() {
			fmt.Fprintf(&sb, "%s called tool %s(%s)\n", msg.Role, call.Name, call.Arguments)
		}
		for _, resp := range msg.FunctionResponses() {
			if resp.Error != "" {
				fmt.Fprintf(&sb, "tool %s failed: %s\n", resp.Name, resp.Error)
			} else {
				fmt.Fprintf(&sb, "tool %s returned: %v\n", resp.Name, resp.Response)
			}
		}
	}

	respCh, errCh := s.model.Generate(ctx, model.Request{
		Instructions: summarizerInstructions,
		Messages:     []core.Message{core.NewUserMessage(sb.String())},
	})

	var out string
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				out = resp.Message.Text()
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", fmt.Errorf("session: summarize: %w", err)
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if out == "" {
		return "", fmt.Errorf("session: summarize: model returned no text")
	}
	return out, nil
}

var _ Summarizer = (*ModelSummarizer)(nil)

// SummarizingStoreOptions configure a SummarizingStore.
type SummarizingStoreOptions struct {
	// MessageThreshold is the number of non-summary messages that triggers
	// summarization. Defaults to 10.
	MessageThreshold int

	// KeepRecent is how many of the newest messages survive a
	// summarization pass verbatim. Defaults to 3.
	KeepRecent int

	// MaxMessages bounds the history when no Summarizer is configured or
	// summarization fails; oldest messages are dropped beyond it. Zero
	// disables windowing.
	MaxMessages int
}

// SummarizingStore wraps another Store and keeps its histories bounded.
// Once the non-summary message count exceeds MessageThreshold the older
// portion is condensed into a single summary message and only the KeepRecent
// newest messages are retained verbatim. When summarization is unavailable
// or fails, the store degrades to a drop-oldest sliding window instead of
// surfacing an error, so an unreachable summarizer never breaks a run.
type SummarizingStore struct {
	inner      Store
	summarizer Summarizer
	opts       SummarizingStoreOptions
}

// NewSummarizingStore wraps inner with summarizing compaction. A nil
// summarizer is allowed and yields pure sliding-window behavior driven by
// MaxMessages.
func NewSummarizingStore(inner Store, summarizer Summarizer, optFns ...func(o *SummarizingStoreOptions)) *SummarizingStore {
	opts := SummarizingStoreOptions{MessageThreshold: 10, KeepRecent: 3}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.KeepRecent < 1 {
		opts.KeepRecent = 1
	}
	return &SummarizingStore{inner: inner, summarizer: summarizer, opts: opts}
}

// History returns the (possibly compacted) message history.
func (s *SummarizingStore) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	return s.inner.History(ctx, sessionID)
}

// Append adds messages and compacts the history when it crosses the
// configured threshold.
func (s *SummarizingStore) Append(ctx context.Context, sessionID string, msgs ...core.Message) error {
	if err := s.inner.Append(ctx, sessionID, msgs...); err != nil {
		return err
	}
	return s.compact(ctx, sessionID)
}

// Clear removes all messages and metadata for the session.
func (s *SummarizingStore) Clear(ctx context.Context, sessionID string) error {
	return s.inner.Clear(ctx, sessionID)
}

// Metadata returns the session metadata map.
func (s *SummarizingStore) Metadata(ctx context.Context, sessionID string) (map[string]string, error) {
	return s.inner.Metadata(ctx, sessionID)
}

// UpdateMetadata merges the given keys into the session metadata.
func (s *SummarizingStore) UpdateMetadata(ctx context.Context, sessionID string, md map[string]string) error {
	return s.inner.UpdateMetadata(ctx, sessionID, md)
}

func (s *SummarizingStore) compact(ctx context.Context, sessionID string) error {
	history, err := s.inner.History(ctx, sessionID)
	if err != nil {
		return err
	}

	var summaries, convo []core.Message
	for _, msg := range history {
		if msg.Summary {
			summaries = append(summaries, msg)
		} else {
			convo = append(convo, msg)
		}
	}

	if s.summarizer != nil && s.opts.MessageThreshold > 0 && len(convo) > s.opts.MessageThreshold {
		keep := s.opts.KeepRecent
		if keep > len(convo) {
			keep = len(convo)
		}
		recent := convo[len(convo)-keep:]
		older := convo[:len(convo)-keep]

		prior := ""
		if len(summaries) > 0 {
			prior = summaries[len(summaries)-1].Text()
		}

		text, serr := s.summarizer.Summarize(ctx, prior, older)
		if serr != nil {
			return s.window(ctx, sessionID, summaries, convo, s.opts.MessageThreshold)
		}

		rewritten := append([]core.Message{core.NewSummaryMessage(text)}, recent...)
		return s.rewrite(ctx, sessionID, rewritten)
	}

	if s.summarizer == nil && s.opts.MaxMessages > 0 && len(convo) > s.opts.MaxMessages {
		return s.window(ctx, sessionID, summaries, convo, s.opts.MaxMessages)
	}
	return nil
}

// window drops the oldest conversation messages so at most max remain,
// preserving any existing summary messages at the front.
func (s *SummarizingStore) window(ctx context.Context, sessionID string, summaries, convo []core.Message, max int) error {
	if max <= 0 || len(convo) <= max {
		return nil
	}
	rewritten := append(append([]core.Message{}, summaries...), convo[len(convo)-max:]...)
	return s.rewrite(ctx, sessionID, rewritten)
}

// rewrite replaces the stored history while preserving session metadata,
// which Clear would otherwise discard.
func (s *SummarizingStore) rewrite(ctx context.Context, sessionID string, msgs []core.Message) error {
	md, err := s.inner.Metadata(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.inner.Clear(ctx, sessionID); err != nil {
		return err
	}
	if err := s.inner.Append(ctx, sessionID, msgs...); err != nil {
		return err
	}
	if len(md) > 0 {
		return s.inner.UpdateMetadata(ctx, sessionID, md)
	}
	return nil
}

var _ Store = (*SummarizingStore)(nil)
