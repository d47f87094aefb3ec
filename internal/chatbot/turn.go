package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"RagChat/internal/backend"
	"RagChat/internal/cache"
	"RagChat/internal/documents"
	"RagChat/internal/prompts"
	"RagChat/internal/retrieval"
	"RagChat/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	refreshEvery       = 8
	fallbackTitleWords = 5
	untitled           = "Untitled conversation"
)

// Submit runs one chat turn for text: the human message is appended,
// context is retrieved, the prompt is assembled, the answer is streamed
// into the transcript and the conversation is persisted.
//
// A stream failure is not returned; it shows up as the apology message.
func (cb *ChatBot) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyPrompt
	}
	if err := cb.begin(); err != nil {
		return err
	}
	defer cb.end()

	model := cb.Model()
	if model == "" {
		cb.logger.Error("turn aborted", "error", ErrNoModel)
		return ErrNoModel
	}

	history := cb.session.Messages()
	if err := cb.session.Append(session.NewHumanMessage(text)); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	cb.notifyMessages(cb.session.Messages())

	return cb.runTurn(ctx, model, history, text)
}

// Regenerate replays the model call from messageID. A human target is kept
// and answered again; an assistant target is replaced by a new answer to the
// human message before it. Later messages stay in the archive until the new
// answer is persisted over them.
func (cb *ChatBot) Regenerate(ctx context.Context, messageID string) error {
	if err := cb.begin(); err != nil {
		return err
	}
	defer cb.end()

	model := cb.Model()
	if model == "" {
		cb.logger.Error("regeneration aborted", "error", ErrNoModel)
		return ErrNoModel
	}

	current := cb.session.Messages()
	i := indexOf(current, messageID)
	if i < 0 {
		return fmt.Errorf("%w: %s", session.ErrMessageNotFound, messageID)
	}
	if session.RegenerationCut(current, i) == 0 {
		return ErrNothingToRegenerate
	}

	prefix, err := cb.session.TruncateForRegeneration(messageID)
	if err != nil {
		return err
	}
	cb.notifyMessages(prefix)

	last := prefix[len(prefix)-1]
	return cb.runTurn(ctx, model, prefix[:len(prefix)-1], last.Content)
}

// DeleteMessage drops a message and persists the remaining transcript.
func (cb *ChatBot) DeleteMessage(ctx context.Context, messageID string) error {
	if err := cb.begin(); err != nil {
		return err
	}
	defer cb.end()

	filtered, err := cb.session.RemoveByID(messageID)
	if err != nil {
		return err
	}
	cb.notifyMessages(filtered)

	seed := firstHumanText(filtered)
	if cb.session.Title() == "" && seed == "" {
		// nothing to name the conversation after
		return nil
	}
	return cb.persist(ctx, seed, cb.Model())
}

// runTurn answers text given the history before it. The human message is
// already the last entry of the session.
func (cb *ChatBot) runTurn(ctx context.Context, model string, history []session.Message, text string) error {
	ctx, span := cb.tracer.Start(ctx, "chat_turn", trace.WithAttributes(
		attribute.String("model", model),
		attribute.Int("history_length", len(history)),
	))
	defer span.End()

	scope := cb.documents.SelectedGUIDs()
	results := cb.retrieve(ctx, text, scope)

	messages := prompts.Assemble(history, text, results, cb.catalog.Active(), len(scope) > 0, cb.catalog)

	outcome := "ok"
	if err := cb.stream(ctx, model, messages); err != nil {
		outcome = "error"
		span.RecordError(err)
	}

	cb.mergeDiscovered(results)

	err := cb.persist(ctx, text, model)
	if err != nil && outcome == "ok" {
		outcome = "persist_error"
	}
	if cb.turns != nil {
		cb.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	return err
}

// retrieve never fails; a broken search service means no context.
func (cb *ChatBot) retrieve(ctx context.Context, text string, scope []string) []retrieval.Result {
	if cb.retriever == nil {
		return nil
	}
	results, err := cb.retriever.Search(ctx, text, scope)
	if err != nil {
		cb.logger.Warn("retrieval failed, continuing without context", "error", err)
		return nil
	}
	return results
}

// stream feeds model deltas into the transcript. On failure the partial
// answer is replaced by ApologyText and the error is returned.
func (cb *ChatBot) stream(ctx context.Context, model string, messages []backend.ChatMessage) error {
	ctx, span := cb.tracer.Start(ctx, "model_stream", trace.WithAttributes(attribute.String("model", model)))
	defer span.End()

	base := cb.session.Messages()
	refresh := rate.Sometimes{Every: refreshEvery}
	var buf strings.Builder
	chunks := 0

	err := cb.model.ChatStream(ctx, model, messages, func(delta string) {
		buf.WriteString(delta)
		chunks++
		updated := append(cloneMessages(base), session.NewAssistantMessage(buf.String(), model))
		cb.session.Replace(updated)
		cb.notifyMessages(updated)
		refresh.Do(cb.notifyRefresh)
	})
	if cb.chunks != nil && chunks > 0 {
		cb.chunks.Add(ctx, int64(chunks), metric.WithAttributes(attribute.String("model", model)))
	}

	if err != nil {
		cb.logger.Error("model stream failed", "model", model, "chunks", chunks, "error", err)
		span.SetStatus(codes.Error, err.Error())
		updated := append(cloneMessages(base), session.NewAssistantMessage(ApologyText, model))
		cb.session.Replace(updated)
		cb.notifyMessages(updated)
	}
	cb.notifyRefresh()

	span.SetAttributes(attribute.Int("chunks", chunks))
	return err
}

// mergeDiscovered adds the documents behind results to the selection.
func (cb *ChatBot) mergeDiscovered(results []retrieval.Result) {
	if len(results) == 0 {
		return
	}
	entries := make([]documents.Entry, 0, len(results))
	for _, r := range results {
		if r.DocumentGUID == "" {
			continue
		}
		entries = append(entries, documents.NewEntry(r.ObjectKey, r.DocumentGUID))
	}
	if len(entries) > 0 {
		cb.documents.Apply(documents.Many(entries))
	}
}

// persist stores the transcript, naming the conversation after seed first
// if it has no title yet.
func (cb *ChatBot) persist(ctx context.Context, seed, model string) error {
	if cb.archive == nil {
		return nil
	}

	title, filePath := cb.session.Title(), cb.session.FilePath()
	if title == "" {
		title = cb.generateTitle(ctx, seed, model)
	}
	if filePath == "" {
		filePath = session.ConversationFilename(title)
	}

	ctx, span := cb.tracer.Start(ctx, "archive_persist", trace.WithAttributes(attribute.String("file", filePath)))
	defer span.End()

	messages := cb.session.Messages()
	path, err := cb.archive.Persist(ctx, title, filePath, messages)
	if err != nil {
		span.RecordError(err)
		cb.logger.Error("failed to persist conversation", "file", filePath, "error", err)
		return fmt.Errorf("failed to persist conversation: %w", err)
	}
	cb.session.SetTitle(title, path)
	cb.logger.Info("conversation persisted", "file", path, "message_count", len(messages))
	return nil
}

// generateTitle asks the model for a short title. Predictions are cached by
// model and input; a failed prediction falls back to the input's first words.
func (cb *ChatBot) generateTitle(ctx context.Context, seed, model string) string {
	if strings.TrimSpace(model) == "" {
		model = cb.fallbackModel
	}
	key := cache.GenerateCacheKey("title", model, seed)
	if title, ok := cb.cache.Get(ctx, key); ok {
		cb.logger.Debug("title cache hit", "key", key[:16])
		return title
	}

	ctx, span := cb.tracer.Start(ctx, "model_predict", trace.WithAttributes(attribute.String("model", model)))
	defer span.End()

	raw, err := cb.model.Predict(ctx, model, backend.TitleInstruction+seed)
	title := session.CleanTitle(raw)
	if err != nil || title == "" {
		if err == nil {
			err = errors.New("empty title")
		}
		span.RecordError(err)
		cb.logger.Warn("title generation failed, using prompt words", "model", model, "error", err)
		return fallbackTitle(seed)
	}

	cb.cache.Set(ctx, key, title)
	return title
}

func fallbackTitle(seed string) string {
	words := strings.Fields(strings.ReplaceAll(seed, `"`, ""))
	if len(words) == 0 {
		return untitled
	}
	if len(words) > fallbackTitleWords {
		words = words[:fallbackTitleWords]
	}
	return strings.Join(words, " ")
}

func firstHumanText(messages []session.Message) string {
	for _, m := range messages {
		if m.Role == session.RoleHuman {
			return m.Content
		}
	}
	return ""
}

func indexOf(messages []session.Message, id string) int {
	for i, m := range messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func cloneMessages(messages []session.Message) []session.Message {
	out := make([]session.Message, len(messages), len(messages)+1)
	copy(out, messages)
	return out
}
