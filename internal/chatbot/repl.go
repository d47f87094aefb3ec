package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"RagChat/internal/archive"
	"RagChat/internal/backend"
	"RagChat/internal/session"

	"github.com/charmbracelet/glamour"
)

// Terminal is the interactive front end: it reads prompts and slash
// commands and writes streamed answers.
type Terminal struct {
	bot      *ChatBot
	in       io.Reader
	out      *bufio.Writer
	renderer *glamour.TermRenderer

	// set while a turn streams; assistant text already written for it
	answering bool
	printed   string
	convos    []archive.ConversationRef
}

// NewTerminal attaches a terminal to bot. With renderMarkdown set, answers
// are shown once complete, rendered by glamour, instead of streamed raw.
func NewTerminal(bot *ChatBot, in io.Reader, out io.Writer, renderMarkdown bool) *Terminal {
	t := &Terminal{
		bot: bot,
		in:  in,
		out: bufio.NewWriter(out),
	}
	if renderMarkdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err != nil {
			bot.logger.Warn("markdown renderer unavailable, printing plain text", "error", err)
		} else {
			t.renderer = r
		}
	}
	bot.SetObserver(t)
	return t
}

// MessagesChanged writes the part of the newest answer not yet shown.
func (t *Terminal) MessagesChanged(messages []session.Message) {
	if !t.answering {
		return
	}
	if len(messages) == 0 || messages[len(messages)-1].Role != session.RoleAssistant {
		t.printed = ""
		return
	}
	if t.renderer != nil {
		return
	}
	content := messages[len(messages)-1].Content
	if strings.HasPrefix(content, t.printed) {
		t.out.WriteString(content[len(t.printed):])
	} else {
		t.out.WriteString("\n" + content)
	}
	t.printed = content
}

// Refresh flushes buffered output.
func (t *Terminal) Refresh() {
	_ = t.out.Flush()
}

// Run reads input until EOF or /quit.
func (t *Terminal) Run(ctx context.Context) error {
	defer t.out.Flush()

	fmt.Fprintln(t.out, "=== RagChat ===")
	fmt.Fprintf(t.out, "Session: %s\n", t.bot.session.ID)
	if _, err := t.bot.LoadModels(ctx); err != nil {
		fmt.Fprintln(t.out, describeError(err))
		t.bot.logger.Error("failed to load models", "error", err)
	}
	if model := t.bot.Model(); model != "" {
		fmt.Fprintf(t.out, "Model: %s\n", model)
	} else {
		fmt.Fprintln(t.out, "No model selected. Use /models and /model <name>.")
	}
	fmt.Fprintf(t.out, "Instruction: %s\n", t.bot.catalog.Active().Name)
	fmt.Fprintln(t.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(t.out)

	scanner := bufio.NewScanner(t.in)
	for {
		fmt.Fprint(t.out, "You: ")
		t.out.Flush()
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := t.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintln(t.out, describeError(err))
				t.bot.logger.Error("command error", "command", input, "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		t.startAnswer()
		err := t.bot.Submit(ctx, input)
		t.finishAnswer()
		if err != nil {
			t.reportTurnError(err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(t.out, "Goodbye!")
	return nil
}

func (t *Terminal) startAnswer() {
	fmt.Fprint(t.out, "Bot: ")
	t.answering = true
	t.printed = ""
}

func (t *Terminal) finishAnswer() {
	t.answering = false
	if t.renderer != nil {
		messages := t.bot.session.Messages()
		if n := len(messages); n > 0 && messages[n-1].Role == session.RoleAssistant {
			t.out.WriteString(t.render(messages[n-1].Content))
		}
	}
	t.printed = ""
	fmt.Fprint(t.out, "\n\n")
	t.out.Flush()
}

func (t *Terminal) render(content string) string {
	rendered, err := t.renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

func (t *Terminal) reportTurnError(err error) {
	fmt.Fprintln(t.out, describeError(err))
	t.bot.logger.Error("turn failed", "error", err)
}

func describeError(err error) string {
	switch {
	case errors.Is(err, ErrNoModel):
		return "No model selected. Use /models and /model <name>."
	case errors.Is(err, ErrTurnInProgress):
		return "Still answering the previous message."
	case backend.IsNotRunning(err):
		return fmt.Sprintf("Could not reach the model server, is it running? (%v)", err)
	case backend.IsModelNotFound(err):
		return fmt.Sprintf("The model server does not have that model. Use /models to list them. (%v)", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// handleCommand handles slash commands. The bool reports whether to quit.
func (t *Terminal) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		if err := t.bot.NewChat(); err != nil {
			return false, err
		}
		fmt.Fprintln(t.out, "Started a new chat")
		return false, nil

	case "/models":
		models, err := t.bot.LoadModels(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(t.out, "\nAvailable models:")
		current := t.bot.Model()
		for i, m := range models {
			sizeGB := float64(m.Size) / (1024 * 1024 * 1024)
			marker := ""
			if m.Name == current {
				marker = " (current)"
			}
			fmt.Fprintf(t.out, "%d. %s - %.2f GB%s\n", i+1, m.Name, sizeGB, marker)
		}
		fmt.Fprintln(t.out)
		return false, nil

	case "/model":
		if rest == "" {
			fmt.Fprintf(t.out, "Model: %s\n", t.bot.Model())
			return false, nil
		}
		if err := t.bot.SetModel(rest); err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "Model set to: %s\n", t.bot.Model())
		return false, nil

	case "/next-model":
		name, err := t.bot.CycleModel()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "Model set to: %s\n", name)
		return false, nil

	case "/instructions":
		active := t.bot.catalog.Active().ID
		fmt.Fprintln(t.out, "\nSystem instructions:")
		for _, inst := range t.bot.catalog.List() {
			marker := " "
			if inst.ID == active {
				marker = "*"
			}
			fmt.Fprintf(t.out, "%s %s  %s\n", marker, inst.ID, inst.Name)
		}
		fmt.Fprintln(t.out)
		return false, nil

	case "/instruction":
		if rest == "" {
			return false, fmt.Errorf("usage: /instruction <id>")
		}
		if !t.bot.catalog.SetActive(rest) {
			fmt.Fprintf(t.out, "Unknown instruction %q, keeping %s\n", rest, t.bot.catalog.Active().Name)
			return false, nil
		}
		fmt.Fprintf(t.out, "Instruction set to: %s\n", t.bot.catalog.Active().Name)
		return false, nil

	case "/add-instruction":
		name, content, ok := strings.Cut(rest, "|")
		if !ok {
			return false, fmt.Errorf("usage: /add-instruction <name> | <content>")
		}
		id, err := t.bot.catalog.Add(strings.TrimSpace(name), strings.TrimSpace(content))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "Added instruction %s\n", id)
		return false, nil

	case "/edit-instruction":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /edit-instruction <id> <name> | <content>")
		}
		id := parts[1]
		name, content, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(rest, id)), "|")
		if !ok {
			return false, fmt.Errorf("usage: /edit-instruction <id> <name> | <content>")
		}
		if err := t.bot.catalog.Update(id, strings.TrimSpace(name), strings.TrimSpace(content)); err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "Updated instruction %s\n", id)
		return false, nil

	case "/docs":
		entries := t.bot.documents.Entries()
		if len(entries) == 0 {
			fmt.Fprintln(t.out, "No documents yet. They appear as searches find them.")
			return false, nil
		}
		fmt.Fprintln(t.out, "\nDocuments:")
		for i, e := range entries {
			box := "[ ]"
			if e.Selected {
				box = "[x]"
			}
			fmt.Fprintf(t.out, "%d. %s %s\n", i+1, box, e.Filename)
		}
		fmt.Fprintln(t.out)
		return false, nil

	case "/toggle":
		n, err := t.index(rest, len(t.bot.documents.Entries()))
		if err != nil {
			return false, fmt.Errorf("usage: /toggle <document number>: %w", err)
		}
		t.bot.documents.Toggle(n)
		return false, nil

	case "/clear-docs":
		t.bot.documents.Clear()
		fmt.Fprintln(t.out, "Document selection cleared")
		return false, nil

	case "/history":
		for _, m := range t.bot.session.Messages() {
			fmt.Fprintf(t.out, "[%s] %s: %s\n", m.ID, m.Role, firstLine(m.Content))
		}
		return false, nil

	case "/delete":
		if rest == "" {
			return false, fmt.Errorf("usage: /delete <message id>")
		}
		if err := t.bot.DeleteMessage(ctx, rest); err != nil {
			return false, err
		}
		fmt.Fprintln(t.out, "Message deleted")
		return false, nil

	case "/regen":
		id := rest
		if id == "" {
			id = lastAssistantID(t.bot.session.Messages())
		}
		if id == "" {
			return false, ErrNothingToRegenerate
		}
		t.startAnswer()
		err := t.bot.Regenerate(ctx, id)
		t.finishAnswer()
		return false, err

	case "/convos":
		refs, err := t.bot.ListConversations(ctx)
		if err != nil {
			return false, err
		}
		t.convos = refs
		if len(refs) == 0 {
			fmt.Fprintln(t.out, "No saved conversations.")
			return false, nil
		}
		fmt.Fprintln(t.out, "\nConversations:")
		current := t.bot.session.FilePath()
		for i, ref := range refs {
			marker := ""
			if ref.FilePath == current {
				marker = " (current)"
			}
			fmt.Fprintf(t.out, "%d. %s%s\n", i+1, ref.Title, marker)
		}
		fmt.Fprintln(t.out)
		return false, nil

	case "/load":
		n, err := t.index(rest, len(t.convos))
		if err != nil {
			return false, fmt.Errorf("usage: /load <conversation number from /convos>: %w", err)
		}
		if err := t.bot.LoadConversation(ctx, t.convos[n]); err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "Loaded %s (%d messages)\n", t.convos[n].Title, t.bot.session.Len())
		return false, nil

	case "/delete-convo":
		n, err := t.index(rest, len(t.convos))
		if err != nil {
			return false, fmt.Errorf("usage: /delete-convo <conversation number from /convos>: %w", err)
		}
		ref := t.convos[n]
		if err := t.bot.DeleteConversation(ctx, ref.FilePath); err != nil {
			return false, err
		}
		t.convos = append(t.convos[:n:n], t.convos[n+1:]...)
		fmt.Fprintf(t.out, "Deleted %s\n", ref.Title)
		return false, nil

	case "/help":
		fmt.Fprintln(t.out, "Available commands:")
		fmt.Fprintln(t.out, "  /quit, /exit                          - Exit")
		fmt.Fprintln(t.out, "  /new                                  - Start a new chat")
		fmt.Fprintln(t.out, "  /models                               - List available models")
		fmt.Fprintln(t.out, "  /model [name]                         - Show or set the model")
		fmt.Fprintln(t.out, "  /next-model                           - Switch to the next model")
		fmt.Fprintln(t.out, "  /instructions                         - List system instructions")
		fmt.Fprintln(t.out, "  /instruction <id>                     - Select a system instruction")
		fmt.Fprintln(t.out, "  /add-instruction <name> | <content>   - Add a system instruction")
		fmt.Fprintln(t.out, "  /edit-instruction <id> <name> | <txt> - Edit a system instruction")
		fmt.Fprintln(t.out, "  /docs                                 - List discovered documents")
		fmt.Fprintln(t.out, "  /toggle <n>                           - Toggle document n")
		fmt.Fprintln(t.out, "  /clear-docs                           - Clear the document list")
		fmt.Fprintln(t.out, "  /history                              - Show messages with ids")
		fmt.Fprintln(t.out, "  /delete <id>                          - Delete a message")
		fmt.Fprintln(t.out, "  /regen [id]                           - Regenerate an answer")
		fmt.Fprintln(t.out, "  /convos                               - List saved conversations")
		fmt.Fprintln(t.out, "  /load <n>                             - Load conversation n")
		fmt.Fprintln(t.out, "  /delete-convo <n>                     - Delete conversation n")
		fmt.Fprintln(t.out, "  /help                                 - Show this help message")
		return false, nil

	default:
		fmt.Fprintf(t.out, "Unknown command %s, try /help\n", parts[0])
		return false, nil
	}
}

// index parses a 1-based list position.
func (t *Terminal) index(arg string, n int) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, err
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("%d is out of range 1-%d", i, n)
	}
	return i - 1, nil
}

func lastAssistantID(messages []session.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == session.RoleAssistant {
			return messages[i].ID
		}
	}
	return ""
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(s, "\n")
	if cut {
		return line + " ..."
	}
	return line
}
