// Package backend talks to the language-model server: streaming chat,
// one-shot prediction and the model list.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TitleInstruction prefixes the first human prompt when asking the model
// for a conversation title.
const TitleInstruction = "You're a tool, that receives an input and responds exclusively with a 2-5 word summary of the topic (and absolutely no prose) based specifically on the words used in the input (not the expected output). Each word in the summary should be carefully chosen so that it's perfecly informative - and serve as a perfect title for the input. Now, return the summary for the following input:\n"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role-tagged message sent to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model describes a model the server can run.
type Model struct {
	Name       string
	Size       int64
	ModifiedAt string
}

// Client is a model server.
type Client interface {
	// ChatStream sends messages and calls onDelta with each text chunk, in
	// order, until the server closes the stream.
	ChatStream(ctx context.Context, model string, messages []ChatMessage, onDelta func(string)) error
	// Predict returns a single completion for prompt.
	Predict(ctx context.Context, model, prompt string) (string, error)
	// ListModels returns the models the server has available.
	ListModels(ctx context.Context) ([]Model, error)
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeModelNotFound
	ErrTypeInvalidResponse
)

// ClientError represents an error from a model server client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// IsNotRunning reports whether err means the model server could not be reached.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrTypeNotRunning
}

// IsModelNotFound reports whether err means the requested model does not exist.
func IsModelNotFound(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrTypeModelNotFound
}

// New returns the client for the given wire format.
func New(kind, baseURL string, httpClient *http.Client) (Client, error) {
	if httpClient == nil {
		// no timeout: streams run until the server closes them
		httpClient = &http.Client{}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	switch kind {
	case "ollama":
		return &OllamaClient{baseURL: baseURL, httpClient: httpClient}, nil
	case "openai":
		return &OpenAIClient{baseURL: baseURL, httpClient: httpClient}, nil
	default:
		return nil, fmt.Errorf("unknown model backend: %s", kind)
	}
}

func sendError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: "failed to send request (is the model server running?)", Cause: err}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	errType := ErrTypeInvalidResponse
	if resp.StatusCode == http.StatusNotFound {
		errType = ErrTypeModelNotFound
	}
	return &ClientError{
		Type:    errType,
		Message: fmt.Sprintf("API error: %s - %s", resp.Status, strings.TrimSpace(string(body))),
	}
}
