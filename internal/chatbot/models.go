package chatbot

import (
	"context"
	"fmt"
	"strings"

	"RagChat/internal/backend"
)

// LoadModels fetches the model list and picks the active model: the
// configured one if the server has it, then the stored preference, then
// the first model listed.
func (cb *ChatBot) LoadModels(ctx context.Context) ([]backend.Model, error) {
	models, err := cb.model.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	cb.mu.Lock()
	cb.models = models
	current := cb.activeModel
	cb.mu.Unlock()

	if len(models) == 0 {
		cb.logger.Warn("model server reports no models")
		return models, nil
	}

	candidates := []string{current, cb.preferredModel}
	if cb.prefs != nil {
		stored, ok, err := cb.prefs.Preference(ModelPreferenceKey)
		if err != nil {
			cb.logger.Warn("failed to read model preference", "error", err)
		} else if ok {
			candidates = append(candidates, stored)
		}
	}

	chosen := models[0].Name
	for _, c := range candidates {
		if name, ok := findModel(models, c); ok {
			chosen = name
			break
		}
	}

	cb.mu.Lock()
	cb.activeModel = chosen
	cb.mu.Unlock()
	cb.logger.Info("models loaded", "count", len(models), "model", chosen)
	return models, nil
}

// Model returns the active model name, empty when none is selected.
func (cb *ChatBot) Model() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.activeModel
}

// SetModel selects name and stores it as the preference. When a model list
// has been loaded the name must be on it.
func (cb *ChatBot) SetModel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoModel
	}

	cb.mu.Lock()
	if len(cb.models) > 0 {
		found, ok := findModel(cb.models, name)
		if !ok {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownModel, name)
		}
		name = found
	}
	cb.activeModel = name
	cb.mu.Unlock()

	cb.storeModel(name)
	return nil
}

// CycleModel switches to the next model on the list, wrapping around.
func (cb *ChatBot) CycleModel() (string, error) {
	cb.mu.Lock()
	if len(cb.models) == 0 {
		cb.mu.Unlock()
		return "", ErrNoModel
	}
	next := 0
	for i, m := range cb.models {
		if m.Name == cb.activeModel {
			next = (i + 1) % len(cb.models)
			break
		}
	}
	name := cb.models[next].Name
	cb.activeModel = name
	cb.mu.Unlock()

	cb.storeModel(name)
	return name, nil
}

func (cb *ChatBot) storeModel(name string) {
	cb.logger.Info("model selected", "model", name)
	if cb.prefs == nil {
		return
	}
	if err := cb.prefs.SetPreference(ModelPreferenceKey, name); err != nil {
		cb.logger.Warn("failed to store model preference", "model", name, "error", err)
	}
}

func findModel(models []backend.Model, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, m := range models {
		if strings.EqualFold(m.Name, name) {
			return m.Name, true
		}
	}
	return "", false
}
