// Package prompts manages the system-instruction catalog and assembles the
// message sequence sent to the model.
package prompts

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"RagChat/internal/database"
)

// ActivePreferenceKey stores the id of the active instruction.
const ActivePreferenceKey = "activeSystemInstructionId"

var (
	ErrNotFound   = errors.New("system instruction not found")
	ErrEmptyField = errors.New("name and content are required")
)

// SystemInstruction is a named, reusable system prompt.
type SystemInstruction struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Repository persists the catalog and the active-instruction preference.
type Repository interface {
	LoadInstructions() ([]SystemInstruction, error)
	SaveInstruction(inst SystemInstruction, position int) error
	ActiveID() (string, error)
	SetActiveID(id string) error
}

// Catalog is the ordered set of system instructions plus the active one.
// It is safe for concurrent use.
type Catalog struct {
	mu           sync.RWMutex
	instructions []SystemInstruction
	activeID     string
	repo         Repository
	logger       *slog.Logger
}

// NewCatalog loads the catalog from repo, seeding the built-ins when it is
// empty.
func NewCatalog(repo Repository, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{repo: repo, logger: logger}

	loaded, err := repo.LoadInstructions()
	if err != nil {
		return nil, fmt.Errorf("failed to load system instructions: %w", err)
	}
	if len(loaded) == 0 {
		loaded = Builtins()
		for i, inst := range loaded {
			if err := repo.SaveInstruction(inst, i); err != nil {
				return nil, fmt.Errorf("failed to seed system instructions: %w", err)
			}
		}
		logger.Info("seeded built-in system instructions", "count", len(loaded))
	}
	c.instructions = loaded

	activeID, err := repo.ActiveID()
	if err != nil {
		logger.Warn("failed to load active system instruction", "error", err)
	}
	c.activeID = activeID
	return c, nil
}

// List returns the instructions in insertion order.
func (c *Catalog) List() []SystemInstruction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]SystemInstruction(nil), c.instructions...)
}

// Get looks up an instruction by id.
func (c *Catalog) Get(id string) (SystemInstruction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.instructions[i], true
	}
	return SystemInstruction{}, false
}

// Active returns the selected instruction, or the first one when the stored
// selection is missing or no longer resolves.
func (c *Catalog) Active() SystemInstruction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(c.activeID); i >= 0 {
		return c.instructions[i]
	}
	if len(c.instructions) == 0 {
		return SystemInstruction{}
	}
	return c.instructions[0]
}

// SetActive selects id. Unknown ids are ignored and reported as false.
func (c *Catalog) SetActive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(id) < 0 {
		return false
	}
	c.activeID = id
	if err := c.repo.SetActiveID(id); err != nil {
		c.logger.Warn("failed to persist active system instruction", "id", id, "error", err)
	}
	return true
}

// Add appends a new instruction and returns its generated id.
func (c *Catalog) Add(name, content string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(content) == "" {
		return "", ErrEmptyField
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	inst := SystemInstruction{ID: "instruction-" + uuid.NewString(), Name: name, Content: content}
	if err := c.repo.SaveInstruction(inst, len(c.instructions)); err != nil {
		return "", err
	}
	c.instructions = append(c.instructions, inst)
	c.logger.Info("added system instruction", "id", inst.ID, "name", name)
	return inst.ID, nil
}

// Update replaces the name and content of an existing instruction. The id
// never changes, so an active instruction reflects the edit immediately.
func (c *Catalog) Update(id, name, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	inst := SystemInstruction{ID: id, Name: name, Content: content}
	if err := c.repo.SaveInstruction(inst, i); err != nil {
		return err
	}
	c.instructions[i] = inst
	c.logger.Info("updated system instruction", "id", id)
	return nil
}

func (c *Catalog) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, inst := range c.instructions {
		if inst.ID == id {
			return i
		}
	}
	return -1
}

// MemoryRepository keeps the catalog in process memory.
type MemoryRepository struct {
	mu           sync.Mutex
	instructions []SystemInstruction
	activeID     string
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) LoadInstructions() ([]SystemInstruction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SystemInstruction(nil), r.instructions...), nil
}

func (r *MemoryRepository) SaveInstruction(inst SystemInstruction, position int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if position < len(r.instructions) {
		r.instructions[position] = inst
		return nil
	}
	r.instructions = append(r.instructions, inst)
	return nil
}

func (r *MemoryRepository) ActiveID() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID, nil
}

func (r *MemoryRepository) SetActiveID(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = id
	return nil
}

// StoreRepository persists the catalog in the SQLite database.
type StoreRepository struct {
	store *database.Store
}

// NewStoreRepository wraps a database store.
func NewStoreRepository(store *database.Store) *StoreRepository {
	return &StoreRepository{store: store}
}

func (r *StoreRepository) LoadInstructions() ([]SystemInstruction, error) {
	rows, err := r.store.Instructions()
	if err != nil {
		return nil, err
	}
	out := make([]SystemInstruction, len(rows))
	for i, row := range rows {
		out[i] = SystemInstruction{ID: row.ID, Name: row.Name, Content: row.Content}
	}
	return out, nil
}

func (r *StoreRepository) SaveInstruction(inst SystemInstruction, position int) error {
	return r.store.SaveInstruction(database.Instruction{
		ID:       inst.ID,
		Name:     inst.Name,
		Content:  inst.Content,
		Position: position,
	})
}

func (r *StoreRepository) ActiveID() (string, error) {
	id, _, err := r.store.Preference(ActivePreferenceKey)
	return id, err
}

func (r *StoreRepository) SetActiveID(id string) error {
	return r.store.SetPreference(ActivePreferenceKey, id)
}
