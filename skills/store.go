package skills

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/modelcore/agent/ai"
	"github.com/modelcore/agent/core"
)

const collectionName = "skills"

// defaultPayloadChars is the rune limit on the instructions stored in each
// indexed document, taken from core.DefaultSkillPayloadChars.
const defaultPayloadChars = core.DefaultSkillPayloadChars

// Row is one hit returned by Store.Search.
type Row struct {
	Name         string
	Instructions string
	Distance     float32
}

// Store is a vector-similarity-backed index over Skills, embedded by an
// ai.EmbeddingProvider. A Store with no embedder configured degrades
// gracefully: Search always returns an empty list, and callers are
// expected to fall back to trigger/tag matching (see Injector).
type Store struct {
	mu        sync.RWMutex
	db        *chromem.DB
	collection *chromem.Collection
	embedder  ai.EmbeddingProvider
	dimension int
	logger    core.Logger
}

// NewStore opens an in-memory chromem-go database. embedder may be nil,
// in which case Index and Search are no-ops. dimension defaults to
// core.DefaultEmbeddingDimension when <= 0.
func NewStore(embedder ai.EmbeddingProvider, dimension int, logger core.Logger) *Store {
	if dimension <= 0 {
		dimension = core.DefaultEmbeddingDimension
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Store{
		db:        chromem.NewDB(),
		embedder:  embedder,
		dimension: dimension,
		logger:    logger,
	}
}

// NewPersistentStore opens (or creates) a chromem-go database persisted at
// path, for the skill store's on-disk data/skills.db.
func NewPersistentStore(path string, embedder ai.EmbeddingProvider, dimension int, logger core.Logger) (*Store, error) {
	if dimension <= 0 {
		dimension = core.DefaultEmbeddingDimension
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("skills: opening persistent store at %s: %w", path, err)
	}
	return &Store{db: db, embedder: embedder, dimension: dimension, logger: logger}, nil
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if s.embedder == nil {
			return nil, core.ErrEmbedderUnavailable
		}
		return s.embedder.Embed(ctx, text)
	}
}

// Index replaces the index atomically: drops the collection (if any),
// recreates it, then inserts one document per skill. Skills without an
// embedding (embedder unavailable) are skipped; skills whose embedding
// dimension differs from the store's configured dimension are skipped
// with a warning.
func (s *Store) Index(ctx context.Context, list []Skill) error {
	if s.embedder == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.db.DeleteCollection(collectionName)
	collection, err := s.db.CreateCollection(collectionName, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("skills: creating collection: %w", err)
	}
	s.collection = collection

	var docs []chromem.Document
	for _, sk := range list {
		embedding, err := s.embedder.Embed(ctx, sk.Name+"\n"+sk.Instructions)
		if err != nil {
			s.logger.Warn("skipping skill with unavailable embedding", map[string]interface{}{
				"skill": sk.Name,
				"error": err.Error(),
			})
			continue
		}
		if len(embedding) != s.dimension {
			s.logger.Warn("skipping skill with mismatched embedding dimension", map[string]interface{}{
				"skill":    sk.Name,
				"got":      len(embedding),
				"expected": s.dimension,
			})
			continue
		}

		docs = append(docs, chromem.Document{
			ID:        sk.Name,
			Embedding: embedding,
			Content:   truncatePayload(sk.Instructions),
			Metadata:  map[string]string{"name": sk.Name},
		})
	}

	if len(docs) == 0 {
		return nil
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("skills: indexing skills: %w", err)
	}
	return nil
}

// EnsureIndexed performs a full Index if the store is currently empty and
// an embedder is configured; otherwise it's a no-op.
func (s *Store) EnsureIndexed(ctx context.Context, list []Skill) error {
	if s.embedder == nil {
		return nil
	}
	s.mu.RLock()
	empty := s.collection == nil || s.collection.Count() == 0
	s.mu.RUnlock()
	if !empty {
		return nil
	}
	return s.Index(ctx, list)
}

// Search embeds query and returns the top K rows ordered by ascending
// distance (1 - cosine similarity). Returns an empty list, not an error,
// when no embedder is configured or the store holds nothing yet.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Row, error) {
	if s.embedder == nil || k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	collection := s.collection
	s.mu.RUnlock()
	if collection == nil || collection.Count() == 0 {
		return nil, nil
	}

	n := k
	if count := collection.Count(); n > count {
		n = count
	}

	results, err := collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("skills: searching: %w", err)
	}

	rows := make([]Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, Row{
			Name:         r.ID,
			Instructions: r.Content,
			Distance:     1 - r.Similarity,
		})
	}
	return rows, nil
}

// Close releases the store's resources. Safe to call on a Store backed by
// an in-memory database.
func (s *Store) Close() error {
	return nil
}

func truncatePayload(instructions string) string {
	runes := []rune(instructions)
	if len(runes) <= defaultPayloadChars {
		return instructions
	}
	return strings.TrimSpace(string(runes[:defaultPayloadChars])) + "…"
}
