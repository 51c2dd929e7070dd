package classify

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/xhad/foiabias/pkg/logger"
)

type ExemplarConfig struct {
	ConnString string
	TableName  string
	// EmbeddingModel and EmbeddingBaseURL configure the local embedder.
	EmbeddingModel   string
	EmbeddingBaseURL string
	VectorDim        int
	// K is how many neighbours vote on a document.
	K int
	// MaxChars bounds the text embedded per document.
	MaxChars int
}

// ExemplarStore keeps labeled example embeddings in a pgvector table and
// answers "is this text political?" by a nearest-neighbour majority vote. It
// backs the cascade's optional embedding tier.
type ExemplarStore struct {
	config   ExemplarConfig
	pool     *pgxpool.Pool
	embedder *ollama.LLM
	logger   *log.Logger
}

func NewExemplarStore(config ExemplarConfig) (*ExemplarStore, error) {
	if config.TableName == "" {
		config.TableName = "prefilter_exemplars"
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.EmbeddingBaseURL == "" {
		config.EmbeddingBaseURL = "http://localhost:11434"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.K == 0 {
		config.K = 5
	}
	if config.MaxChars == 0 {
		config.MaxChars = 2000
	}

	embedder, err := ollama.New(
		ollama.WithModel(config.EmbeddingModel),
		ollama.WithServerURL(config.EmbeddingBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &ExemplarStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
		logger:   logger.New("Exemplars"),
	}
	if err := s.initialize(); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *ExemplarStore) initialize() error {
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			political BOOLEAN NOT NULL,
			content TEXT,
			embedding vector(%d)
		)`, s.config.TableName, s.config.VectorDim)
	_, err = s.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		s.config.TableName, s.config.TableName)
	_, err = s.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}
	return nil
}

// Seed inserts labeled exemplar texts, embedding each one.
func (s *ExemplarStore) Seed(ctx context.Context, ids []string, texts []string, political []bool) error {
	if len(ids) != len(texts) || len(texts) != len(political) {
		return fmt.Errorf("seed inputs must have equal lengths")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, political, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			political = EXCLUDED.political,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		s.config.TableName)

	for i := range ids {
		vec, err := s.embed(ctx, texts[i])
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, stmt, ids[i], political[i], Truncate(texts[i], s.config.MaxChars), pgvector.NewVector(vec))
		if err != nil {
			return fmt.Errorf("failed to insert exemplar %s: %v", ids[i], err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// Fitted reports whether any exemplars exist to vote with.
func (s *ExemplarStore) Fitted(ctx context.Context) bool {
	var count int
	query := fmt.Sprintf("SELECT count(*) FROM %s", s.config.TableName)
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		s.logger.Printf("exemplar count failed: %v", err)
		return false
	}
	return count > 0
}

// Vote embeds the text and returns true when the majority of its nearest
// exemplars are political.
func (s *ExemplarStore) Vote(ctx context.Context, text string) (bool, error) {
	vec, err := s.embed(ctx, text)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		SELECT political
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		s.config.TableName)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vec), s.config.K)
	if err != nil {
		return false, fmt.Errorf("failed to query exemplars: %v", err)
	}
	defer rows.Close()

	votes, political := 0, 0
	for rows.Next() {
		var hit bool
		if err := rows.Scan(&hit); err != nil {
			return false, fmt.Errorf("failed to scan row: %v", err)
		}
		votes++
		if hit {
			political++
		}
	}
	if votes == 0 {
		return false, nil
	}
	return political*2 > votes, nil
}

func (s *ExemplarStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *ExemplarStore) embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.embedder.CreateEmbedding(ctx, []string{Truncate(text, s.config.MaxChars)})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %v", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return embeddings[0], nil
}
