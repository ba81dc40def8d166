package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const knowledgeColumns = `id, title, content, knowledge_type, is_global,
	importance, tags, project_id, valid_until, access_count, last_accessed_at,
	created_at`

func scanKnowledge(row pgx.Row) (Knowledge, error) {
	var k Knowledge
	err := row.Scan(
		&k.ID, &k.Title, &k.Content, &k.KnowledgeType, &k.IsGlobal,
		&k.Importance, &k.Tags, &k.ProjectID, &k.ValidUntil,
		&k.AccessCount, &k.LastAccessedAt, &k.CreatedAt,
	)
	return k, err
}

// SaveKnowledgeParams stores one titled fact. Embedding is optional; entries
// without one are invisible to vector search but still reachable by tags and
// text.
type SaveKnowledgeParams struct {
	Title         string
	Content       string
	KnowledgeType string
	IsGlobal      bool
	Importance    string
	Tags          []string
	ProjectID     *uuid.UUID
	ValidUntil    *time.Time
	Embedding     []float32
}

func (s *Store) SaveKnowledge(ctx context.Context, in SaveKnowledgeParams) (Knowledge, error) {
	if err := validateRequired("title", in.Title); err != nil {
		return Knowledge{}, err
	}
	if err := validateRequired("content", in.Content); err != nil {
		return Knowledge{}, err
	}
	if in.Importance == "" {
		in.Importance = "medium"
	}
	if err := validateEnum("importance", in.Importance, Priorities); err != nil {
		return Knowledge{}, err
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	var embedding any
	if in.Embedding != nil {
		embedding = pgvector.NewVector(in.Embedding)
	}

	k, err := scanKnowledge(s.pool.QueryRow(ctx, `
		INSERT INTO knowledge_contexts (title, content, knowledge_type, is_global, importance, tags, project_id, valid_until, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+knowledgeColumns,
		in.Title, in.Content, in.KnowledgeType, in.IsGlobal, in.Importance,
		in.Tags, in.ProjectID, in.ValidUntil, embedding))
	if err != nil {
		return Knowledge{}, classify("save knowledge", err)
	}
	return k, nil
}

// TouchKnowledge records one read: bumps access_count and stamps
// last_accessed_at.
func (s *Store) TouchKnowledge(ctx context.Context, id uuid.UUID) (Knowledge, error) {
	k, err := scanKnowledge(s.pool.QueryRow(ctx, `
		UPDATE knowledge_contexts
		SET access_count = access_count + 1, last_accessed_at = now()
		WHERE id = $1
		RETURNING `+knowledgeColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Knowledge{}, &NotFoundError{Kind: "context", ID: id.String()}
		}
		return Knowledge{}, classify("touch knowledge", err)
	}
	return k, nil
}

// SearchKnowledgeParams narrows a text/tag knowledge search. Expired entries
// (valid_until in the past) are always excluded; global entries match any
// project scope.
type SearchKnowledgeParams struct {
	Query         string
	KnowledgeType string
	Tags          []string
	ProjectID     *uuid.UUID
	Limit         int
}

func (s *Store) SearchKnowledge(ctx context.Context, in SearchKnowledgeParams) ([]Knowledge, error) {
	if in.Limit <= 0 {
		in.Limit = 20
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+knowledgeColumns+` FROM knowledge_contexts
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR knowledge_type = $2)
		  AND (cardinality($3::text[]) = 0 OR tags @> $3)
		  AND ($4::uuid IS NULL OR is_global OR project_id = $4)
		  AND (valid_until IS NULL OR valid_until > now())
		ORDER BY
		  CASE importance
		    WHEN 'critical' THEN 4
		    WHEN 'high' THEN 3
		    WHEN 'medium' THEN 2
		    ELSE 1
		  END DESC,
		  created_at DESC
		LIMIT $5`,
		in.Query, in.KnowledgeType, in.Tags, in.ProjectID, in.Limit)
	if err != nil {
		return nil, classify("search knowledge", err)
	}
	defer rows.Close()

	var entries []Knowledge
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, k)
	}
	return entries, rows.Err()
}

// SearchKnowledgeByVector ranks knowledge by cosine similarity against the
// query embedding, with the same expiry and scope rules as SearchKnowledge.
func (s *Store) SearchKnowledgeByVector(ctx context.Context, embedding []float32, projectID *uuid.UUID, limit int) ([]ScoredKnowledge, error) {
	if len(embedding) == 0 {
		return nil, &ValidationError{Field: "embedding", Reason: "must not be empty"}
	}
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, `
		SELECT `+knowledgeColumns+`, 1 - (embedding <=> $1) AS score
		FROM knowledge_contexts
		WHERE embedding IS NOT NULL
		  AND ($2::uuid IS NULL OR is_global OR project_id = $2)
		  AND (valid_until IS NULL OR valid_until > now())
		ORDER BY embedding <=> $1
		LIMIT $3`, vec, projectID, limit)
	if err != nil {
		return nil, classify("search knowledge by vector", err)
	}
	defer rows.Close()

	var results []ScoredKnowledge
	for rows.Next() {
		var k ScoredKnowledge
		if err := rows.Scan(
			&k.ID, &k.Title, &k.Content, &k.KnowledgeType, &k.IsGlobal,
			&k.Importance, &k.Tags, &k.ProjectID, &k.ValidUntil,
			&k.AccessCount, &k.LastAccessedAt, &k.CreatedAt, &k.Score,
		); err != nil {
			return nil, err
		}
		results = append(results, k)
	}
	return results, rows.Err()
}
