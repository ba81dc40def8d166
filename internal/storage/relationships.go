package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// entityTables maps a relationship endpoint kind to the table its ids live
// in. Endpoint existence is checked here rather than by a foreign key, since
// one column cannot reference nine tables.
var entityTables = map[string]string{
	"project":  "projects",
	"session":  "sessions",
	"task":     "tasks",
	"message":  "conversation_messages",
	"decision": "decisions",
	"error":    "error_logs",
	"snapshot": "code_snapshots",
	"context":  "knowledge_contexts",
	"artifact": "artifacts",
}

const relationshipColumns = `id, source_type, source_id, target_type, target_id,
	relationship_type, strength, created_at`

func scanRelationship(row pgx.Row) (Relationship, error) {
	var r Relationship
	err := row.Scan(
		&r.ID, &r.Source.Type, &r.Source.ID, &r.Target.Type, &r.Target.ID,
		&r.RelationshipType, &r.Strength, &r.CreatedAt,
	)
	return r, err
}

func (s *Store) checkEntityExists(ctx context.Context, ref EntityRef) error {
	table, ok := entityTables[ref.Type]
	if !ok {
		return validateEnum("entity type", ref.Type, EntityKinds)
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, ref.ID).Scan(&exists); err != nil {
		return classify("check entity", err)
	}
	if !exists {
		return &NotFoundError{Kind: ref.Type, ID: ref.ID.String()}
	}
	return nil
}

// CreateRelationship links two entities. Both endpoints must exist, the
// strength must lie in [0,1], and an entity may not relate to itself.
func (s *Store) CreateRelationship(ctx context.Context, source, target EntityRef, relationshipType string, strength float64) (Relationship, error) {
	if err := validateRequired("relationship_type", relationshipType); err != nil {
		return Relationship{}, err
	}
	if err := validateStrength(strength); err != nil {
		return Relationship{}, err
	}
	if source.Type == target.Type && source.ID == target.ID {
		return Relationship{}, &ConstraintError{
			Constraint: "relationships_no_self_loop",
			Detail:     "an entity cannot relate to itself",
		}
	}
	if err := s.checkEntityExists(ctx, source); err != nil {
		return Relationship{}, err
	}
	if err := s.checkEntityExists(ctx, target); err != nil {
		return Relationship{}, err
	}

	r, err := scanRelationship(s.pool.QueryRow(ctx, `
		INSERT INTO relationships (source_type, source_id, target_type, target_id, relationship_type, strength)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+relationshipColumns,
		source.Type, source.ID, target.Type, target.ID, relationshipType, strength))
	if err != nil {
		return Relationship{}, classify("create relationship", err)
	}
	return r, nil
}

// RelatedEntities returns every relationship touching the given entity, from
// either side, strongest first.
func (s *Store) RelatedEntities(ctx context.Context, ref EntityRef, limit int) ([]Relationship, error) {
	if err := validateEnum("entity type", ref.Type, EntityKinds); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+relationshipColumns+` FROM relationships
		WHERE (source_type = $1 AND source_id = $2)
		   OR (target_type = $1 AND target_id = $2)
		ORDER BY strength DESC, created_at DESC
		LIMIT $3`, ref.Type, ref.ID, limit)
	if err != nil {
		return nil, classify("related entities", err)
	}
	defer rows.Close()

	var relationships []Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		relationships = append(relationships, r)
	}
	return relationships, rows.Err()
}
