package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const artifactColumns = `id, name, artifact_type, content, file_path,
	parent_artifact_id, project_id, session_id, created_at`

func scanArtifact(row pgx.Row) (Artifact, error) {
	var a Artifact
	err := row.Scan(
		&a.ID, &a.Name, &a.ArtifactType, &a.Content, &a.FilePath,
		&a.ParentArtifactID, &a.ProjectID, &a.SessionID, &a.CreatedAt,
	)
	return a, err
}

// SaveArtifactParams stores one artifact version. ParentArtifactID links a
// new version to the one it supersedes.
type SaveArtifactParams struct {
	Name             string
	ArtifactType     string
	Content          string
	FilePath         string
	ParentArtifactID *uuid.UUID
	ProjectID        *uuid.UUID
	SessionID        *uuid.UUID
}

func (s *Store) SaveArtifact(ctx context.Context, in SaveArtifactParams) (Artifact, error) {
	if err := validateRequired("name", in.Name); err != nil {
		return Artifact{}, err
	}

	a, err := scanArtifact(s.pool.QueryRow(ctx, `
		INSERT INTO artifacts (name, artifact_type, content, file_path, parent_artifact_id, project_id, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+artifactColumns,
		in.Name, in.ArtifactType, in.Content, in.FilePath,
		in.ParentArtifactID, in.ProjectID, in.SessionID))
	if err != nil {
		return Artifact{}, classify("save artifact", err)
	}
	return a, nil
}

func (s *Store) GetArtifact(ctx context.Context, id uuid.UUID) (Artifact, error) {
	a, err := scanArtifact(s.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Artifact{}, &NotFoundError{Kind: "artifact", ID: id.String()}
		}
		return Artifact{}, classify("get artifact", err)
	}
	return a, nil
}

// ArtifactVersions walks the parent chain from the given artifact back to
// the root and returns the lineage newest first, starting with the given
// artifact itself.
func (s *Store) ArtifactVersions(ctx context.Context, id uuid.UUID) ([]Artifact, error) {
	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE lineage AS (
			SELECT `+artifactColumns+`, 0 AS depth
			FROM artifacts WHERE id = $1
			UNION ALL
			SELECT a.id, a.name, a.artifact_type, a.content, a.file_path,
			       a.parent_artifact_id, a.project_id, a.session_id, a.created_at,
			       l.depth + 1
			FROM artifacts a
			JOIN lineage l ON a.id = l.parent_artifact_id
		)
		SELECT `+artifactColumns+` FROM lineage ORDER BY depth ASC`, id)
	if err != nil {
		return nil, classify("artifact versions", err)
	}
	defer rows.Close()

	var versions []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, &NotFoundError{Kind: "artifact", ID: id.String()}
	}
	return versions, nil
}

// ListArtifacts returns artifacts newest first, optionally filtered by name
// or project.
func (s *Store) ListArtifacts(ctx context.Context, name string, projectID *uuid.UUID, limit int) ([]Artifact, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+artifactColumns+` FROM artifacts
		WHERE ($1 = '' OR name = $1)
		  AND ($2::uuid IS NULL OR project_id = $2)
		ORDER BY created_at DESC
		LIMIT $3`, name, projectID, limit)
	if err != nil {
		return nil, classify("list artifacts", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
