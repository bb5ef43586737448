package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const generatedSkillColumns = `id, name, description, source, source_session_id, source_repo, installed_path, scope, quality_score, skill_content_hash, is_active, created_at, updated_at`

// InsertGeneratedSkill records an installed skill for dedup tracking.
func (s *Store) InsertGeneratedSkill(ctx context.Context, skill *GeneratedSkill) error {
	skill.ID = newID()
	skill.IsActive = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generated_skills (id, name, description, source, source_session_id, source_repo, installed_path, scope, quality_score, skill_content_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)`,
		skill.ID, skill.Name, skill.Description, skill.Source,
		skill.SourceSessionID, skill.SourceRepo, skill.InstalledPath,
		skill.Scope, skill.QualityScore, skill.SkillContentHash,
	)
	if err != nil {
		return fmt.Errorf("insert generated skill: %w", err)
	}
	return nil
}

// CountTodaysAutoSkills counts auto-generated skill records created today
// (UTC). Used to enforce the daily generation cap.
func (s *Store) CountTodaysAutoSkills(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM generated_skills
		WHERE source = 'auto' AND created_at >= date_trunc('day', now() AT TIME ZONE 'utc')`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count todays auto skills: %w", err)
	}
	return count, nil
}

// HasActiveSkillWithHash reports whether an active skill record exists
// with the given content hash. The hash is the MD5 of the skill's
// normalized description, so this catches near-duplicate skills.
func (s *Store) HasActiveSkillWithHash(ctx context.Context, contentHash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM generated_skills
		WHERE skill_content_hash = $1 AND is_active`,
		contentHash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("skill hash lookup: %w", err)
	}
	return count > 0, nil
}

// ListGeneratedSkills returns skill records, most recent first.
func (s *Store) ListGeneratedSkills(ctx context.Context, limit int) ([]GeneratedSkill, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+generatedSkillColumns+` FROM generated_skills
		 ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list generated skills: %w", err)
	}
	defer rows.Close()

	var skills []GeneratedSkill
	for rows.Next() {
		var g GeneratedSkill
		var sourceSessionID, sourceRepo sql.NullString
		var qualityScore sql.NullFloat64
		err := rows.Scan(
			&g.ID, &g.Name, &g.Description, &g.Source,
			&sourceSessionID, &sourceRepo, &g.InstalledPath, &g.Scope,
			&qualityScore, &g.SkillContentHash, &g.IsActive,
			&g.CreatedAt, &g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan generated skill: %w", err)
		}
		if sourceSessionID.Valid {
			g.SourceSessionID = &sourceSessionID.String
		}
		if sourceRepo.Valid {
			g.SourceRepo = &sourceRepo.String
		}
		if qualityScore.Valid {
			g.QualityScore = &qualityScore.Float64
		}
		skills = append(skills, g)
	}
	return skills, rows.Err()
}

// marshalMetadata encodes artifact metadata as JSONB, mapping an empty
// map to the empty object rather than null.
func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return data, nil
}
