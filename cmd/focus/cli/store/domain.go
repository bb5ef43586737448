package store

// Read-only access to the Focus workspace tables. These tables belong to
// the companion app; focus never writes or migrates them.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ActiveProjects returns all active projects, used by the classifier and
// the entity extractor.
func (s *Store) ActiveProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, status FROM projects WHERE status = 'active'`,
	)
	if err != nil {
		return nil, fmt.Errorf("active projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Status); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ActiveProjectBySlug looks up an active project by slug.
// Returns ErrNotFound if no active project has that slug.
func (s *Store) ActiveProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, status FROM projects WHERE slug = $1 AND status = 'active'`,
		slug,
	).Scan(&p.ID, &p.Name, &p.Slug, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project by slug: %w", err)
	}
	return &p, nil
}

// ProjectIDsBySlugs resolves project slugs to IDs. Unknown slugs are
// silently dropped.
func (s *Store) ProjectIDsBySlugs(ctx context.Context, slugs []string) ([]uuid.UUID, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM projects WHERE slug = ANY($1)`,
		pq.Array(slugs),
	)
	if err != nil {
		return nil, fmt.Errorf("project ids by slugs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// People returns all known people for entity matching.
func (s *Store) People(ctx context.Context) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, organization, relationship_type FROM people WHERE name IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("people: %w", err)
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

// PersonByNameLike finds the first person whose name contains the given
// fragment (case-insensitive). Returns ErrNotFound when nobody matches.
func (s *Store) PersonByNameLike(ctx context.Context, name string) (*Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, organization, relationship_type FROM people
		 WHERE name ILIKE $1 LIMIT 1`,
		"%"+name+"%",
	)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("person by name: %w", err)
	}
	return p, nil
}

// ActiveTasks returns a project's open tasks ordered by status then priority.
func (s *Store) ActiveTasks(ctx context.Context, projectID uuid.UUID, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, status, priority, due_date FROM tasks
		WHERE project_id = $1 AND status IN ('in_progress', 'waiting', 'backlog')
		ORDER BY status, priority
		LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("active tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var dueDate sql.NullTime
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.Priority, &dueDate); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if dueDate.Valid {
			t.DueDate = &dueDate.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// OpenCommitments returns open commitments ordered by nearest deadline,
// optionally scoped to a project.
func (s *Store) OpenCommitments(ctx context.Context, projectID *uuid.UUID, limit int) ([]Commitment, error) {
	if limit <= 0 {
		limit = 3
	}

	query := `
		SELECT c.id, c.direction, c.description, c.deadline, p.name
		FROM commitments c
		LEFT JOIN people p ON p.id = c.person_id
		WHERE c.status = 'open'`
	order := ` ORDER BY c.deadline ASC NULLS LAST LIMIT `

	var rows *sql.Rows
	var err error
	if projectID != nil {
		rows, err = s.db.QueryContext(ctx, query+` AND c.project_id = $1`+order+`$2`, *projectID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query+order+`$1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("open commitments: %w", err)
	}
	defer rows.Close()

	var commitments []Commitment
	for rows.Next() {
		var c Commitment
		var deadline sql.NullTime
		var personName sql.NullString
		if err := rows.Scan(&c.ID, &c.Direction, &c.Description, &deadline, &personName); err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		if deadline.Valid {
			c.Deadline = &deadline.Time
		}
		if personName.Valid {
			c.PersonName = &personName.String
		}
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}

// ActiveSprints returns sprints that are active and not yet ended.
func (s *Store) ActiveSprints(ctx context.Context, limit int) ([]Sprint, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.ends_at, p.name
		FROM sprints s
		LEFT JOIN projects p ON p.id = s.project_id
		WHERE s.is_active AND s.ends_at > now()
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("active sprints: %w", err)
	}
	defer rows.Close()

	var sprints []Sprint
	for rows.Next() {
		var sp Sprint
		var projectName sql.NullString
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.EndsAt, &projectName); err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		if projectName.Valid {
			sp.ProjectName = &projectName.String
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

func scanPerson(row scanner) (*Person, error) {
	var p Person
	var organization, relationship sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &organization, &relationship); err != nil {
		return nil, err
	}
	if organization.Valid {
		p.Organization = &organization.String
	}
	if relationship.Valid {
		p.Relationship = &relationship.String
	}
	return &p, nil
}
