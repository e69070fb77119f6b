package store

import (
	"context"
	"errors"
	"fmt"

	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/jobs"
)

//go:embed schema.sql
var schema string

// Postgres stores everything in PostgreSQL. Check-then-insert sequences run
// as single ON CONFLICT statements or inside one transaction.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects to databaseURL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, &PersistenceError{Op: "connect", Err: fmt.Errorf("pgxpool.New: %w", err)}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &PersistenceError{Op: "connect", Err: fmt.Errorf("postgres ping failed: %w", err)}
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

// Migrate creates missing tables.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return &PersistenceError{Op: "migrate", Err: err}
	}
	p.logger.Debug("schema applied")
	return nil
}

func (p *Postgres) UpsertJob(ctx context.Context, job *jobs.Posting) error {
	if job == nil || job.ID == "" {
		return &PersistenceError{Op: "upsert job", Err: errors.New("job id is required")}
	}

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var contactID, assignmentID *string

		if job.Submitter != nil {
			id := job.Submitter.ID()
			if _, err := tx.Exec(ctx,
				`INSERT INTO contacts (id, name, phone, email) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (id) DO NOTHING`,
				id, job.Submitter.Name, job.Submitter.Phone, job.Submitter.Email,
			); err != nil {
				return fmt.Errorf("insert contact: %w", err)
			}
			contactID = &id
		}

		if !job.Assignment.IsEmpty() {
			id := job.Assignment.ID()
			if _, err := tx.Exec(ctx,
				`INSERT INTO assignments (id, requirements, preferences, skills) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (id) DO NOTHING`,
				id, job.Assignment.Requirements, job.Assignment.Preferences, job.Assignment.Skills,
			); err != nil {
				return fmt.Errorf("insert assignment: %w", err)
			}
			assignmentID = &id
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO jobs (id, url, position, company, commitment, location, max_hourly_rate,
			                   start_date, end_date, deadline, status, description, contact_id, assignment_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (id) DO UPDATE SET
			   url = EXCLUDED.url,
			   commitment = EXCLUDED.commitment,
			   location = EXCLUDED.location,
			   max_hourly_rate = EXCLUDED.max_hourly_rate,
			   start_date = EXCLUDED.start_date,
			   end_date = EXCLUDED.end_date,
			   deadline = EXCLUDED.deadline,
			   status = EXCLUDED.status,
			   description = EXCLUDED.description,
			   contact_id = EXCLUDED.contact_id,
			   assignment_id = EXCLUDED.assignment_id,
			   updated_at = now()`,
			job.ID, job.URL, job.Position, job.Company, job.Commitment, job.Location, job.MaxHourlyRate,
			job.Start, job.End, job.Deadline, job.Status, job.Description, contactID, assignmentID,
		); err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}

		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "upsert job", Err: err}
	}
	return nil
}

func (p *Postgres) UpsertCandidate(ctx context.Context, c *candidates.Profile) error {
	if c == nil || c.ID == "" {
		return &PersistenceError{Op: "upsert candidate", Err: errors.New("candidate id is required")}
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO candidates (id, name, interests, experience, skills, education, profile, certificates)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   interests = EXCLUDED.interests,
		   experience = EXCLUDED.experience,
		   skills = EXCLUDED.skills,
		   education = EXCLUDED.education,
		   profile = EXCLUDED.profile,
		   certificates = EXCLUDED.certificates`,
		c.ID, c.Name, c.Interests, c.Experience, c.Skills, c.Education, c.Summary, c.Certificates,
	)
	if err != nil {
		return &PersistenceError{Op: "upsert candidate", Err: err}
	}
	return nil
}

func (p *Postgres) EnsureMatch(ctx context.Context, jobID, candidateID string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO job_candidates (job_id, candidate_id) VALUES ($1, $2)
		 ON CONFLICT (job_id, candidate_id) DO NOTHING`,
		jobID, candidateID,
	)
	if err != nil {
		return &PersistenceError{Op: "ensure match", Err: err}
	}
	return nil
}

func (p *Postgres) UpsertMatch(ctx context.Context, jobID, candidateID, motivation string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO job_candidates (job_id, candidate_id, motivation) VALUES ($1, $2, $3)
		 ON CONFLICT (job_id, candidate_id) DO UPDATE SET
		   motivation = EXCLUDED.motivation,
		   updated_at = now()`,
		jobID, candidateID, motivation,
	)
	if err != nil {
		return &PersistenceError{Op: "upsert match", Err: err}
	}
	return nil
}

func (p *Postgres) MatchesForJob(ctx context.Context, jobID string) ([]*candidates.Profile, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT c.id, c.name, c.interests, c.experience, c.skills, c.education, c.profile, c.certificates
		 FROM job_candidates jc
		 JOIN candidates c ON c.id = jc.candidate_id
		 WHERE jc.job_id = $1
		 ORDER BY jc.created_at, c.name`,
		jobID,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "matches for job", Err: err}
	}
	defer rows.Close()

	result := make([]*candidates.Profile, 0)
	for rows.Next() {
		var c candidates.Profile
		if err := rows.Scan(&c.ID, &c.Name, &c.Interests, &c.Experience, &c.Skills, &c.Education, &c.Summary, &c.Certificates); err != nil {
			return nil, &PersistenceError{Op: "matches for job", Err: err}
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "matches for job", Err: err}
	}
	return result, nil
}

func (p *Postgres) Motivation(ctx context.Context, jobID, candidateID string) (string, bool, error) {
	var motivation string
	err := p.pool.QueryRow(ctx,
		`SELECT motivation FROM job_candidates WHERE job_id = $1 AND candidate_id = $2`,
		jobID, candidateID,
	).Scan(&motivation)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &PersistenceError{Op: "motivation", Err: err}
	}
	return motivation, true, nil
}

const selectJob = `
	SELECT j.id, j.url, j.position, j.company, j.commitment, j.location, j.max_hourly_rate,
	       j.start_date, j.end_date, j.deadline, j.status, j.description,
	       c.name, c.phone, c.email,
	       a.requirements, a.preferences, a.skills
	FROM jobs j
	LEFT JOIN contacts c ON c.id = j.contact_id
	LEFT JOIN assignments a ON a.id = j.assignment_id`

func (p *Postgres) Job(ctx context.Context, id string) (*jobs.Posting, bool, error) {
	rows, err := p.pool.Query(ctx, selectJob+` WHERE j.id = $1`, id)
	if err != nil {
		return nil, false, &PersistenceError{Op: "job", Err: err}
	}

	found, err := scanJobs(rows)
	if err != nil {
		return nil, false, &PersistenceError{Op: "job", Err: err}
	}
	if len(found) == 0 {
		return nil, false, nil
	}
	return found[0], true, nil
}

func (p *Postgres) ListJobs(ctx context.Context) ([]*jobs.Posting, error) {
	rows, err := p.pool.Query(ctx, selectJob+` ORDER BY j.company, j.created_at`)
	if err != nil {
		return nil, &PersistenceError{Op: "list jobs", Err: err}
	}

	found, err := scanJobs(rows)
	if err != nil {
		return nil, &PersistenceError{Op: "list jobs", Err: err}
	}
	return found, nil
}

func scanJobs(rows pgx.Rows) ([]*jobs.Posting, error) {
	defer rows.Close()

	result := make([]*jobs.Posting, 0)
	for rows.Next() {
		var (
			j                               jobs.Posting
			contactName, phone, email       *string
			requirements, preferences, skls *string
		)
		if err := rows.Scan(
			&j.ID, &j.URL, &j.Position, &j.Company, &j.Commitment, &j.Location, &j.MaxHourlyRate,
			&j.Start, &j.End, &j.Deadline, &j.Status, &j.Description,
			&contactName, &phone, &email,
			&requirements, &preferences, &skls,
		); err != nil {
			return nil, err
		}

		if contactName != nil {
			j.Submitter = &jobs.Contact{Name: *contactName, Phone: deref(phone), Email: deref(email)}
		}
		j.Assignment = jobs.Assignment{
			Requirements: deref(requirements),
			Preferences:  deref(preferences),
			Skills:       deref(skls),
		}
		result = append(result, &j)
	}
	return result, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
