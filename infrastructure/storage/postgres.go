// Package storage implements the ContestStore port on PostgreSQL using
// pgx. Failures are translated into the domain error taxonomy here: rows
// that do not exist become ErrNotFound, unique violations become
// ErrDuplicateEntry, and everything else is wrapped into
// ErrStorageUnavailable. No pgx error ever escapes this package.
package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arenaops/go-arena/internal/domain"
	"github.com/arenaops/go-arena/internal/ports"
)

var _ ports.ContestStore = (*Postgres)(nil)

// uniqueViolation is the SQLSTATE for duplicate keys. Collisions are
// decided by this code, never by matching error text.
const uniqueViolation = "23505"

// Postgres is the pgx-backed ContestStore.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to the given DSN and verifies it with a
// ping.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, domain.NewStorageError("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, domain.NewStorageError("ping", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() { p.pool.Close() }

// mapError translates a pgx failure into the domain taxonomy.
func mapError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateEntry
	}
	return domain.NewStorageError(operation, err)
}

const contestColumns = `id, alias, title, description, start_time, finish_time,
	window_length_seconds, public, contestant_must_register, scoreboard_percentage,
	show_scoreboard_after, partial_score, penalty_policy, penalty_basis,
	scoreboard_token, scoreboard_admin_token, recommended, languages`

func scanContest(row pgx.Row) (*domain.Contest, error) {
	var (
		c             domain.Contest
		windowSeconds *int64
		policy, basis string
	)
	err := row.Scan(&c.ID, &c.Alias, &c.Title, &c.Description, &c.StartTime, &c.FinishTime,
		&windowSeconds, &c.Public, &c.ContestantMustRegister, &c.ScoreboardPercentage,
		&c.ShowScoreboardAfter, &c.PartialScore, &policy, &basis,
		&c.ScoreboardToken, &c.ScoreboardAdminToken, &c.Recommended, &c.Languages)
	if err != nil {
		return nil, err
	}
	if windowSeconds != nil {
		w := secondsToDuration(*windowSeconds)
		c.WindowLength = &w
	}
	c.PenaltyPolicy = domain.PenaltyPolicy(policy)
	c.PenaltyBasis = domain.PenaltyBasis(basis)
	return &c, nil
}

// GetContestByAlias implements ports.ContestStore.
func (p *Postgres) GetContestByAlias(ctx context.Context, alias string) (*domain.Contest, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+contestColumns+` FROM contests WHERE alias = $1`, alias)
	contest, err := scanContest(row)
	if err != nil {
		return nil, mapError("get_contest", err)
	}
	return contest, nil
}

// CreateContest implements ports.ContestStore.
func (p *Postgres) CreateContest(ctx context.Context, c *domain.Contest) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO contests (alias, title, description, start_time, finish_time,
			window_length_seconds, public, contestant_must_register, scoreboard_percentage,
			show_scoreboard_after, partial_score, penalty_policy, penalty_basis,
			scoreboard_token, scoreboard_admin_token, recommended, languages)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id`,
		c.Alias, c.Title, c.Description, c.StartTime, c.FinishTime,
		windowSeconds(c.WindowLength), c.Public, c.ContestantMustRegister, c.ScoreboardPercentage,
		c.ShowScoreboardAfter, c.PartialScore, string(c.PenaltyPolicy), string(c.PenaltyBasis),
		c.ScoreboardToken, c.ScoreboardAdminToken, c.Recommended, c.Languages,
	).Scan(&c.ID)
	if err != nil {
		return mapError("create_contest", err)
	}
	return nil
}

// UpdateContest implements ports.ContestStore.
func (p *Postgres) UpdateContest(ctx context.Context, c *domain.Contest) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE contests SET title=$2, description=$3, start_time=$4, finish_time=$5,
			window_length_seconds=$6, public=$7, contestant_must_register=$8,
			scoreboard_percentage=$9, show_scoreboard_after=$10, partial_score=$11,
			penalty_policy=$12, penalty_basis=$13, recommended=$14, languages=$15
		WHERE id = $1`,
		c.ID, c.Title, c.Description, c.StartTime, c.FinishTime,
		windowSeconds(c.WindowLength), c.Public, c.ContestantMustRegister,
		c.ScoreboardPercentage, c.ShowScoreboardAfter, c.PartialScore,
		string(c.PenaltyPolicy), string(c.PenaltyBasis), c.Recommended, c.Languages)
	if err != nil {
		return mapError("update_contest", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListContests implements ports.ContestStore. System admins see every
// contest; authenticated users additionally see private contests they are
// granted or administer; everyone sees public contests.
func (p *Postgres) ListContests(ctx context.Context, principal domain.Principal) ([]domain.Contest, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case principal.SystemAdmin:
		rows, err = p.pool.Query(ctx, `SELECT `+contestColumns+` FROM contests ORDER BY start_time DESC`)
	case principal.Anonymous():
		rows, err = p.pool.Query(ctx, `SELECT `+contestColumns+` FROM contests WHERE public ORDER BY start_time DESC`)
	default:
		rows, err = p.pool.Query(ctx, `
			SELECT `+contestColumns+` FROM contests c
			WHERE c.public
			   OR EXISTS (SELECT 1 FROM contest_users u WHERE u.contest_id = c.id AND u.user_id = $1)
			   OR EXISTS (SELECT 1 FROM contest_admins a WHERE a.contest_id = c.id AND a.user_id = $1)
			ORDER BY c.start_time DESC`, principal.UserID)
	}
	if err != nil {
		return nil, mapError("list_contests", err)
	}
	defer rows.Close()

	var contests []domain.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, mapError("list_contests", err)
		}
		contests = append(contests, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list_contests", err)
	}
	return contests, nil
}

// GetProblems implements ports.ContestStore.
func (p *Postgres) GetProblems(ctx context.Context, contestID int64) ([]domain.ContestProblem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT problem_id, alias, points, display_order
		FROM contest_problems WHERE contest_id = $1 ORDER BY display_order`, contestID)
	if err != nil {
		return nil, mapError("get_problems", err)
	}
	defer rows.Close()

	var problems []domain.ContestProblem
	for rows.Next() {
		var cp domain.ContestProblem
		if err := rows.Scan(&cp.ProblemID, &cp.Alias, &cp.Points, &cp.Order); err != nil {
			return nil, mapError("get_problems", err)
		}
		problems = append(problems, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("get_problems", err)
	}
	return problems, nil
}

// AddProblem implements ports.ContestStore.
func (p *Postgres) AddProblem(ctx context.Context, contestID int64, problem domain.ContestProblem) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO contest_problems (contest_id, problem_id, alias, points, display_order)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (contest_id, problem_id)
		DO UPDATE SET points = EXCLUDED.points, display_order = EXCLUDED.display_order`,
		contestID, problem.ProblemID, problem.Alias, problem.Points, problem.Order)
	if err != nil {
		return mapError("add_problem", err)
	}
	return nil
}

// RemoveProblem implements ports.ContestStore.
func (p *Postgres) RemoveProblem(ctx context.Context, contestID, problemID int64) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM contest_problems WHERE contest_id = $1 AND problem_id = $2`, contestID, problemID)
	if err != nil {
		return mapError("remove_problem", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetSubmissions implements ports.ContestStore.
func (p *Postgres) GetSubmissions(ctx context.Context, contestID int64) ([]domain.SubmissionRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT s.contest_id, s.problem_alias, s.username, s.submitted_at,
		       s.verdict, s.score, s.contest_score, s.runtime_ms
		FROM submissions s WHERE s.contest_id = $1 ORDER BY s.submitted_at`, contestID)
	if err != nil {
		return nil, mapError("get_submissions", err)
	}
	defer rows.Close()

	var submissions []domain.SubmissionRecord
	for rows.Next() {
		var (
			sub       domain.SubmissionRecord
			runtimeMS int64
		)
		if err := rows.Scan(&sub.ContestID, &sub.ProblemAlias, &sub.Username, &sub.Time,
			&sub.Verdict, &sub.Score, &sub.ContestScore, &runtimeMS); err != nil {
			return nil, mapError("get_submissions", err)
		}
		sub.Runtime = millisToDuration(runtimeMS)
		submissions = append(submissions, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("get_submissions", err)
	}
	return submissions, nil
}

// CountSubmissions implements ports.ContestStore.
func (p *Postgres) CountSubmissions(ctx context.Context, contestID int64) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE contest_id = $1`, contestID).Scan(&count)
	if err != nil {
		return 0, mapError("count_submissions", err)
	}
	return count, nil
}

// GetParticipation implements ports.ContestStore.
func (p *Postgres) GetParticipation(ctx context.Context, contestID, userID int64) (*domain.Participation, error) {
	part, err := p.scanParticipation(p.pool.QueryRow(ctx, `
		SELECT cu.contest_id, cu.user_id, u.username, cu.first_access_time, cu.score, cu.penalty
		FROM contest_users cu JOIN users u ON u.id = cu.user_id
		WHERE cu.contest_id = $1 AND cu.user_id = $2`, contestID, userID))
	if err != nil {
		return nil, mapError("get_participation", err)
	}
	return part, nil
}

// ListParticipations implements ports.ContestStore.
func (p *Postgres) ListParticipations(ctx context.Context, contestID int64) ([]domain.Participation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT cu.contest_id, cu.user_id, u.username, cu.first_access_time, cu.score, cu.penalty
		FROM contest_users cu JOIN users u ON u.id = cu.user_id
		WHERE cu.contest_id = $1`, contestID)
	if err != nil {
		return nil, mapError("list_participations", err)
	}
	defer rows.Close()

	var participations []domain.Participation
	for rows.Next() {
		part, err := p.scanParticipation(rows)
		if err != nil {
			return nil, mapError("list_participations", err)
		}
		participations = append(participations, *part)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list_participations", err)
	}
	return participations, nil
}

// RecordFirstAccess implements ports.ContestStore. The COALESCE keeps an
// already-stamped first access untouched, making the write idempotent and
// race-free: exactly one writer wins and every caller reads the winning
// value back in the same statement.
func (p *Postgres) RecordFirstAccess(ctx context.Context, contestID, userID int64) (*domain.Participation, error) {
	part, err := p.scanParticipation(p.pool.QueryRow(ctx, `
		WITH upserted AS (
			INSERT INTO contest_users (contest_id, user_id, first_access_time, score, penalty)
			VALUES ($1, $2, now(), 0, 0)
			ON CONFLICT (contest_id, user_id)
			DO UPDATE SET first_access_time = COALESCE(contest_users.first_access_time, now())
			RETURNING contest_id, user_id, first_access_time, score, penalty
		)
		SELECT up.contest_id, up.user_id, u.username, up.first_access_time, up.score, up.penalty
		FROM upserted up JOIN users u ON u.id = up.user_id`, contestID, userID))
	if err != nil {
		return nil, mapError("record_first_access", err)
	}
	return part, nil
}

// UpdateParticipationTotals implements ports.ContestStore.
func (p *Postgres) UpdateParticipationTotals(ctx context.Context, contestID, userID int64, score, penalty float64) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE contest_users SET score = $3, penalty = $4
		WHERE contest_id = $1 AND user_id = $2`, contestID, userID, score, penalty)
	if err != nil {
		return mapError("update_participation_totals", err)
	}
	return nil
}

// HasExplicitGrant implements ports.ContestStore.
func (p *Postgres) HasExplicitGrant(ctx context.Context, contestID, userID int64) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM contest_users WHERE contest_id = $1 AND user_id = $2)`,
		contestID, userID).Scan(&exists)
	if err != nil {
		return false, mapError("has_explicit_grant", err)
	}
	return exists, nil
}

// IsContestAdmin implements ports.ContestStore.
func (p *Postgres) IsContestAdmin(ctx context.Context, contestID, userID int64) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM contest_admins WHERE contest_id = $1 AND user_id = $2)`,
		contestID, userID).Scan(&exists)
	if err != nil {
		return false, mapError("is_contest_admin", err)
	}
	return exists, nil
}

// GetRegistration implements ports.ContestStore.
func (p *Postgres) GetRegistration(ctx context.Context, contestID, userID int64) (*domain.RegistrationRequest, error) {
	var (
		req       domain.RegistrationRequest
		state     string
		decidedBy *int64
		note      *string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT contest_id, user_id, requested_at, state, decided_by, note
		FROM registration_requests WHERE contest_id = $1 AND user_id = $2`,
		contestID, userID).Scan(&req.ContestID, &req.UserID, &req.RequestedAt, &state, &decidedBy, &note)
	if err != nil {
		return nil, mapError("get_registration", err)
	}
	req.State = domain.RegistrationState(state)
	if decidedBy != nil {
		req.DecidedBy = *decidedBy
	}
	if note != nil {
		req.Note = *note
	}
	return &req, nil
}

// CreateRegistration implements ports.ContestStore.
func (p *Postgres) CreateRegistration(ctx context.Context, req *domain.RegistrationRequest) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO registration_requests (contest_id, user_id, requested_at, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contest_id, user_id)
		DO UPDATE SET requested_at = EXCLUDED.requested_at, state = EXCLUDED.state,
			decided_by = NULL, note = NULL`,
		req.ContestID, req.UserID, req.RequestedAt, string(req.State))
	if err != nil {
		return mapError("create_registration", err)
	}
	return nil
}

// SaveRegistrationDecision implements ports.ContestStore. The active
// request is updated and the decision appended to the immutable history in
// one transaction.
func (p *Postgres) SaveRegistrationDecision(ctx context.Context, decision *domain.RegistrationDecision) error {
	state := string(domain.RegistrationRejected)
	if decision.Accepted {
		state = string(domain.RegistrationAccepted)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return mapError("save_registration_decision", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE registration_requests SET state = $3, decided_by = $4, note = $5
		WHERE contest_id = $1 AND user_id = $2`,
		decision.ContestID, decision.UserID, state, decision.AdminID, decision.Note)
	if err != nil {
		return mapError("save_registration_decision", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO registration_decisions (contest_id, user_id, admin_id, accepted, note, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		decision.ContestID, decision.UserID, decision.AdminID, decision.Accepted, decision.Note, decision.Time)
	if err != nil {
		return mapError("save_registration_decision", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("save_registration_decision", err)
	}
	return nil
}

// ListAccessLog implements ports.ContestStore.
func (p *Postgres) ListAccessLog(ctx context.Context, contestID int64) ([]domain.AccessEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT username, event_time, ip FROM access_log
		WHERE contest_id = $1 ORDER BY event_time`, contestID)
	if err != nil {
		return nil, mapError("list_access_log", err)
	}
	defer rows.Close()

	var events []domain.AccessEvent
	for rows.Next() {
		var ev domain.AccessEvent
		if err := rows.Scan(&ev.Username, &ev.Time, &ev.IP); err != nil {
			return nil, mapError("list_access_log", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list_access_log", err)
	}
	return events, nil
}

// ListSubmissionLog implements ports.ContestStore.
func (p *Postgres) ListSubmissionLog(ctx context.Context, contestID int64) ([]domain.SubmissionEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT username, event_time, ip, problem_alias FROM submission_log
		WHERE contest_id = $1 ORDER BY event_time`, contestID)
	if err != nil {
		return nil, mapError("list_submission_log", err)
	}
	defer rows.Close()

	var events []domain.SubmissionEvent
	for rows.Next() {
		var ev domain.SubmissionEvent
		if err := rows.Scan(&ev.Username, &ev.Time, &ev.IP, &ev.ProblemAlias); err != nil {
			return nil, mapError("list_submission_log", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list_submission_log", err)
	}
	return events, nil
}

func (p *Postgres) scanParticipation(row pgx.Row) (*domain.Participation, error) {
	var part domain.Participation
	if err := row.Scan(&part.ContestID, &part.UserID, &part.Username,
		&part.FirstAccessTime, &part.Score, &part.Penalty); err != nil {
		return nil, err
	}
	return &part, nil
}
