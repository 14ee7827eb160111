package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

const teamColumns = `tm.id, tm.name, tm.created_by, tm.created_at, tm.updated_at`

// CreateTeam inserts a team and, in the same transaction, the tasks created
// with it. Team tasks without explicit assignees are assigned to every
// member of the team.
func (db *DB) CreateTeam(ctx context.Context, team *models.Team, tasks []*models.Task) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.createTeam(ctx, tx, team); err != nil {
		return err
	}

	for _, t := range tasks {
		teamID := team.ID
		t.TeamID = &teamID
		if len(models.NormalizeEmails(t.AssignedToEmails)) == 0 {
			t.AssignedToEmails = append([]string(nil), team.Members...)
		}
		if t.CreatedBy == "" {
			t.CreatedBy = team.CreatedBy
		}
		if err := db.createTask(ctx, tx, t); err != nil {
			return fmt.Errorf("failed to create team task %s: %w", t.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit team: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) createTeam(ctx context.Context, exec executor, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	now := db.now()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.CreatedAt = utc(team.CreatedAt)
	team.UpdatedAt = now
	team.Members = models.NormalizeEmails(team.Members)
	team.CreatedBy = models.NormalizeEmail(team.CreatedBy)

	_, err := exec.ExecContext(ctx,
		`INSERT INTO teams (id, name, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		team.ID, team.Name, team.CreatedBy, team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return setMembers(ctx, exec, team.ID, team.Members)
}

func setMembers(ctx context.Context, exec executor, teamID string, members []string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, teamID); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	for i, email := range members {
		_, err := exec.ExecContext(ctx,
			`INSERT OR IGNORE INTO team_members (team_id, email, position) VALUES (?, ?, ?)`,
			teamID, email, i,
		)
		if err != nil {
			return fmt.Errorf("failed to add member %s: %w", email, err)
		}
	}
	return nil
}

// GetTeam returns nil when no team matches.
func (db *DB) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	team := &models.Team{}
	err := db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams tm WHERE tm.id = ?`, id).Scan(
		&team.ID, &team.Name, &team.CreatedBy, &team.CreatedAt, &team.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	if err := db.attachMembers(ctx, []*models.Team{team}); err != nil {
		return nil, err
	}
	return team, nil
}

func (db *DB) ListTeams(ctx context.Context) ([]*models.Team, error) {
	return db.queryTeams(ctx, `SELECT `+teamColumns+` FROM teams tm ORDER BY tm.name ASC, tm.id ASC`)
}

// ListTeamsForMember returns the teams whose member list contains email.
func (db *DB) ListTeamsForMember(ctx context.Context, email string) ([]*models.Team, error) {
	query := `
		SELECT ` + teamColumns + `
		FROM teams tm
		JOIN team_members m ON m.team_id = tm.id
		WHERE m.email = ?
		ORDER BY tm.name ASC, tm.id ASC
	`
	return db.queryTeams(ctx, query, models.NormalizeEmail(email))
}

func (db *DB) queryTeams(ctx context.Context, query string, args ...any) ([]*models.Team, error) {
	teams, err := func() ([]*models.Team, error) {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query teams: %w", err)
		}
		defer rows.Close()

		teams := []*models.Team{}
		for rows.Next() {
			team := &models.Team{}
			if err := rows.Scan(&team.ID, &team.Name, &team.CreatedBy, &team.CreatedAt, &team.UpdatedAt); err != nil {
				return nil, fmt.Errorf("failed to scan team: %w", err)
			}
			teams = append(teams, team)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows error: %w", err)
		}
		return teams, nil
	}()
	if err != nil {
		return nil, err
	}

	if err := db.attachMembers(ctx, teams); err != nil {
		return nil, err
	}
	return teams, nil
}

func (db *DB) attachMembers(ctx context.Context, teams []*models.Team) error {
	if len(teams) == 0 {
		return nil
	}
	byID := make(map[string]*models.Team, len(teams))
	ids := make([]string, 0, len(teams))
	for _, team := range teams {
		team.Members = []string{}
		byID[team.ID] = team
		ids = append(ids, team.ID)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT team_id, email FROM team_members WHERE team_id IN (`+placeholders(len(ids))+`) ORDER BY team_id, position`,
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var teamID, email string
		if err := rows.Scan(&teamID, &email); err != nil {
			return fmt.Errorf("failed to scan member: %w", err)
		}
		byID[teamID].Members = append(byID[teamID].Members, email)
	}
	return rows.Err()
}

// UpdateTeam replaces the name and member list of a team.
func (db *DB) UpdateTeam(ctx context.Context, team *models.Team) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	team.UpdatedAt = db.now()
	team.Members = models.NormalizeEmails(team.Members)

	res, err := tx.ExecContext(ctx, `UPDATE teams SET name = ?, updated_at = ? WHERE id = ?`,
		team.Name, team.UpdatedAt, team.ID)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("team %s: %w", team.ID, ErrNotFound)
	}

	if err := setMembers(ctx, tx, team.ID, team.Members); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit team update: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteTeam removes a team. Its tasks remain, with the team reference cleared.
func (db *DB) DeleteTeam(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("team %s: %w", id, ErrNotFound)
	}

	db.triggerChange(ctx)
	return nil
}
