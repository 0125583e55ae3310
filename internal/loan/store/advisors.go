package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"credit-evaluation-workers/internal/models"
)

const advisorColumns = `u.id, u.name, u.first_last_name, u.email, u.phone_number, u.role_id, u.is_active, u.last_selected_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAdvisor(row rowScanner) (*models.Advisor, error) {
	var (
		a                    models.Advisor
		lastName, email, tel sql.NullString
		lastSelected         sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Name, &lastName, &email, &tel, &a.RoleID, &a.IsActive, &lastSelected); err != nil {
		return nil, err
	}
	a.FirstLastName = lastName.String
	a.Email = email.String
	a.Phone = tel.String
	if lastSelected.Valid {
		t := lastSelected.Time
		a.LastSelectedAt = &t
	}
	return &a, nil
}

func (r *Repository) advisorRow(ctx context.Context, qt models.QueryType, query string, args ...interface{}) (*models.Advisor, error) {
	a, err := scanAdvisor(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.queryError(ctx, qt, err)
	}
	return a, nil
}

func (r *Repository) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM roles
		WHERE LOWER(name) = LOWER($1)
		LIMIT 1`, name).Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.queryError(ctx, models.QueryTypeAdvisorsByRole, err)
	}
	return &role, nil
}

// PeekNextAdvisor returns the advisor the rotation would pick next without
// moving the rotation.
func (r *Repository) PeekNextAdvisor(ctx context.Context, roleID int64) (*models.Advisor, error) {
	return r.advisorRow(ctx, models.QueryTypeAdvisorsByRole, `
		SELECT `+advisorColumns+`
		FROM users u
		WHERE u.role_id = $1
		  AND u.is_active = TRUE
		ORDER BY u.last_selected_at ASC NULLS FIRST, u.id ASC
		LIMIT 1`, roleID)
}

// ClaimNextAdvisor picks the least recently selected active advisor of
// roleID and stamps it as selected. When storeID is set only advisors linked
// to that store are eligible.
func (r *Repository) ClaimNextAdvisor(ctx context.Context, roleID int64, storeID *int64) (*models.Advisor, error) {
	return r.advisorRow(ctx, models.QueryTypeClaimAdvisor, `
		UPDATE users u
		SET last_selected_at = NOW()
		WHERE u.id = (
			SELECT c.id
			FROM users c
			WHERE c.role_id = $1
			  AND c.is_active = TRUE
			  AND ($2::BIGINT IS NULL OR EXISTS (
				SELECT 1 FROM user_sucursales us
				WHERE us.user_id = c.id AND us.sucursal_id = $2
			  ))
			ORDER BY c.last_selected_at ASC NULLS FIRST, c.id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+advisorColumns, roleID, nullableID(storeID))
}

// Advisor loads one active advisor by id.
func (r *Repository) Advisor(ctx context.Context, id int64) (*models.Advisor, error) {
	return r.advisorRow(ctx, models.QueryTypeAdvisorsByRole, `
		SELECT `+advisorColumns+`
		FROM users u
		WHERE u.id = $1
		  AND u.is_active = TRUE`, id)
}

// ClaimAdvisor stamps a specific active advisor as selected.
func (r *Repository) ClaimAdvisor(ctx context.Context, id int64) (*models.Advisor, error) {
	return r.advisorRow(ctx, models.QueryTypeClaimAdvisor, `
		UPDATE users u
		SET last_selected_at = NOW()
		WHERE u.id = $1
		  AND u.is_active = TRUE
		RETURNING `+advisorColumns, id)
}

// RecentAdvisorForClient returns the advisor on the client's newest solicitud
// created after since, if that advisor is still active.
func (r *Repository) RecentAdvisorForClient(ctx context.Context, clientID int64, since time.Time) (*models.Advisor, error) {
	return r.advisorRow(ctx, models.QueryTypeRecentAdvisor, `
		SELECT `+advisorColumns+`
		FROM solicitudes s
		JOIN users u ON u.id = s.finva_user_id
		WHERE s.cliente_id = $1
		  AND s.created_at >= $2
		  AND u.is_active = TRUE
		ORDER BY s.created_at DESC
		LIMIT 1`, clientID, since)
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
