package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/famtrack/tracker-server-go/internal/model"
)

// FamilyRepository is the read side of the external family/account system,
// plus the one status column the pairing flow owns.
type FamilyRepository interface {
	FindByCreator(ctx context.Context, userID string) (*model.Family, error)
	FindByID(ctx context.Context, id string) (*model.Family, error)
	FindMember(ctx context.Context, familyID, userID string) (*model.FamilyMember, error)
	// FindMembershipByUser resolves which family a user belongs to.
	FindMembershipByUser(ctx context.Context, userID string) (*model.FamilyMember, error)
	UpdateMemberStatus(ctx context.Context, familyID, userID string, status model.MemberStatus) error
	FindUser(ctx context.Context, userID string) (*model.User, error)
	WithTx(tx *sqlx.Tx) FamilyRepository
}

type familyDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type familyRepo struct {
	db familyDB
}

func NewFamilyRepository(db *sqlx.DB) FamilyRepository {
	return &familyRepo{db: db}
}

func (r *familyRepo) WithTx(tx *sqlx.Tx) FamilyRepository {
	return &familyRepo{db: tx}
}

func (r *familyRepo) FindByCreator(ctx context.Context, userID string) (*model.Family, error) {
	var family model.Family
	err := r.db.GetContext(ctx, &family, `
		SELECT * FROM families WHERE created_by = $1
	`, userID)
	return HandleNotFound(&family, err)
}

func (r *familyRepo) FindByID(ctx context.Context, id string) (*model.Family, error) {
	var family model.Family
	err := r.db.GetContext(ctx, &family, `
		SELECT * FROM families WHERE id = $1
	`, id)
	return HandleNotFound(&family, err)
}

func (r *familyRepo) FindMember(ctx context.Context, familyID, userID string) (*model.FamilyMember, error) {
	var member model.FamilyMember
	err := r.db.GetContext(ctx, &member, `
		SELECT * FROM family_members WHERE family_id = $1 AND user_id = $2
	`, familyID, userID)
	return HandleNotFound(&member, err)
}

func (r *familyRepo) FindMembershipByUser(ctx context.Context, userID string) (*model.FamilyMember, error) {
	var member model.FamilyMember
	err := r.db.GetContext(ctx, &member, `
		SELECT * FROM family_members WHERE user_id = $1
	`, userID)
	return HandleNotFound(&member, err)
}

func (r *familyRepo) UpdateMemberStatus(ctx context.Context, familyID, userID string, status model.MemberStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE family_members SET
			status = $3,
			updated_at = $4
		WHERE family_id = $1 AND user_id = $2
	`, familyID, userID, status, time.Now())
	return err
}

func (r *familyRepo) FindUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT id, email, role, verified FROM users WHERE id = $1
	`, userID)
	return HandleNotFound(&user, err)
}
