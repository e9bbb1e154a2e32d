package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"app/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateAvatarURL(ctx context.Context, userID, avatarURL string) error
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfileByUserID(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, p *model.Profile) error
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	query := `INSERT INTO users (id, email, password, first_name, last_name, role, is_active)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, u.ID, u.Email, u.Password, u.FirstName, u.LastName, u.Role, u.IsActive).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	query := `SELECT id, email, password, first_name, last_name, avatar_url, role, is_active, created_at, updated_at
              FROM users WHERE id=$1`
	row := r.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.AvatarURL, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return &u, nil
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	query := `SELECT id, email, password, first_name, last_name, avatar_url, role, is_active, created_at, updated_at
              FROM users WHERE email=$1`
	row := r.db.QueryRowContext(ctx, query, email)
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.AvatarURL, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user by email: %w", err)
	}
	return &u, nil
}

func (r *userRepo) UpdateAvatarURL(ctx context.Context, userID, avatarURL string) error {
	query := `UPDATE users SET avatar_url=$2, updated_at=NOW() WHERE id=$1`
	if _, err := r.db.ExecContext(ctx, query, userID, avatarURL); err != nil {
		return fmt.Errorf("update avatar for user %s: %w", userID, err)
	}
	return nil
}

func (r *userRepo) CreateProfile(ctx context.Context, p *model.Profile) error {
	query := `INSERT INTO profiles (user_id, bio, website, location, company, job_title)
              VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.UserID, p.Bio, p.Website, p.Location, p.Company, p.JobTitle).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create profile for user %s: %w", p.UserID, err)
	}
	return nil
}

func (r *userRepo) GetProfileByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	query := `SELECT user_id, bio, website, location, company, job_title, created_at, updated_at
              FROM profiles WHERE user_id=$1`
	row := r.db.QueryRowContext(ctx, query, userID)
	if err := row.Scan(&p.UserID, &p.Bio, &p.Website, &p.Location, &p.Company, &p.JobTitle, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch profile for user %s: %w", userID, err)
	}
	return &p, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, p *model.Profile) error {
	query := `UPDATE profiles
              SET bio=$2, website=$3, location=$4, company=$5, job_title=$6, updated_at=NOW()
              WHERE user_id=$1`
	if _, err := r.db.ExecContext(ctx, query, p.UserID, p.Bio, p.Website, p.Location, p.Company, p.JobTitle); err != nil {
		return fmt.Errorf("update profile for user %s: %w", p.UserID, err)
	}
	return nil
}
