package model

import "time"

// User represents a registered account.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password" json:"-"`
	FirstName string    `db:"first_name" json:"first_name,omitempty"`
	LastName  string    `db:"last_name" json:"last_name,omitempty"`
	AvatarURL string    `db:"avatar_url" json:"avatar_url,omitempty"`
	Role      string    `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Profile holds the free-form account details edited by the user.
type Profile struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Bio       string    `db:"bio" json:"bio"`
	Website   string    `db:"website" json:"website"`
	Location  string    `db:"location" json:"location"`
	Company   string    `db:"company" json:"company"`
	JobTitle  string    `db:"job_title" json:"job_title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
