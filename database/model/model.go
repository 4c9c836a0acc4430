// Package model contains the database models of the patient registry.
package model

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Patient is a single registry entry.
type Patient struct {
	Id        int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string `json:"name" gorm:"size:100;not null"`
	Age       int    `json:"age"`
	Condition string `json:"condition" gorm:"size:100"`
}

func (Patient) TableName() string { return "patients" }

// User is a login account. Only the password hash is ever stored.
type User struct {
	Id           int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"column:password_hash;not null"`
	Role         Role   `json:"role" gorm:"not null;default:doctor"`
}

func (User) TableName() string { return "users" }
