// Package service implements the registry's operations on patients and
// accounts on top of the database package.
package service

import (
	"errors"
	"strings"

	"github.com/medreg/patient-registry/database"
	"github.com/medreg/patient-registry/database/model"
	"github.com/medreg/patient-registry/util/crypto"

	"gorm.io/gorm"
)

var (
	ErrEmptyCredentials = errors.New("username and password required")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrDoctorNotFound   = errors.New("doctor not found")
)

type UserService struct{}

// CheckUser returns the account matching username and password. Bad
// credentials give a nil user and a nil error; err is only set when the
// lookup itself failed. Unknown usernames cost a bcrypt comparison too.
func (s *UserService) CheckUser(username string, password string) (*model.User, error) {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(model.User{}).
		Where("username = ?", username).
		First(user).
		Error
	if database.IsNotFound(err) {
		crypto.BurnComparison(password)
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	if !crypto.CheckPasswordHash(user.PasswordHash, password) {
		return nil, nil
	}
	return user, nil
}

// Register creates a doctor account.
func (s *UserService) Register(username string, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleDoctor,
	}
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
	if database.IsDuplicate(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListDoctors returns every non-admin account ordered by id.
func (s *UserService) ListDoctors() ([]model.User, error) {
	var users []model.User
	err := database.GetDB().
		Where("role <> ?", model.RoleAdmin).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteDoctor removes a non-admin account. Admin accounts are never matched.
func (s *UserService) DeleteDoctor(id int) error {
	res := database.GetDB().
		Where("id = ? AND role <> ?", id, model.RoleAdmin).
		Delete(&model.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// ResetDoctorPassword sets a new password on a non-admin account.
func (s *UserService) ResetDoctorPassword(id int, password string) error {
	if password == "" {
		return ErrEmptyCredentials
	}
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return err
	}
	res := database.GetDB().Model(&model.User{}).
		Where("id = ? AND role <> ?", id, model.RoleAdmin).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// EnsureAdmin creates the admin account username, or resets its password
// when it already exists. created reports which of the two happened.
func (s *UserService) EnsureAdmin(username string, password string) (created bool, err error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, ErrEmptyCredentials
	}
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return false, err
	}

	db := database.GetDB()
	user := &model.User{}
	err = db.Where("username = ?", username).First(user).Error
	if database.IsNotFound(err) {
		user = &model.User{Username: username, PasswordHash: hash, Role: model.RoleAdmin}
		return true, db.Create(user).Error
	} else if err != nil {
		return false, err
	}
	return false, db.Model(user).Updates(map[string]any{
		"password_hash": hash,
		"role":          model.RoleAdmin,
	}).Error
}

// GetAdmin returns the first admin account.
func (s *UserService) GetAdmin() (*model.User, error) {
	user := &model.User{}
	err := database.GetDB().
		Where("role = ?", model.RoleAdmin).
		Order("id ASC").
		First(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}
