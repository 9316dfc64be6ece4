package models

import (
	"context"
	"errors"
	"time"

	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	UserRoleAdmin  = "admin"
	UserRoleViewer = "user"
)

type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Username     string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Password     string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:20;default:'user'" json:"role"`
	LastSignedIn time.Time `json:"lastSignedIn"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type LoginInfo struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

/*
caches:
	User:$username
*/

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()

	user := User{}
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
		if err != nil {
			return nil, errors.New("invalid username or password")
		}
		_ = config.SetRedisObject("User:"+username, &user, time.Hour)
	}

	err = utils.ComparePassword(user.Password, password)
	if err != nil {
		return nil, errors.New("invalid username or password")
	}

	token, err := utils.JwtGenerate(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	_ = db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).
		Update("last_signed_in", time.Now()).Error

	return &LoginInfo{
		Token:    token,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpsertUser creates the account or refreshes its password and role.
// Used by the seeding tool, not exposed over HTTP.
func UpsertUser(ctx context.Context, username string, hashedPassword string, role string) error {
	db := config.GetDB()

	user := User{
		Username:     username,
		Password:     hashedPassword,
		Role:         role,
		LastSignedIn: time.Now(),
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password", "role"}),
	}).Create(&user).Error
	if err != nil {
		return err
	}
	return user.RemoveInstanceRedis()
}
