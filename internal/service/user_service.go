package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 在指定用户不存在时返回
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken 注册时用户名已被占用
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidUserInput 注册信息不完整或不合法
	ErrInvalidUserInput = errors.New("invalid user input")
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
	minPasswordLength = 6
)

// UserService 负责账号注册、登录校验与积分发放
type UserService struct {
	db *gorm.DB
}

// RegisterInput 定义注册时可提交的字段
type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

// UserProfile 是个人主页展示的数据，等级由积分实时推导
type UserProfile struct {
	User db.User
	Rank carbon.RankProgress
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Register 创建新用户，密码以 bcrypt 哈希保存
func (s *UserService) Register(input RegisterInput) (*db.User, error) {
	username := strings.TrimSpace(input.Username)
	firstName := strings.TrimSpace(input.FirstName)

	switch {
	case len(username) < minUsernameLength || len(username) > maxUsernameLength:
		return nil, fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidUserInput, minUsernameLength, maxUsernameLength)
	case len(input.Password) < minPasswordLength:
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUserInput, minPasswordLength)
	case firstName == "":
		return nil, fmt.Errorf("%w: first name is required", ErrInvalidUserInput)
	}

	var count int64
	if err := s.db.Model(&db.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{
		Username:  username,
		Password:  string(hashed),
		FirstName: firstName,
		LastName:  strings.TrimSpace(input.LastName),
		Email:     strings.TrimSpace(input.Email),
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate 校验用户名与密码，失败时统一返回 ErrInvalidCredentials
func (s *UserService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get 根据 ID 获取用户
func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// Profile 返回用户及其等级进度
func (s *UserService) Profile(id uint) (*UserProfile, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return &UserProfile{User: *user, Rank: carbon.Progress(user.Points)}, nil
}

// AddPoints 以单条 UPDATE 原子累加积分，需要与业务写入同事务时传入 tx。
func (s *UserService) AddPoints(tx *gorm.DB, userID uint, delta int64) error {
	if tx == nil {
		tx = s.db
	}
	return addPoints(tx, userID, delta)
}

func addPoints(tx *gorm.DB, userID uint, delta int64) error {
	if _, err := carbon.ApplyAward(0, delta); err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}

	res := tx.Model(&db.User{}).Where("id = ?", userID).UpdateColumn("points", gorm.Expr("points + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("add points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func currentPoints(tx *gorm.DB, userID uint) (int64, error) {
	var user db.User
	if err := tx.Select("id", "points").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("load points: %w", err)
	}
	return user.Points, nil
}
