package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"wallstreetvotes/internal/models"
	"wallstreetvotes/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// IdentityStore maps usernames to ids, checks credentials and signs login tokens.
type IdentityStore struct {
	db         *gorm.DB
	signingKey []byte
	dummyHash  string // compared against when the username is unknown
}

func NewIdentityStore(db *gorm.DB, signingKey []byte) (*IdentityStore, error) {
	dummy, err := utils.HashPassword("wallstreet-votes-dummy-password")
	if err != nil {
		return nil, err
	}
	return &IdentityStore{db: db, signingKey: signingKey, dummyHash: dummy}, nil
}

// Register creates a user. Uniqueness is decided by the users.username index.
func (s *IdentityStore) Register(ctx context.Context, username, password string) (uint, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return 0, ErrInvalidUsername
	}
	if len(password) < 6 || len(password) > 72 {
		return 0, ErrInvalidPassword
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return 0, storeErr("hash password", err)
	}

	user := models.User{Username: username, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicateUsername
		}
		logrus.WithFields(logrus.Fields{"username": username, "error": err}).Error("Register failed")
		return 0, storeErr("create user", err)
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": username}).Info("User registered")
	return user.ID, nil
}

// Login returns the user when the credentials match. Unknown users and wrong
// passwords both cost one bcrypt comparison and both return ok=false.
func (s *IdentityStore) Login(ctx context.Context, username, password string) (*models.User, bool) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithFields(logrus.Fields{"username": username, "error": err}).Error("Login lookup failed")
		}
		utils.CheckPasswordHash(password, s.dummyHash)
		return nil, false
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, false
	}
	return &user, true
}

// Authenticate reports whether username/password is a valid pair.
func (s *IdentityStore) Authenticate(ctx context.Context, username, password string) bool {
	_, ok := s.Login(ctx, username, password)
	return ok
}

func (s *IdentityStore) ResolveID(ctx context.Context, username string) (uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, storeErr("resolve id", err)
	}
	if len(ids) == 0 {
		return 0, ErrNotFound
	}
	return ids[0], nil
}

func (s *IdentityStore) ResolveUsername(ctx context.Context, id uint) (string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Limit(1).Pluck("username", &names).Error; err != nil {
		return "", storeErr("resolve username", err)
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	return names[0], nil
}

// Get loads a full user row.
func (s *IdentityStore) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get user", err)
	}
	return &user, nil
}

// SessionToken is the per-user login token kept in the session cookie:
// HMAC-SHA256 over id and username, keyed by the server signing key.
func (s *IdentityStore) SessionToken(id uint, username string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(strconv.FormatUint(uint64(id), 10)))
	mac.Write([]byte{0})
	mac.Write([]byte(username))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySessionToken recomputes the token and compares in constant time.
func (s *IdentityStore) VerifySessionToken(id uint, username, token string) bool {
	if id == 0 || token == "" {
		return false
	}
	return hmac.Equal([]byte(s.SessionToken(id, username)), []byte(token))
}
