// Package auth implements registration, login and account management on top
// of the credential store and the shared session store.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-forum/internal/database"
	"github.com/npezzotti/go-forum/internal/log"
	"github.com/npezzotti/go-forum/internal/session"
	"github.com/npezzotti/go-forum/internal/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultNameColor = "#000000"
	maxBioLength     = 500
)

var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

type Service struct {
	db       database.ForumRepository
	sessions *session.Manager
}

func NewService(db database.ForumRepository, sessions *session.Manager) *Service {
	return &Service{
		db:       db,
		sessions: sessions,
	}
}

type RegisterParams struct {
	Username        string
	DisplayName     string
	Email           string
	Password        string
	ConfirmPassword string
}

type LoginResult struct {
	Token   string
	Session *session.Session
	User    types.User
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	username := strings.TrimSpace(params.Username)
	displayName := strings.TrimSpace(params.DisplayName)
	email := strings.TrimSpace(params.Email)

	if username == "" || displayName == "" || email == "" || params.Password == "" {
		return types.User{}, types.NewValidationError("All fields are required.")
	}

	if params.Password != params.ConfirmPassword {
		return types.User{}, types.NewValidationError("Passwords do not match.")
	}

	if err := ValidateEmail(email); err != nil {
		return types.User{}, err
	}

	if err := ValidatePassword(params.Password); err != nil {
		return types.User{}, err
	}

	pwdHash, err := HashPassword(params.Password)
	if err != nil {
		return types.User{}, types.NewStoreError("hash password", err)
	}

	dbUser, err := s.db.CreateUser(ctx, database.CreateUserParams{
		Username:     username,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		return types.User{}, storeError("create user", err)
	}

	log.Ctx(ctx).Info().
		Int(log.FieldUserID, dbUser.Id).
		Str(log.FieldUsername, dbUser.Username).
		Msg("user registered")

	return ToUser(dbUser), nil
}

// Login checks the credentials and opens a new logged-in session. A fresh
// token is always issued so a pre-login token can never be promoted.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, types.NewValidationError("Username and password are required.")
	}

	dbUser, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// keep the timing of unknown users close to a failed compare
			compareDummy(password)
			return nil, types.ErrInvalidCredentials
		}
		return nil, types.NewStoreError("get user", err)
	}

	if !VerifyPassword(dbUser.PasswordHash, password) {
		return nil, types.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	token := s.sessions.NewToken()
	sess := &session.Session{
		UserId:     dbUser.Id,
		Username:   dbUser.Username,
		IsLoggedIn: true,
		LoginTime:  &now,
	}

	if err := s.sessions.Save(ctx, token, sess); err != nil {
		return nil, types.NewStoreError("save session", err)
	}

	log.Ctx(ctx).Info().
		Int(log.FieldUserID, dbUser.Id).
		Str(log.FieldUsername, dbUser.Username).
		Msg("user logged in")

	return &LoginResult{
		Token:   token,
		Session: sess,
		User:    ToUser(dbUser),
	}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return types.NewStoreError("destroy session", err)
	}
	return nil
}

// Touch records an authenticated visit and returns the visitor view as it
// was before the visit was counted.
func (s *Service) Touch(ctx context.Context, token string, sess *session.Session) (types.Visitor, error) {
	visitor := types.Visitor{
		Name:       sess.Username,
		IsLoggedIn: true,
		LoginTime:  sess.LoginTime,
		VisitCount: sess.VisitCount,
	}

	updated := *sess
	updated.VisitCount++
	if err := s.sessions.Save(ctx, token, &updated); err != nil {
		return visitor, types.NewStoreError("save session", err)
	}

	return visitor, nil
}

func (s *Service) Profile(ctx context.Context, userId int) (types.User, error) {
	dbUser, err := s.db.GetUserById(ctx, userId)
	if err != nil {
		return types.User{}, storeError("get user", err)
	}

	return ToUser(dbUser), nil
}

// ChangePassword replaces the password and ends the acting session, so the
// caller has to log in again with the new password.
func (s *Service) ChangePassword(ctx context.Context, token string, userId int, current, newPasswd, confirm string) error {
	if current == "" || newPasswd == "" || confirm == "" {
		return types.NewValidationError("All fields are required.")
	}

	if newPasswd != confirm {
		return types.NewValidationError("Passwords do not match.")
	}

	if err := ValidatePassword(newPasswd); err != nil {
		return err
	}

	if err := s.checkPassword(ctx, userId, current, "Current password is invalid."); err != nil {
		return err
	}

	pwdHash, err := HashPassword(newPasswd)
	if err != nil {
		return types.NewStoreError("hash password", err)
	}

	if err := s.db.UpdatePasswordHash(ctx, userId, pwdHash); err != nil {
		return storeError("update password", err)
	}

	if err := s.sessions.Destroy(ctx, token); err != nil {
		return types.NewStoreError("destroy session", err)
	}

	log.Ctx(ctx).Info().Int(log.FieldUserID, userId).Msg("password changed, session destroyed")
	return nil
}

func (s *Service) ChangeEmail(ctx context.Context, userId int, current, newEmail, confirm string) error {
	newEmail = strings.TrimSpace(newEmail)
	confirm = strings.TrimSpace(confirm)

	if current == "" || newEmail == "" || confirm == "" {
		return types.NewValidationError("All fields are required.")
	}

	if newEmail != confirm {
		return types.NewValidationError("New Email does not match.")
	}

	if err := ValidateEmail(newEmail); err != nil {
		return err
	}

	if err := s.checkPassword(ctx, userId, current, "Current password is incorrect."); err != nil {
		return err
	}

	if err := s.db.UpdateEmail(ctx, userId, newEmail); err != nil {
		return storeError("update email", err)
	}

	return nil
}

func (s *Service) ChangeDisplayName(ctx context.Context, userId int, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return types.NewValidationError("Display name is required.")
	}

	if err := s.db.UpdateDisplayName(ctx, userId, displayName); err != nil {
		return storeError("update display name", err)
	}

	return nil
}

func (s *Service) UpdateCustomization(ctx context.Context, userId int, nameColor, bio string) error {
	nameColor = strings.TrimSpace(nameColor)
	if nameColor == "" {
		nameColor = defaultNameColor
	}

	if err := ValidateColor(nameColor); err != nil {
		return err
	}

	if len(bio) > maxBioLength {
		return types.NewValidationError("Bio must be at most %d characters.", maxBioLength)
	}

	err := s.db.UpdateCustomization(ctx, database.UpdateCustomizationParams{
		UserId:    userId,
		NameColor: nameColor,
		Bio:       bio,
	})
	if err != nil {
		return storeError("update customization", err)
	}

	return nil
}

func (s *Service) checkPassword(ctx context.Context, userId int, passwd, failMsg string) error {
	dbUser, err := s.db.GetUserById(ctx, userId)
	if err != nil {
		return storeError("get user", err)
	}

	if !VerifyPassword(dbUser.PasswordHash, passwd) {
		return &types.ValidationError{Message: failMsg}
	}

	return nil
}

func compareDummy(passwd string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)
	})
	bcrypt.CompareHashAndPassword(dummyHash, []byte(passwd))
}

// storeError translates repository errors into the domain error taxonomy.
func storeError(op string, err error) error {
	var dupErr *database.ErrDuplicate
	switch {
	case errors.As(err, &dupErr):
		return &types.ConflictError{Field: dupErr.Field}
	case errors.Is(err, sql.ErrNoRows):
		return types.ErrNotFound
	default:
		return types.NewStoreError(op, err)
	}
}

func ToUser(u database.User) types.User {
	return types.User{
		Id:          u.Id,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		NameColor:   u.NameColor,
		Bio:         u.Bio,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
