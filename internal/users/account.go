package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"wisebox-backend/internal/auth"
	"wisebox-backend/internal/cache"
	"wisebox-backend/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrCodeInvalid     = errors.New("invalid verification code")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrAlreadyVerified = errors.New("account already verified")
	ErrResetInvalid    = errors.New("invalid or expired reset token")
	ErrMailDisabled    = errors.New("mail delivery is not configured")
)

const (
	verifyKeyPrefix = "auth:verify:"
	resetKeyPrefix  = "auth:reset:"

	defaultCodeTTL  = 5 * time.Minute
	defaultResetTTL = 30 * time.Minute
	maxCodeAttempts = 5
)

// Mailer delivers the account emails. *notifications.BrevoClient implements it.
type Mailer interface {
	SendVerificationCode(ctx context.Context, user models.User, code string, ttl time.Duration) (string, error)
	SendPasswordReset(ctx context.Context, user models.User, link string, ttl time.Duration) (string, error)
}

// AccountFlows configures self-service signup and password reset. Codes and
// reset tokens live in Store with a TTL, so they vanish on their own.
type AccountFlows struct {
	Store    cache.Cache
	Mailer   Mailer
	CodeTTL  time.Duration
	ResetTTL time.Duration
	ResetURL string
}

func (s *Service) WithAccountFlows(f AccountFlows) *Service {
	if f.Store == nil {
		f.Store = cache.NewMemory()
	}
	if f.CodeTTL <= 0 {
		f.CodeTTL = defaultCodeTTL
	}
	if f.ResetTTL <= 0 {
		f.ResetTTL = defaultResetTTL
	}
	s.flows = f
	return s
}

func (s *Service) CodeTTL() time.Duration {
	return s.flows.CodeTTL
}

func (s *Service) store() cache.Cache {
	return s.flows.Store
}

// Signup creates a pending account. It cannot log in until the emailed code
// is verified.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (models.User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().In(s.location)
	user := models.User{
		ID:           primitive.NewObjectID().Hex(),
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         models.UserRoleUser,
		Status:       models.UserStatusPending,
		Location:     strings.TrimSpace(req.Location),
		Phone:        strings.TrimSpace(req.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

// PendingByEmail returns the account a new code may be sent to.
func (s *Service) PendingByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	if user.Status != models.UserStatusPending {
		return models.User{}, ErrAlreadyVerified
	}
	return user, nil
}

type pendingCode struct {
	Code     string    `json:"code"`
	Attempts int       `json:"attempts"`
	Expires  time.Time `json:"expires"`
}

// SendVerificationCode stores a fresh 4-digit code for user, replacing any
// earlier one, and emails it.
func (s *Service) SendVerificationCode(ctx context.Context, user models.User) error {
	if s.flows.Mailer == nil {
		return ErrMailDisabled
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	ttl := s.CodeTTL()
	pc := pendingCode{Code: fmt.Sprintf("%04d", n.Int64()), Expires: s.now().Add(ttl)}
	if err := s.putCode(ctx, user.Email, pc); err != nil {
		return err
	}
	if _, err := s.flows.Mailer.SendVerificationCode(ctx, user, pc.Code, ttl); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

func (s *Service) putCode(ctx context.Context, email string, pc pendingCode) error {
	ttl := pc.Expires.Sub(s.now())
	if ttl <= 0 {
		return s.store().Delete(ctx, verifyKeyPrefix+email)
	}
	raw, err := json.Marshal(pc)
	if err != nil {
		return err
	}
	if err := s.store().Set(ctx, verifyKeyPrefix+email, raw, ttl); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	return nil
}

// Verify activates a pending account when code matches the one last sent,
// and logs it in. A code allows maxCodeAttempts wrong guesses.
func (s *Service) Verify(ctx context.Context, email, code string) (models.User, Tokens, error) {
	email = normalizeEmail(email)
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, Tokens{}, ErrCodeInvalid
		}
		return models.User{}, Tokens{}, err
	}
	switch user.Status {
	case models.UserStatusPending:
	case models.UserStatusActive:
		return models.User{}, Tokens{}, ErrAlreadyVerified
	default:
		return models.User{}, Tokens{}, ErrCodeInvalid
	}

	raw, ok, err := s.store().Get(ctx, verifyKeyPrefix+email)
	if err != nil {
		return models.User{}, Tokens{}, fmt.Errorf("load code: %w", err)
	}
	var pc pendingCode
	if !ok || json.Unmarshal(raw, &pc) != nil || !s.now().Before(pc.Expires) {
		return models.User{}, Tokens{}, ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(pc.Code), []byte(strings.TrimSpace(code))) != 1 {
		pc.Attempts++
		if pc.Attempts >= maxCodeAttempts {
			_ = s.store().Delete(ctx, verifyKeyPrefix+email)
			return models.User{}, Tokens{}, ErrCodeExpired
		}
		if err := s.putCode(ctx, email, pc); err != nil {
			return models.User{}, Tokens{}, err
		}
		return models.User{}, Tokens{}, ErrCodeInvalid
	}

	activated, err := s.repo.Update(ctx, user.ID, bson.M{
		"status":       models.UserStatusActive,
		"lastActiveAt": s.now().In(s.location),
	})
	if err != nil {
		return models.User{}, Tokens{}, err
	}
	_ = s.store().Delete(ctx, verifyKeyPrefix+email)

	tokens, err := s.issue(activated)
	if err != nil {
		return models.User{}, Tokens{}, err
	}
	return activated, tokens, nil
}

// RequestPasswordReset mails a single-use reset link to an active account.
// Unknown or inactive emails return ErrNotFound; callers must not reveal it.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	if user.Status != models.UserStatusActive {
		return ErrNotFound
	}
	if s.flows.Mailer == nil {
		return ErrMailDisabled
	}

	token := uuid.NewString()
	ttl := s.flows.ResetTTL
	if err := s.store().Set(ctx, resetKey(token), []byte(user.ID), ttl); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if _, err := s.flows.Mailer.SendPasswordReset(ctx, user, resetLink(s.flows.ResetURL, token), ttl); err != nil {
		return fmt.Errorf("send reset: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for the account behind token and burns
// the token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetInvalid
	}
	key := resetKey(token)
	raw, ok, err := s.store().Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}
	if !ok {
		return ErrResetInvalid
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.repo.Update(ctx, string(raw), bson.M{"passwordHash": hash}); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			_ = s.store().Delete(ctx, key)
			return ErrResetInvalid
		}
		return err
	}
	return s.store().Delete(ctx, key)
}

// Only a digest of the token is kept server side.
func resetKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return resetKeyPrefix + hex.EncodeToString(sum[:])
}

func resetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
