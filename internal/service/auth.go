package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// Session is the authenticated identity behind a request.
type Session struct {
	AdminID      int64
	Email        string
	IsSuperAdmin bool
}

// CredentialStore is what AuthService needs from the admin store.
type CredentialStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	UpdateAdminLastLogin(ctx context.Context, id int64) error
}

type AuthService struct {
	store     CredentialStore
	jwtSecret []byte
}

func NewAuthService(store CredentialStore, jwtSecret string) *AuthService {
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
	}
}

// HashPassword returns the bcrypt hash stored for an admin password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Authenticate checks an email/password pair and records the login.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.Admin, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	admin, err := s.store.GetAdminByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !admin.IsActive {
		return nil, ErrAccountDisabled
	}

	// Login bookkeeping is best effort.
	_ = s.store.UpdateAdminLastLogin(ctx, admin.ID)
	return admin, nil
}

// ValidateJWT verifies a JWT bearer token and returns the session it carries.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*Session, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !token.Valid || claims.AdminID == 0 {
		return nil, ErrInvalidCredentials
	}

	return &Session{
		AdminID:      claims.AdminID,
		Email:        claims.Email,
		IsSuperAdmin: claims.SuperAdmin,
	}, nil
}

// IssueJWT creates a new signed session token for the given admin.
func (s *AuthService) IssueJWT(ctx context.Context, admin *model.Admin, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		AdminID:    admin.ID,
		Email:      admin.Email,
		SuperAdmin: admin.IsSuperAdmin(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "rolekeeper",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

type jwtClaims struct {
	AdminID    int64  `json:"admin_id"`
	Email      string `json:"email"`
	SuperAdmin bool   `json:"super_admin"`
	jwt.RegisteredClaims
}
