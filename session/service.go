package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"escrowflow/profile"
)

var (
	// ErrInvalidCredentials signals wrong phone or passcode.
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	// ErrWeakPasscode signals the passcode doesn't meet requirements.
	ErrWeakPasscode = errors.New("session: passcode must be at least 4 characters")
)

// Service signs profiles in and out. The two fixed identities authenticate
// with phone plus passcode; a signed token carries the profile id and role
// for the HTTP layer.
type Service struct {
	profiles  profile.Repository
	jwtSecret []byte
}

// LoginResult bundles the token and profile returned after a successful login.
type LoginResult struct {
	Token   string
	Profile profile.Profile
}

// NewService creates a new session service.
func NewService(profiles profile.Repository, jwtSecret string) *Service {
	return &Service{
		profiles:  profiles,
		jwtSecret: []byte(jwtSecret),
	}
}

// HashPasscode hashes a passcode for storage on a profile.
func HashPasscode(passcode string) (string, error) {
	if len(passcode) < 4 {
		return "", ErrWeakPasscode
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("session: hash passcode: %w", err)
	}
	return string(hash), nil
}

// Login authenticates a profile by phone and returns a signed token. The
// profile also becomes the current selector value, matching the single-user
// switch the presentation layer exposes.
func (s *Service) Login(ctx context.Context, phone, passcode string) (LoginResult, error) {
	p, err := s.profiles.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasscodeHash), []byte(passcode)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(p.ID, p.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("session: generate token: %w", err)
	}

	if err := s.profiles.SetCurrent(ctx, p.ID); err != nil {
		return LoginResult{}, fmt.Errorf("session: set current profile: %w", err)
	}

	return LoginResult{Token: token, Profile: p}, nil
}

// VerifyToken validates a token and returns the profile id and role.
func (s *Service) VerifyToken(tokenString string) (string, profile.Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("session: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("session: invalid token")
	}

	profileID, ok := claims["profile_id"].(string)
	if !ok {
		return "", "", fmt.Errorf("session: invalid profile_id in token")
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return "", "", fmt.Errorf("session: invalid role in token")
	}
	role := profile.Role(roleStr)
	if !role.Valid() {
		return "", "", fmt.Errorf("session: invalid role %q in token", roleStr)
	}
	return profileID, role, nil
}

func (s *Service) generateToken(profileID string, role profile.Role) (string, error) {
	claims := jwt.MapClaims{
		"profile_id": profileID,
		"role":       role,
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
