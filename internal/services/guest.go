package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"runway-live-backend/internal/models"
	"runway-live-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	jwtExpDays = 30

	// RoleGuest and RoleOperator are the token roles understood by the
	// auth middleware and the socket command dispatcher.
	RoleGuest    = "guest"
	RoleOperator = "operator"
)

// GuestService handles guest registration, check-in and token issuance
type GuestService struct {
	guestRepo        *repository.GuestRepository
	jwtSecret        string
	operatorPassword string
}

// NewGuestService creates a new guest service
func NewGuestService(guestRepo *repository.GuestRepository, jwtSecret, operatorPassword string) *GuestService {
	return &GuestService{
		guestRepo:        guestRepo,
		jwtSecret:        jwtSecret,
		operatorPassword: operatorPassword,
	}
}

// Register creates a new guest and returns the guest together with a guest token
func (s *GuestService) Register(ctx context.Context, name, email string) (*models.Guest, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, "", fmt.Errorf("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("a valid email is required")
	}

	guest := &models.Guest{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.guestRepo.Create(ctx, guest); err != nil {
		return nil, "", err
	}

	token, err := s.GenerateJWT(guest.ID, RoleGuest)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return guest, token, nil
}

// CheckIn records a guest's arrival and optionally their device identifier.
// Checking in twice keeps the original check-in time.
func (s *GuestService) CheckIn(ctx context.Context, guestID string, deviceID *string) (*models.Guest, error) {
	return s.guestRepo.CheckIn(ctx, guestID, deviceID, time.Now().UTC())
}

// GetGuest retrieves a guest by ID
func (s *GuestService) GetGuest(ctx context.Context, guestID string) (*models.Guest, error) {
	return s.guestRepo.GetByID(ctx, guestID)
}

// OperatorLogin exchanges the operator console password for an operator token
func (s *GuestService) OperatorLogin(password string) (string, error) {
	if s.operatorPassword == "" || password != s.operatorPassword {
		return "", fmt.Errorf("invalid operator password")
	}
	return s.GenerateJWT("operator", RoleOperator)
}

// GenerateJWT generates a signed token carrying the subject and role
func (s *GuestService) GenerateJWT(subject, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates a token and returns the subject and role
func (s *GuestService) ValidateJWT(tokenString string) (subject, role string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("invalid token claims")
	}
	subject, _ = claims["sub"].(string)
	role, _ = claims["role"].(string)
	if subject == "" || role == "" {
		return "", "", fmt.Errorf("token missing subject or role")
	}
	return subject, role, nil
}
