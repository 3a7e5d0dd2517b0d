// Package auth issues and verifies bearer tokens and maps roles to
// capabilities.
package auth

import (
	stderrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
)

// Role is the caller's account role
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Capability is one permission checked at the route
type Capability string

const (
	CapScan      Capability = "scan"
	CapReview    Capability = "review"
	CapReadOwn   Capability = "read_own"
	CapManageOwn Capability = "manage_own"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {CapScan, CapReview, CapReadOwn, CapManageOwn},
	RoleAgent: {CapScan, CapReadOwn, CapManageOwn},
}

// CapabilitiesOf returns the capabilities granted to a role
func CapabilitiesOf(role Role) []Capability {
	return slices.Clone(roleCapabilities[role])
}

// Claims carries the authenticated principal
type Claims struct {
	jwt.RegisteredClaims
	UserID      string       `json:"user_id"`
	AgentID     string       `json:"agent_id,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Capability `json:"permissions,omitempty"`
	// Agent identity strings used when matching public-records agent names
	DisplayName   string `json:"name,omitempty"`
	LicenseNumber string `json:"license,omitempty"`
}

// ClaimOption adds optional claims at issue time
type ClaimOption func(*Claims)

// WithAgentIdentity sets the agent's display name and license number
func WithAgentIdentity(displayName, license string) ClaimOption {
	return func(c *Claims) {
		c.DisplayName = displayName
		c.LicenseNumber = license
	}
}

// IsAdmin reports the admin role
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Can reports whether the role table or an explicit permission grants cap
func (c *Claims) Can(cap Capability) bool {
	if slices.Contains(roleCapabilities[c.Role], cap) {
		return true
	}
	return slices.Contains(c.Permissions, cap)
}

// Config configures token signing
type Config struct {
	Secret []byte
	Issuer string
	Expiry time.Duration
}

// TokenService signs and verifies HS256 tokens
type TokenService struct {
	config Config
	now    func() time.Time
}

// NewTokenService rejects an empty secret
func NewTokenService(cfg Config) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	return &TokenService{config: cfg, now: time.Now}, nil
}

// Issue creates a token for the principal. Agents must carry an agent id.
func (s *TokenService) Issue(userID, agentID string, role Role, opts ...ClaimOption) (string, error) {
	if _, ok := roleCapabilities[role]; !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if role == RoleAgent && agentID == "" {
		return "", fmt.Errorf("agent tokens need an agent id")
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		UserID:  userID,
		AgentID: agentID,
		Role:    role,
	}
	for _, opt := range opts {
		opt(&claims)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
}

// Verify parses and validates a token. Failures are unauthorized AppErrors.
func (s *TokenService) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	}, opts...)
	if err != nil {
		msg := "invalid token"
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return nil, errors.NewUnauthorizedError(msg).WithCause(err)
	}
	if !parsed.Valid {
		return nil, errors.NewUnauthorizedError("invalid token")
	}
	if _, ok := roleCapabilities[claims.Role]; !ok {
		return nil, errors.NewUnauthorizedError("unknown role")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.Role == RoleAgent && claims.AgentID == "" {
		return nil, errors.NewUnauthorizedError("agent token without agent id")
	}
	return claims, nil
}
