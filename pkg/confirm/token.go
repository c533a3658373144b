package confirm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/config"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
)

// Action names what the signed link authorizes.
type Action string

const (
	ActionReconfirm Action = "reconfirm"
	ActionDecline   Action = "decline"
)

// Claims identifies the (worker, appointment, unit) triple a confirmation
// link acts on. Units carry several tasks, so links bind to the unit, not
// an individual task row.
type Claims struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	WorkerID      uuid.UUID `json:"workerId"`
	UnitNumber    int       `json:"unitNumber"`
	Action        Action    `json:"action"`
	jwt.RegisteredClaims
}

var (
	errSecretRequired  = errors.New("confirm secret is required")
	errBaseURLRequired = errors.New("confirm link base url is required")
)

// TokenManager signs and verifies the reconfirmation links sent to workers.
type TokenManager struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	linkBase string
}

// NewTokenManager builds the manager from configuration.
func NewTokenManager(cfg config.ConfirmConfig) (*TokenManager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errSecretRequired
	}
	if strings.TrimSpace(cfg.LinkBaseURL) == "" {
		return nil, errBaseURLRequired
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &TokenManager{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		ttl:      ttl,
		linkBase: strings.TrimRight(cfg.LinkBaseURL, "/"),
	}, nil
}

// Issue signs a token authorizing one action on one unit of one appointment.
func (m *TokenManager) Issue(appointmentID, workerID uuid.UUID, unitNumber int, action Action) (string, error) {
	if appointmentID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "appointment id is required")
	}
	if workerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "worker id is required")
	}
	if unitNumber < 1 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unit number must be positive")
	}
	now := time.Now()
	claims := Claims{
		AppointmentID: appointmentID,
		WorkerID:      workerID,
		UnitNumber:    unitNumber,
		Action:        action,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   workerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign confirm token")
	}
	return signed, nil
}

// Verify parses the token and returns its claims when the signature,
// issuer and expiry all check out.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "confirm token is required")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "confirm token expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid confirm token")
	}
	if !parsed.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid confirm token")
	}
	return claims, nil
}

// Link renders the signed URL workers tap from SMS.
func (m *TokenManager) Link(token string) string {
	return fmt.Sprintf("%s/confirm?token=%s", m.linkBase, url.QueryEscape(token))
}
