package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/famtrack/tracker-server-go/internal/model"
)

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrUnexpectedSignMethod = errors.New("unexpected signing method")
)

const issuer = "famtrack"

// DeviceClaims authenticate a physical device to the telemetry path. They
// are signed with the device secret and never verify against the user
// secret, so a device token cannot be replayed on user-scoped endpoints.
type DeviceClaims struct {
	DeviceID string `json:"deviceId"`
	jwt.RegisteredClaims
}

type UserClaims struct {
	UserID   string     `json:"userId"`
	Role     model.Role `json:"role"`
	Verified bool       `json:"verified"`
	jwt.RegisteredClaims
}

type Issuer struct {
	userSecret   []byte
	deviceSecret []byte
	deviceTTL    time.Duration
}

func NewIssuer(userSecret, deviceSecret string, deviceTTL time.Duration) *Issuer {
	return &Issuer{
		userSecret:   []byte(userSecret),
		deviceSecret: []byte(deviceSecret),
		deviceTTL:    deviceTTL,
	}
}

// IssueDeviceToken returns the long-lived credential handed out at
// redemption time.
func (i *Issuer) IssueDeviceToken(deviceID string) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.deviceTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}).SignedString(i.deviceSecret)
}

func (i *Issuer) ParseDeviceToken(tokenStr string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	if err := i.parse(tokenStr, claims, i.deviceSecret); err != nil {
		return nil, err
	}
	if claims.DeviceID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) ParseUserToken(tokenStr string) (*UserClaims, error) {
	claims := &UserClaims{}
	if err := i.parse(tokenStr, claims, i.userSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueUserToken exists for the account system and for tests; the core
// itself only verifies user tokens.
func (i *Issuer) IssueUserToken(userID string, role model.Role, verified bool, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &UserClaims{
		UserID:   userID,
		Role:     role,
		Verified: verified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}).SignedString(i.userSecret)
}

func (i *Issuer) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrUnexpectedSignMethod
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
