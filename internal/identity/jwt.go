package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by portal bearer tokens. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Team string `json:"team,omitempty"`
	Name string `json:"name,omitempty"`
}

// Verifier checks HS256 tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify returns the identity the token was issued for.
func (v *Verifier) Verify(tokenString string) (models.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Identity{}, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	role := models.Role(claims.Role)
	switch role {
	case models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin:
	case "":
		role = models.RoleUser
	default:
		return models.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return models.Identity{
		UserID: userID,
		Role:   role,
		Team:   claims.Team,
		Name:   claims.Name,
	}, nil
}

// Issue signs a token for id valid for ttl.
func (v *Verifier) Issue(id models.Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(id.Role),
		Team: id.Team,
		Name: id.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("error generate token string: %w", err)
	}
	return signed, nil
}
