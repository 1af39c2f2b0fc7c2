// Package identity validates bearer credentials and resolves member profiles.
package identity

import (
	"errors"
	"strconv"
	"time"

	"marketchat/backend/internal/common"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload. The subject carries the numeric user id.
type Claims struct {
	jwt.RegisteredClaims
	Nickname string `json:"nickname,omitempty"`
}

// JWTVerifier validates HS256 tokens issued by the identity service.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// ValidateCredential returns the user id of a valid token.
func (v *JWTVerifier) ValidateCredential(tokenString string) (int64, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.Unauthenticated("token expired")
		}
		return 0, common.Unauthenticated("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, common.Unauthenticated("invalid token")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, common.Unauthenticated("invalid subject")
	}
	return userID, nil
}

// Issue signs a token for userID. Used by the operator CLI and tests; regular
// tokens come from the identity service.
func (v *JWTVerifier) Issue(userID int64, nickname string, ttl time.Duration) (string, error) {
	issuedAt := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Nickname: nickname,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
