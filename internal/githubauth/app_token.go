package githubauth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	jwtHeaderConstant                    = `{"alg":"RS256","typ":"JWT"}`
	jwtSegmentSeparatorConstant          = "."
	jwtIssuedAtSkew                      = 60 * time.Second
	jwtLifetime                          = 10 * time.Minute
	jwtReuseMargin                       = time.Minute
	appIDInvalidMessageConstant          = "github app id must be positive"
	privateKeyMissingMessageConstant     = "github app private key must be provided"
	privateKeyPEMDecodeMessageConstant   = "unable to decode PEM block from github app private key"
	privateKeyNotRSAMessageConstant      = "github app private key is not an RSA key"
	privateKeyParseErrorTemplateConstant = "unable to parse github app private key: %w (PKCS8: %v)"
	claimsEncodeErrorTemplateConstant    = "unable to encode JWT claims: %w"
	signatureErrorTemplateConstant       = "unable to sign JWT: %w"
)

var (
	// ErrAppIDInvalid indicates a missing or non-positive GitHub App id.
	ErrAppIDInvalid = errors.New(appIDInvalidMessageConstant)
	// ErrPrivateKeyMissing indicates the private key material was empty.
	ErrPrivateKeyMissing = errors.New(privateKeyMissingMessageConstant)
)

// AppTokenSource issues app-scoped JWTs used for /app endpoints and the
// installation token exchange.
type AppTokenSource struct {
	appID      int64
	issuer     string
	privateKey *rsa.PrivateKey
	clock      Clock

	mutex     sync.Mutex
	token     string
	expiresAt time.Time
}

// NewAppTokenSource parses a PKCS#1 or PKCS#8 PEM encoded RSA key.
func NewAppTokenSource(appID int64, privateKeyPEM []byte, clock Clock) (*AppTokenSource, error) {
	if appID <= 0 {
		return nil, ErrAppIDInvalid
	}
	if len(privateKeyPEM) == 0 {
		return nil, ErrPrivateKeyMissing
	}
	if clock == nil {
		clock = SystemClock{}
	}

	privateKey, parseError := parsePrivateKey(privateKeyPEM)
	if parseError != nil {
		return nil, parseError
	}

	return &AppTokenSource{appID: appID, issuer: strconv.FormatInt(appID, 10), privateKey: privateKey, clock: clock}, nil
}

// UseClientID switches the JWT issuer from the numeric app id to the app's
// client id, which GitHub accepts interchangeably. A blank value is ignored.
func (source *AppTokenSource) UseClientID(clientID string) {
	trimmedClientID := strings.TrimSpace(clientID)
	if len(trimmedClientID) == 0 {
		return
	}
	source.mutex.Lock()
	defer source.mutex.Unlock()
	source.issuer = trimmedClientID
	source.token = ""
	source.expiresAt = time.Time{}
}

// AppID returns the GitHub App id the JWTs are issued for.
func (source *AppTokenSource) AppID() int64 {
	return source.appID
}

// Token returns a cached JWT or signs a new one shortly before expiry.
func (source *AppTokenSource) Token(ctx context.Context) (string, error) {
	_ = ctx
	source.mutex.Lock()
	defer source.mutex.Unlock()

	now := source.clock.Now()
	if len(source.token) > 0 && now.Before(source.expiresAt.Add(-jwtReuseMargin)) {
		return source.token, nil
	}

	token, expiresAt, signError := source.sign(now)
	if signError != nil {
		return "", signError
	}
	source.token = token
	source.expiresAt = expiresAt
	return token, nil
}

func (source *AppTokenSource) sign(now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(jwtLifetime)
	claims := struct {
		IssuedAt  int64  `json:"iat"`
		ExpiresAt int64  `json:"exp"`
		Issuer    string `json:"iss"`
	}{
		IssuedAt:  now.Add(-jwtIssuedAtSkew).Unix(),
		ExpiresAt: expiresAt.Unix(),
		Issuer:    source.issuer,
	}

	encodedClaims, encodeError := json.Marshal(claims)
	if encodeError != nil {
		return "", time.Time{}, fmt.Errorf(claimsEncodeErrorTemplateConstant, encodeError)
	}

	signingInput := base64.RawURLEncoding.EncodeToString([]byte(jwtHeaderConstant)) +
		jwtSegmentSeparatorConstant +
		base64.RawURLEncoding.EncodeToString(encodedClaims)

	digest := sha256.Sum256([]byte(signingInput))
	signature, signatureError := rsa.SignPKCS1v15(rand.Reader, source.privateKey, crypto.SHA256, digest[:])
	if signatureError != nil {
		return "", time.Time{}, fmt.Errorf(signatureErrorTemplateConstant, signatureError)
	}

	return signingInput + jwtSegmentSeparatorConstant + base64.RawURLEncoding.EncodeToString(signature), expiresAt, nil
}

func parsePrivateKey(privateKeyPEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New(privateKeyPEMDecodeMessageConstant)
	}

	privateKey, pkcs1Error := x509.ParsePKCS1PrivateKey(block.Bytes)
	if pkcs1Error == nil {
		return privateKey, nil
	}

	parsedKey, pkcs8Error := x509.ParsePKCS8PrivateKey(block.Bytes)
	if pkcs8Error != nil {
		return nil, fmt.Errorf(privateKeyParseErrorTemplateConstant, pkcs1Error, pkcs8Error)
	}

	rsaKey, isRSA := parsedKey.(*rsa.PrivateKey)
	if !isRSA {
		return nil, errors.New(privateKeyNotRSAMessageConstant)
	}
	return rsaKey, nil
}
