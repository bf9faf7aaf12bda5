package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	signaturePrefixConstant                = "sha256="
	signatureSecretMissingMessageConstant  = "webhook secret is empty"
	signatureHeaderMissingMessageConstant  = "signature header is empty"
	signatureMismatchMessageConstant       = "signature mismatch"
	signatureEncodingErrorTemplateConstant = "signature is not hex encoded: %w"
)

var (
	// ErrSignatureMissing indicates a delivery without an X-Hub-Signature-256 header.
	ErrSignatureMissing = errors.New(signatureHeaderMissingMessageConstant)
	// ErrSignatureMismatch indicates the payload was not signed with the configured secret.
	ErrSignatureMismatch = errors.New(signatureMismatchMessageConstant)
)

// Sign returns the X-Hub-Signature-256 header value for body.
func Sign(secret []byte, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefixConstant + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Hub-Signature-256 header against body using a
// constant-time comparison. The header must carry the "sha256=" prefix.
func VerifySignature(secret []byte, body []byte, signatureHeader string) error {
	if len(secret) == 0 {
		return errors.New(signatureSecretMissingMessageConstant)
	}
	trimmedHeader := strings.TrimSpace(signatureHeader)
	if len(trimmedHeader) == 0 {
		return ErrSignatureMissing
	}

	encodedSignature, prefixed := strings.CutPrefix(trimmedHeader, signaturePrefixConstant)
	if !prefixed {
		return ErrSignatureMismatch
	}
	providedSignature, decodeError := hex.DecodeString(encodedSignature)
	if decodeError != nil {
		return fmt.Errorf(signatureEncodingErrorTemplateConstant, decodeError)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if subtle.ConstantTimeCompare(mac.Sum(nil), providedSignature) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}
