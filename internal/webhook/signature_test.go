package webhook_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/cascade/internal/webhook"
)

func TestVerifySignature(testInstance *testing.T) {
	secret := []byte(testSecretConstant)
	body := []byte(`{"zen":"Keep it logically awesome."}`)

	testCases := []struct {
		name          string
		secret        []byte
		header        string
		expectedError error
		expectError   bool
	}{
		{name: "valid", secret: secret, header: webhook.Sign(secret, body)},
		{name: "bare_digest_without_prefix", secret: secret, header: webhook.Sign(secret, body)[len("sha256="):], expectedError: webhook.ErrSignatureMismatch, expectError: true},
		{name: "other_algorithm_prefix", secret: secret, header: "sha1=" + webhook.Sign(secret, body)[len("sha256="):], expectedError: webhook.ErrSignatureMismatch, expectError: true},
		{name: "missing_header", secret: secret, header: "", expectedError: webhook.ErrSignatureMissing, expectError: true},
		{name: "wrong_secret", secret: secret, header: webhook.Sign([]byte("other"), body), expectedError: webhook.ErrSignatureMismatch, expectError: true},
		{name: "not_hex", secret: secret, header: "sha256=zzzz", expectError: true},
		{name: "truncated", secret: secret, header: webhook.Sign(secret, body)[:21], expectedError: webhook.ErrSignatureMismatch, expectError: true},
		{name: "empty_secret", secret: nil, header: webhook.Sign(secret, body), expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			verificationError := webhook.VerifySignature(testCase.secret, body, testCase.header)
			if !testCase.expectError {
				require.NoError(testInstance, verificationError)
				return
			}
			require.Error(testInstance, verificationError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, verificationError, testCase.expectedError)
			}
		})
	}
}
