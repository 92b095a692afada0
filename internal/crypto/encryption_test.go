package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyV1  = "MDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDA="
	testKeyV2  = "MTIzNDU2Nzg5MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTI="
	testHMAC   = "MTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMTE="
)

func TestNewFieldEncryptorRejectsBadKeys(t *testing.T) {
	_, err := NewFieldEncryptor(nil, 1, testHMAC)
	require.Error(t, err)

	_, err = NewFieldEncryptor([]string{"not-base64!!"}, 1, testHMAC)
	require.Error(t, err)

	_, err = NewFieldEncryptor([]string{"c2hvcnQ="}, 1, testHMAC)
	require.Error(t, err, "a key shorter than 32 bytes must be rejected")

	_, err = NewFieldEncryptor([]string{testKeyV1}, 2, testHMAC)
	require.Error(t, err, "currentVersion must reference a supplied key")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	ciphertext, version, err := enc.Encrypt("BVN-12345678901")
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.NotEqual(t, "BVN-12345678901", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext, version)
	require.NoError(t, err)
	assert.Equal(t, "BVN-12345678901", plaintext)
}

func TestEncryptProducesDistinctCiphertextsPerCall(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	a, _, err := enc.Encrypt("same value")
	require.NoError(t, err)
	b, _, err := enc.Encrypt("same value")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "random nonce must make each encryption unique")
}

func TestDecryptRejectsUnknownKeyVersion(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	ciphertext, _, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc.Decrypt(ciphertext, 99)
	require.Error(t, err)
}

func TestRotateKeyMovesCurrentVersionForward(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	oldCiphertext, oldVersion, err := enc.Encrypt("pre-rotation")
	require.NoError(t, err)

	require.NoError(t, enc.RotateKey(testKeyV2, 2))
	assert.Equal(t, 2, enc.CurrentKeyVersion())

	newCiphertext, newVersion, err := enc.Encrypt("post-rotation")
	require.NoError(t, err)
	assert.Equal(t, 2, newVersion)

	// Old ciphertext must still decrypt under its original version.
	plaintext, err := enc.Decrypt(oldCiphertext, oldVersion)
	require.NoError(t, err)
	assert.Equal(t, "pre-rotation", plaintext)

	plaintext, err = enc.Decrypt(newCiphertext, newVersion)
	require.NoError(t, err)
	assert.Equal(t, "post-rotation", plaintext)
}

func TestReEncryptMigratesToCurrentVersion(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	oldCiphertext, oldVersion, err := enc.Encrypt("migrate me")
	require.NoError(t, err)

	require.NoError(t, enc.RotateKey(testKeyV2, 2))

	reEncrypted, newVersion, err := enc.ReEncrypt(oldCiphertext, oldVersion)
	require.NoError(t, err)
	assert.Equal(t, 2, newVersion)

	plaintext, err := enc.Decrypt(reEncrypted, newVersion)
	require.NoError(t, err)
	assert.Equal(t, "migrate me", plaintext)
}

func TestHashIsDeterministic(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	assert.Equal(t, enc.Hash("22334455667"), enc.Hash("22334455667"))
	assert.NotEqual(t, enc.Hash("22334455667"), enc.Hash("99887766554"))
}

func TestHMACVerification(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	sig := enc.HMAC("payload")
	assert.True(t, enc.VerifyHMAC("payload", sig))
	assert.False(t, enc.VerifyHMAC("tampered", sig))
}

func TestHashChainDetectsTampering(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	chain1 := enc.GenerateHashChain("", []byte("first record"))
	chain2 := enc.GenerateHashChain(chain1, []byte("second record"))

	assert.True(t, enc.VerifyHashChain(chain1, []byte("second record"), chain2))
	assert.False(t, enc.VerifyHashChain(chain1, []byte("tampered record"), chain2))
	assert.False(t, enc.VerifyHashChain("wrong-prev", []byte("second record"), chain2))
}

func TestDigitalSignatureVerification(t *testing.T) {
	enc, err := NewFieldEncryptor([]string{testKeyV1}, 1, testHMAC)
	require.NoError(t, err)

	sig := enc.GenerateDigitalSignature("evt-1", "user-1", "create", "2026-07-31T00:00:00Z", "success")
	assert.True(t, enc.VerifyDigitalSignature("evt-1", "user-1", "create", "2026-07-31T00:00:00Z", "success", sig))
	assert.False(t, enc.VerifyDigitalSignature("evt-1", "user-1", "create", "2026-07-31T00:00:00Z", "failure", sig))
}

func TestMaskPIIByType(t *testing.T) {
	assert.Equal(t, "", MaskPII("", "email"))
	assert.Equal(t, "a***@bank.ng", MaskPII("ada.okoye@bank.ng", "email"))
	assert.Equal(t, "08***4567", MaskPII("08011234567", "phone"))
	assert.Equal(t, "*******8901", MaskPII("12345678901", "bvn"))
	assert.Equal(t, "*******8901", MaskPII("12345678901", "nin"))
	assert.Equal(t, "****1234", MaskPII("0123456781234", "account"))
	assert.Equal(t, "A***", MaskPII("Ada Okoye", "name"))
	assert.Equal(t, "***MASKED***", MaskPII("anything", "unknown"))
}
