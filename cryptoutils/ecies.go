package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// EncryptForGuardian encrypts data to a guardian's P-256 public key using
// ECIES: ephemeral ECDH, SHA-256 of the shared x-coordinate as AES key,
// AES-GCM for the payload.
//
// Format: [ephemeral key length (2 bytes)][ephemeral key][nonce (12 bytes)][ciphertext]
func EncryptForGuardian(pub GuardianPubkey, data []byte) ([]byte, error) {
	publicKey, err := pub.ECDSA()
	if err != nil {
		return nil, err
	}

	ephemeralKey, err := ecdsa.GenerateKey(publicKey.Curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	x, _ := publicKey.Curve.ScalarMult(publicKey.X, publicKey.Y, ephemeralKey.D.Bytes())
	sharedSecret := sha256.Sum256(x.Bytes())
	defer ZeroBytes(sharedSecret[:])

	nonce, ciphertext, err := Seal(Secret(sharedSecret[:]), data, nil)
	if err != nil {
		return nil, err
	}

	ephemeralPublicKeyBytes := elliptic.Marshal(ephemeralKey.Curve, ephemeralKey.X, ephemeralKey.Y)

	result := make([]byte, 0, 2+len(ephemeralPublicKeyBytes)+len(nonce)+len(ciphertext))
	result = binary.BigEndian.AppendUint16(result, uint16(len(ephemeralPublicKeyBytes)))
	result = append(result, ephemeralPublicKeyBytes...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

// DecryptAsGuardian reverses EncryptForGuardian with the guardian's private key.
func DecryptAsGuardian(priv GuardianPrivkey, encryptedData []byte) ([]byte, error) {
	privateKey, err := priv.ECDSA()
	if err != nil {
		return nil, err
	}

	if len(encryptedData) < 2 {
		return nil, errors.New("encrypted data too short")
	}

	ephemeralKeyLen := int(binary.BigEndian.Uint16(encryptedData[0:2]))
	if len(encryptedData) < 2+ephemeralKeyLen+NonceSize {
		return nil, errors.New("encrypted data has invalid format")
	}

	ephemeralKeyBytes := encryptedData[2 : 2+ephemeralKeyLen]
	x, y := elliptic.Unmarshal(privateKey.Curve, ephemeralKeyBytes)
	if x == nil {
		return nil, errors.New("failed to unmarshal ephemeral public key")
	}

	xShared, _ := privateKey.Curve.ScalarMult(x, y, privateKey.D.Bytes())
	sharedSecret := sha256.Sum256(xShared.Bytes())
	defer ZeroBytes(sharedSecret[:])

	nonceStart := 2 + ephemeralKeyLen
	return Open(Secret(sharedSecret[:]), encryptedData[nonceStart:nonceStart+NonceSize], encryptedData[nonceStart+NonceSize:], nil)
}
