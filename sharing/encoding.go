package sharing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ruteri/wallet-kernel/cryptoutils"
)

// SharePrefix marks the text form of a version 1 share.
const SharePrefix = "wks1-"

const (
	shareVersion  = 1
	headerSize    = 1 + 16 + 1 + 1 + 1 + 2
	checksumSize  = 4
	maxPayloadLen = 1<<16 - 1
)

var shareEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Encode renders the share for out-of-band transcription:
//
//	"wks1-" + base32(version | splitID | threshold | total | index | payloadLen | payload | checksum)
//
// The checksum is the first four bytes of SHA-256 over everything before it.
// The returned string contains the secret payload.
func (s Share) Encode() (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}
	if len(s.Payload) > maxPayloadLen {
		return "", fmt.Errorf("%w: payload too large", ErrMalformedShare)
	}

	raw := make([]byte, 0, headerSize+len(s.Payload)+checksumSize)
	raw = append(raw, shareVersion)
	raw = append(raw, s.SplitID[:]...)
	raw = append(raw, byte(s.Threshold), byte(s.Total), byte(s.Index))
	raw = binary.BigEndian.AppendUint16(raw, uint16(len(s.Payload)))
	raw = append(raw, s.Payload...)
	sum := sha256.Sum256(raw)
	raw = append(raw, sum[:checksumSize]...)
	defer cryptoutils.ZeroBytes(raw)

	return SharePrefix + shareEncoding.EncodeToString(raw), nil
}

// ParseShare decodes the text form produced by Encode. Whitespace and case
// are ignored so hand-copied shares parse.
func ParseShare(text string) (Share, error) {
	text = strings.ToUpper(strings.Join(strings.Fields(text), ""))
	prefix := strings.ToUpper(SharePrefix)
	if !strings.HasPrefix(text, prefix) {
		return Share{}, fmt.Errorf("%w: missing %q prefix", ErrMalformedShare, SharePrefix)
	}

	raw, err := shareEncoding.DecodeString(strings.TrimPrefix(text, prefix))
	if err != nil {
		return Share{}, fmt.Errorf("%w: %v", ErrMalformedShare, err)
	}
	defer cryptoutils.ZeroBytes(raw)

	if len(raw) < headerSize+checksumSize {
		return Share{}, fmt.Errorf("%w: too short", ErrMalformedShare)
	}

	body, checksum := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	sum := sha256.Sum256(body)
	if subtle.ConstantTimeCompare(sum[:checksumSize], checksum) != 1 {
		return Share{}, fmt.Errorf("%w: checksum mismatch", ErrMalformedShare)
	}

	if body[0] != shareVersion {
		return Share{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedShare, body[0])
	}

	splitID, err := uuid.FromBytes(body[1:17])
	if err != nil {
		return Share{}, fmt.Errorf("%w: %v", ErrMalformedShare, err)
	}

	payloadLen := int(binary.BigEndian.Uint16(body[20:22]))
	if len(body) != headerSize+payloadLen {
		return Share{}, fmt.Errorf("%w: payload length mismatch", ErrMalformedShare)
	}

	share := Share{
		SplitID:   splitID,
		Threshold: int(body[17]),
		Total:     int(body[18]),
		Index:     int(body[19]),
		Payload:   append([]byte(nil), body[headerSize:]...),
	}
	if err := share.validate(); err != nil {
		share.Zero()
		return Share{}, err
	}
	return share, nil
}

// SealForGuardian encrypts the encoded share to a guardian's public key.
func SealForGuardian(s Share, guardian cryptoutils.GuardianPubkey) ([]byte, error) {
	encoded, err := s.Encode()
	if err != nil {
		return nil, err
	}
	return cryptoutils.EncryptForGuardian(guardian, []byte(encoded))
}

// OpenSealedShare is the guardian-side inverse of SealForGuardian.
func OpenSealedShare(sealed []byte, priv cryptoutils.GuardianPrivkey) (Share, error) {
	plain, err := cryptoutils.DecryptAsGuardian(priv, sealed)
	if err != nil {
		return Share{}, err
	}
	defer cryptoutils.ZeroBytes(plain)
	return ParseShare(string(plain))
}
