package vault

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ruteri/wallet-kernel/cryptoutils"
)

const (
	formatVersion = 1
	kdfArgon2id   = 1

	// magic | version | kdf id | time | memory | threads | key length | salt length
	fixedHeaderSize = 4 + 1 + 1 + 4 + 4 + 1 + 1 + 1

	// AES-GCM tag
	tagSize = 16
)

var magic = []byte("WKV1")

// header is the authenticated, unencrypted prefix of a vault file.
type header struct {
	params cryptoutils.KDFParams
	salt   []byte
}

func (h header) marshal() []byte {
	buf := make([]byte, 0, fixedHeaderSize+len(h.salt))
	buf = append(buf, magic...)
	buf = append(buf, formatVersion, kdfArgon2id)
	buf = binary.BigEndian.AppendUint32(buf, h.params.Time)
	buf = binary.BigEndian.AppendUint32(buf, h.params.MemoryKiB)
	buf = append(buf, h.params.Threads, byte(h.params.KeyLen), byte(len(h.salt)))
	buf = append(buf, h.salt...)
	return buf
}

// parsed splits a vault blob into its parts. aad aliases the header bytes.
type parsed struct {
	header     header
	aad        []byte
	nonce      []byte
	ciphertext []byte
}

func parse(blob []byte) (*parsed, error) {
	if len(blob) < fixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruption, len(blob))
	}
	if !bytes.Equal(blob[:4], magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruption)
	}
	if blob[4] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruption, blob[4])
	}
	if blob[5] != kdfArgon2id {
		return nil, fmt.Errorf("%w: unsupported kdf %d", ErrCorruption, blob[5])
	}

	params := cryptoutils.KDFParams{
		Time:      binary.BigEndian.Uint32(blob[6:10]),
		MemoryKiB: binary.BigEndian.Uint32(blob[10:14]),
		Threads:   blob[14],
		KeyLen:    uint32(blob[15]),
		SaltLen:   int(blob[16]),
	}

	headerLen := fixedHeaderSize + params.SaltLen
	if len(blob) < headerLen+cryptoutils.NonceSize+tagSize {
		return nil, fmt.Errorf("%w: truncated body", ErrCorruption)
	}

	return &parsed{
		header: header{
			params: params,
			salt:   blob[fixedHeaderSize:headerLen],
		},
		aad:        blob[:headerLen],
		nonce:      blob[headerLen : headerLen+cryptoutils.NonceSize],
		ciphertext: blob[headerLen+cryptoutils.NonceSize:],
	}, nil
}

// checkParams rejects headers written with a different KDF profile.
func (p *parsed) checkParams(want cryptoutils.KDFParams) error {
	if p.header.params != want {
		return fmt.Errorf("%w: kdf parameters %+v do not match configuration", ErrCorruption, p.header.params)
	}
	return nil
}

// seal encrypts payload under credentials with a fresh salt and nonce.
func seal(payload []byte, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword, params cryptoutils.KDFParams) ([]byte, error) {
	salt, err := cryptoutils.NewEncryptionSalt(params.SaltLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	defer salt.Zero()

	key, err := deriveKey(pin, password, salt, params)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	hdr := header{params: params, salt: salt.Reveal()}.marshal()
	nonce, ciphertext, err := cryptoutils.Seal(key, payload, hdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	blob := make([]byte, 0, len(hdr)+len(nonce)+len(ciphertext))
	blob = append(blob, hdr...)
	blob = append(blob, nonce...)
	return append(blob, ciphertext...), nil
}

// Decrypt opens a vault blob held in memory, such as an off-site backup.
func Decrypt(blob []byte, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword, params cryptoutils.KDFParams) (cryptoutils.Secret, error) {
	p, err := parse(blob)
	if err != nil {
		return nil, err
	}
	if err := p.checkParams(params); err != nil {
		return nil, err
	}

	key, err := deriveKey(pin, password, cryptoutils.EncryptionSaltFromBytes(p.header.salt), params)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	plaintext, err := cryptoutils.Open(key, p.nonce, p.ciphertext, p.aad)
	if err != nil {
		return nil, ErrWrongCredentials
	}
	return cryptoutils.Secret(plaintext), nil
}

func deriveKey(pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword, salt cryptoutils.EncryptionSalt, params cryptoutils.KDFParams) (cryptoutils.Secret, error) {
	material := cryptoutils.CredentialMaterial(pin, password)
	defer material.Zero()

	key, err := cryptoutils.DeriveKey(material, salt, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return key, nil
}
