package sharing

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/hashicorp/vault/shamir"
	"github.com/ruteri/wallet-kernel/cryptoutils"
)

// MaxShares is the largest number of shares a single split can produce.
// GF(2^8) interpolation allows at most 255 distinct x-coordinates.
const MaxShares = 255

var (
	// ErrInvalidParameters is returned for threshold 0, threshold above the
	// share count, a share count above MaxShares, or an empty secret.
	ErrInvalidParameters = errors.New("invalid secret sharing parameters")

	// ErrInsufficientShares is returned when fewer distinct shares than the
	// threshold are supplied.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInconsistentShares is returned when shares come from different split
	// operations or disagree with each other.
	ErrInconsistentShares = errors.New("inconsistent shares")

	// ErrMalformedShare is returned when a share cannot be decoded or carries
	// out-of-range metadata.
	ErrMalformedShare = errors.New("malformed share")
)

// Share is one fragment of a split secret. Index runs from 1 to Total and
// SplitID identifies the Split call that produced it.
type Share struct {
	SplitID   uuid.UUID
	Index     int
	Threshold int
	Total     int
	Payload   []byte
}

// String never includes the payload.
func (s Share) String() string {
	return fmt.Sprintf("share(split=%s index=%d/%d threshold=%d)", s.SplitID, s.Index, s.Total, s.Threshold)
}

func (s Share) GoString() string { return s.String() }

// Format keeps the payload out of every fmt verb.
func (s Share) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(s.String()))
}

// Zero scrubs the payload.
func (s *Share) Zero() {
	cryptoutils.ZeroBytes(s.Payload)
}

func (s Share) validate() error {
	if s.Threshold < 1 || s.Total < s.Threshold || s.Total > MaxShares {
		return fmt.Errorf("%w: threshold %d of %d", ErrMalformedShare, s.Threshold, s.Total)
	}
	if s.Index < 1 || s.Index > s.Total {
		return fmt.Errorf("%w: index %d out of range 1..%d", ErrMalformedShare, s.Index, s.Total)
	}
	if len(s.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedShare)
	}
	return nil
}

// GeneratedShares is the complete output of one Split call.
type GeneratedShares struct {
	SplitID   uuid.UUID
	Threshold int
	Total     int
	Shares    []Share
}

// Zero scrubs every share payload.
func (g *GeneratedShares) Zero() {
	for i := range g.Shares {
		g.Shares[i].Zero()
	}
}

// Split divides secret into total shares such that any threshold of them
// reconstruct it and fewer reveal nothing. For threshold 1 every share
// carries the secret itself.
func Split(secret []byte, total, threshold int) (*GeneratedShares, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: cannot split an empty secret", ErrInvalidParameters)
	}
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be at least 1", ErrInvalidParameters)
	}
	if threshold > total {
		return nil, fmt.Errorf("%w: threshold %d exceeds total shares %d", ErrInvalidParameters, threshold, total)
	}
	if total > MaxShares {
		return nil, fmt.Errorf("%w: total shares %d exceeds maximum %d", ErrInvalidParameters, total, MaxShares)
	}

	splitID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate split id: %w", err)
	}

	var parts [][]byte
	if threshold == 1 {
		parts = make([][]byte, total)
		for i := range parts {
			parts[i] = bytes.Clone(secret)
		}
	} else {
		parts, err = shamir.Split(secret, total, threshold)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
		}
	}

	generated := &GeneratedShares{
		SplitID:   splitID,
		Threshold: threshold,
		Total:     total,
		Shares:    make([]Share, total),
	}
	for i, part := range parts {
		generated.Shares[i] = Share{
			SplitID:   splitID,
			Index:     i + 1,
			Threshold: threshold,
			Total:     total,
			Payload:   part,
		}
	}
	return generated, nil
}

// Reconstruct recovers the secret from at least Threshold distinct shares of
// one split. The result does not depend on the order of shares. When more
// shares than the threshold are supplied, a second subset is combined as a
// cross-check so a tampered share is reported as ErrInconsistentShares.
func Reconstruct(shares []Share) (cryptoutils.Secret, error) {
	distinct, err := collect(shares)
	if err != nil {
		return nil, err
	}

	threshold := distinct[0].Threshold
	secret, err := combine(distinct[:threshold])
	if err != nil {
		return nil, err
	}

	if len(distinct) > threshold {
		check, err := combine(distinct[len(distinct)-threshold:])
		if err != nil {
			secret.Zero()
			return nil, err
		}
		defer check.Zero()
		if !secret.Equal(check) {
			secret.Zero()
			return nil, fmt.Errorf("%w: share subsets disagree", ErrInconsistentShares)
		}
	}

	return secret, nil
}

// collect validates shares against each other and returns one share per
// index, sorted by index.
func collect(shares []Share) ([]Share, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares supplied", ErrInsufficientShares)
	}

	ref := shares[0]
	byIndex := make(map[int]Share, len(shares))
	for _, s := range shares {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if s.SplitID != ref.SplitID {
			return nil, fmt.Errorf("%w: shares belong to splits %s and %s", ErrInconsistentShares, ref.SplitID, s.SplitID)
		}
		if s.Threshold != ref.Threshold || s.Total != ref.Total {
			return nil, fmt.Errorf("%w: threshold/total mismatch", ErrInconsistentShares)
		}
		if len(s.Payload) != len(ref.Payload) {
			return nil, fmt.Errorf("%w: payload length mismatch", ErrInconsistentShares)
		}
		if prev, ok := byIndex[s.Index]; ok {
			if !bytes.Equal(prev.Payload, s.Payload) {
				return nil, fmt.Errorf("%w: conflicting payloads for index %d", ErrInconsistentShares, s.Index)
			}
			continue
		}
		byIndex[s.Index] = s
	}

	if len(byIndex) < ref.Threshold {
		return nil, fmt.Errorf("%w: have %d distinct shares, need %d", ErrInsufficientShares, len(byIndex), ref.Threshold)
	}

	distinct := make([]Share, 0, len(byIndex))
	for _, s := range byIndex {
		distinct = append(distinct, s)
	}
	slices.SortFunc(distinct, func(a, b Share) int { return a.Index - b.Index })
	return distinct, nil
}

func combine(shares []Share) (cryptoutils.Secret, error) {
	if len(shares) == 1 {
		return cryptoutils.SecretFromBytes(shares[0].Payload), nil
	}

	parts := make([][]byte, len(shares))
	for i, s := range shares {
		parts[i] = s.Payload
	}

	secret, err := shamir.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentShares, err)
	}
	return cryptoutils.Secret(secret), nil
}
