package sharing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ruteri/wallet-kernel/cryptoutils"
)

// ErrRecoveryComplete is returned when shares are submitted after the
// secret has already been reconstructed.
var ErrRecoveryComplete = errors.New("recovery already complete")

// Recovery collects shares one at a time, for example from guardians
// submitting over separate requests, and reconstructs the secret as soon as
// the threshold is met. Received shares are wiped after reconstruction.
type Recovery struct {
	mu        sync.Mutex
	splitID    uuid.UUID
	threshold  int
	total      int
	payloadLen int
	received   map[int]Share
	secret    cryptoutils.Secret
}

func NewRecovery() *Recovery {
	return &Recovery{received: make(map[int]Share)}
}

// Submit adds a share. It reports true once the secret is available.
// Shares that disagree with the first accepted one (split, threshold, total
// or payload length), or that make reconstruction fail, are rejected with
// ErrInconsistentShares and do not disturb the collected set.
func (r *Recovery) Submit(share Share) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.secret != nil {
		return true, ErrRecoveryComplete
	}
	if err := share.validate(); err != nil {
		return false, err
	}

	if len(r.received) == 0 {
		r.splitID = share.SplitID
		r.threshold = share.Threshold
		r.total = share.Total
		r.payloadLen = len(share.Payload)
	} else if err := r.matches(share); err != nil {
		return false, err
	}

	if prev, ok := r.received[share.Index]; ok {
		if !bytes.Equal(prev.Payload, share.Payload) {
			return false, fmt.Errorf("%w: conflicting payloads for index %d", ErrInconsistentShares, share.Index)
		}
		return false, nil
	}

	share.Payload = bytes.Clone(share.Payload)
	r.received[share.Index] = share

	return r.tryReconstruct(share.Index)
}

func (r *Recovery) matches(share Share) error {
	switch {
	case share.SplitID != r.splitID:
		return fmt.Errorf("%w: expected split %s, got %s", ErrInconsistentShares, r.splitID, share.SplitID)
	case share.Threshold != r.threshold || share.Total != r.total:
		return fmt.Errorf("%w: threshold/total mismatch", ErrInconsistentShares)
	case len(share.Payload) != r.payloadLen:
		return fmt.Errorf("%w: payload length mismatch", ErrInconsistentShares)
	}
	return nil
}

// tryReconstruct drops the share at index again if reconstruction fails.
func (r *Recovery) tryReconstruct(index int) (bool, error) {
	if len(r.received) < r.threshold {
		return false, nil
	}

	shares := make([]Share, 0, len(r.received))
	for _, s := range r.received {
		shares = append(shares, s)
	}

	secret, err := Reconstruct(shares)
	if err != nil {
		added := r.received[index]
		added.Zero()
		delete(r.received, index)
		return false, err
	}
	r.secret = secret

	r.wipeReceived()
	return true, nil
}

// Missing returns how many more distinct shares are needed, or -1 before the
// first share has been submitted.
func (r *Recovery) Missing() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.secret != nil {
		return 0
	}
	if r.threshold == 0 {
		return -1
	}
	return r.threshold - len(r.received)
}

// Secret returns a copy of the reconstructed secret.
func (r *Recovery) Secret() (cryptoutils.Secret, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.secret == nil {
		return nil, false
	}
	return r.secret.Clone(), true
}

// Reset wipes everything collected so far, including a reconstructed secret.
func (r *Recovery) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wipeReceived()
	r.secret.Zero()
	r.secret = nil
	r.splitID = uuid.Nil
	r.threshold = 0
	r.total = 0
	r.payloadLen = 0
}

func (r *Recovery) wipeReceived() {
	for i := range r.received {
		s := r.received[i]
		s.Zero()
	}
	r.received = make(map[int]Share)
}
