package sdk

import (
	"context"
	"fmt"

	"github.com/ruteri/wallet-kernel/interfaces"
)

// GetKycStatus fetches the partner KYC record for the active user and stores
// the mapped status on the user.
func (s *Sdk) GetKycStatus(ctx context.Context) (interfaces.ViviswapKycStatus, error) {
	const op = "get_kyc_status"
	if s.kyc == nil {
		return interfaces.ViviswapKycStatus{}, wrap(op, fmt.Errorf("%w: kyc provider", ErrNotConfigured))
	}
	// the provider authenticates on its own; the token only has to be
	// present and unexpired
	token, err := s.accessToken()
	if err != nil {
		return interfaces.ViviswapKycStatus{}, wrap(op, err)
	}
	token.Zero()

	user, err := s.activeUser(ctx)
	if err != nil {
		return interfaces.ViviswapKycStatus{}, wrap(op, err)
	}

	status, err := s.kyc.FetchKycStatus(ctx, user.Username)
	if err != nil {
		return interfaces.ViviswapKycStatus{}, wrap(op, external(err))
	}

	if mapped := status.KycStatus(); mapped != user.KycStatus {
		user.KycStatus = mapped
		if err := s.users.Update(ctx, user); err != nil {
			return interfaces.ViviswapKycStatus{}, wrap(op, err)
		}
	}
	return status, nil
}

// IsKycVerified refreshes the KYC status and reports whether it is verified.
func (s *Sdk) IsKycVerified(ctx context.Context) (bool, error) {
	status, err := s.GetKycStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.KycStatus() == interfaces.KycVerified, nil
}
