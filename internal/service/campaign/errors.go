package campaign

import (
	"errors"
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/messaging"
	"github.com/ignite/campaign-dispatch/internal/service/recipient"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound             = errors.New("campaign not found")
	ErrInvalidCampaignState = errors.New("invalid campaign state")
	ErrInvalidInput         = errors.New("invalid campaign input")
	ErrInvalidTargeting     = recipient.ErrInvalidTargeting
	ErrInvalidTemplate      = messaging.ErrInvalidTemplate
	ErrMessageNotFound      = errors.New("message not found")
	ErrServiceNotFound      = errors.New("service not found")
)

func invalidState(op string, status domain.CampaignStatus) error {
	return fmt.Errorf("%w: cannot %s a %s campaign", ErrInvalidCampaignState, op, status)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
