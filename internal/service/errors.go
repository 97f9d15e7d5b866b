package service

import (
	"errors"

	"github.com/digkill/visionhub/internal/repository"
)

var (
	// ErrInsufficientCredits is returned unwrapped so callers can show the upsell path.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrGenerationDisabled  = errors.New("generation backends are not configured")

	ErrUsernameTaken          = repository.ErrUsernameTaken
	ErrUsernameAlreadySet     = repository.ErrUsernameAlreadySet
	ErrPaymentAlreadyApproved = repository.ErrPaymentAlreadyApproved
	ErrPromoInvalid           = repository.ErrPromoInvalid
	ErrPromoExhausted         = repository.ErrPromoExhausted
	ErrPromoAlreadyRedeemed   = repository.ErrPromoAlreadyRedeemed
)
