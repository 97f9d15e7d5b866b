package service

import (
	"context"

	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/provider"
)

// The interfaces below are satisfied by the repository, storage, provider and
// feed packages. Services depend on them so tests can substitute fakes.

type CreditStore interface {
	Credits(ctx context.Context, uid string) (int, error)
	DebitCredits(ctx context.Context, uid string, amount int) (bool, error)
	AddCredits(ctx context.Context, uid string, amount int) error
}

type MediaStore interface {
	Insert(ctx context.Context, item *models.MediaItem) error
	InsertCharged(ctx context.Context, item *models.MediaItem, cost int) (bool, error)
	ListByUser(ctx context.Context, kind models.MediaKind, userID string) ([]models.MediaItem, error)
	GetByID(ctx context.Context, kind models.MediaKind, id string) (*models.MediaItem, error)
	FindGroup(ctx context.Context, userID, key string) ([]models.MediaItem, error)
	DeleteItems(ctx context.Context, items []models.MediaItem) error
}

type ObjectStore interface {
	Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
	MakePublic(ctx context.Context, objectPath string) error
	Delete(ctx context.Context, objectPath string) error
}

type ProviderLookup interface {
	Lookup(name string, kind models.MediaKind) (provider.Provider, error)
}

// ChangeNotifier tells live subscribers that a user's collection changed.
type ChangeNotifier interface {
	Notify(ctx context.Context, kind models.MediaKind, uid string) error
}

type UserStore interface {
	FindByUID(ctx context.Context, uid string) (*models.UserProfile, error)
	Ensure(ctx context.Context, uid, email string, emailVerified bool, signupCredits int) (*models.UserProfile, bool, error)
	SetUsername(ctx context.Context, uid, username string) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	SetShowAds(ctx context.Context, uid string, show bool) error
}

type PaymentStore interface {
	Create(ctx context.Context, sub *models.PaymentSubmission) error
	GetByID(ctx context.Context, id string) (*models.PaymentSubmission, error)
	FindByReference(ctx context.Context, referenceID string) (*models.PaymentSubmission, error)
	List(ctx context.Context, pendingOnly bool) ([]models.PaymentSubmission, error)
	ListByUser(ctx context.Context, userID string) ([]models.PaymentSubmission, error)
	Approve(ctx context.Context, id string) (*models.PaymentSubmission, error)
}

type PaymentNotifier interface {
	PaymentSubmitted(ctx context.Context, sub *models.PaymentSubmission) error
	PaymentApproved(ctx context.Context, sub *models.PaymentSubmission) error
}

type PlanStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	GetDefault(ctx context.Context) (*models.Plan, error)
	GetByID(ctx context.Context, id int64) (*models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Update(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Delete(ctx context.Context, id int64) error
}

type PromoStore interface {
	GetByID(ctx context.Context, id int64) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	Create(ctx context.Context, code string, maxUses int) (*models.PromoCode, error)
	Update(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Delete(ctx context.Context, id int64) error
	Redeem(ctx context.Context, userID, code string, bonus int) error
}
