package models

import "time"

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Collection returns the metadata table (and live-query channel) that stores items of this kind.
func (k MediaKind) Collection() string {
	if k == MediaVideo {
		return "videos"
	}
	return "images"
}

// MediaItem is one generated image or video. Items are immutable once written.
type MediaItem struct {
	ID        string    `json:"id"`
	Kind      MediaKind `json:"type"`
	UserID    string    `json:"userId"`
	URL       string    `json:"url"`
	Path      string    `json:"-"`
	Prompt    string    `json:"prompt"`
	PromptID  string    `json:"promptId,omitempty"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserProfile struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Username      *string   `json:"username"`
	Credits       int       `json:"credits"`
	ShowAds       bool      `json:"showAds"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type PaymentSubmission struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	PlanID         int64      `json:"planId"`
	Plan           string     `json:"plan"`
	Credits        int        `json:"credits"`
	PaymentSlipURL string     `json:"paymentSlipUrl"`
	ReferenceID    string     `json:"referenceId"`
	Approved       bool       `json:"approved"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type PromoCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	MaxUses   int       `json:"max_uses"`
	Uses      int       `json:"uses"`
	CreatedAt time.Time `json:"created_at"`
}

type Plan struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Currency        string    `json:"currency"`
	PriceMinorUnits int       `json:"price_minor_units"`
	Credits         int       `json:"credits"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PromptGroup is a derived, never persisted view of the items that share a prompt id.
type PromptGroup struct {
	PromptID   string      `json:"promptId"`
	Prompt     string      `json:"prompt"`
	Items      []MediaItem `json:"items"`
	CreatedAt  time.Time   `json:"createdAt"`
	CoverImage string      `json:"coverImage"`
	CoverType  MediaKind   `json:"coverType"`
}
