package models

import (
	"errors"
	"time"
)

// ErrMalformedValuation marks provider output that could not be decoded into a Valuation.
var ErrMalformedValuation = errors.New("malformed valuation response")

type TransactionType string

const (
	TransactionPurchased TransactionType = "purchased"
	TransactionSpent     TransactionType = "spent"
	TransactionBonus     TransactionType = "bonus"
	TransactionRefund    TransactionType = "refund"
)

type User struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email"`
	Credits               int       `json:"credits"`
	TotalCreditsPurchased int       `json:"totalCreditsPurchased"`
	StripeCustomerID      string    `json:"stripeCustomerId,omitempty"`
	SubscriptionStatus    string    `json:"subscriptionStatus,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

type CreditTransaction struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"userId"`
	Amount      int             `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	PackageID   *int64          `json:"packageId,omitempty"`
	ExternalRef string          `json:"externalRef,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type PropertyDetails struct {
	Address         string   `json:"address,omitempty"`
	PropertySize    *float64 `json:"propertySize,omitempty"`
	Bedrooms        *float64 `json:"bedrooms,omitempty"`
	Bathrooms       *float64 `json:"bathrooms,omitempty"`
	AdditionalNotes string   `json:"additionalNotes,omitempty"`
}

// Image is one decoded input photo.
type Image struct {
	Data     []byte
	MimeType string
}

type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type SuggestedUpgrade struct {
	Upgrade       string `json:"upgrade"`
	Reasoning     string `json:"reasoning"`
	EstimatedCost string `json:"estimatedCost"`
	ImpactOnValue string `json:"impactOnValue"`
	Priority      string `json:"priority,omitempty"`
	Timeline      string `json:"timeline,omitempty"`
}

type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Valuation is the structured provider output before it becomes a Report.
type Valuation struct {
	EstimatedValueRange *ValueRange        `json:"estimatedValueRange"`
	ConfidenceScore     float64            `json:"confidenceScore"`
	Currency            string             `json:"currency"`
	Reasoning           string             `json:"reasoning"`
	DetectedFeatures    []string           `json:"detectedFeatures"`
	PropertyType        string             `json:"propertyType"`
	PropertyCondition   string             `json:"propertyCondition"`
	ArchitecturalStyle  string             `json:"architecturalStyle,omitempty"`
	YearBuilt           string             `json:"yearBuilt,omitempty"`
	SquareFootage       string             `json:"squareFootage,omitempty"`
	LotSize             string             `json:"lotSize,omitempty"`
	KeyValueDrivers     []string           `json:"keyValueDrivers,omitempty"`
	PotentialConcerns   []string           `json:"potentialConcerns,omitempty"`
	MarketPositioning   string             `json:"marketPositioning,omitempty"`
	SuggestedUpgrades   []SuggestedUpgrade `json:"suggestedUpgrades"`
	Sources             []GroundingSource  `json:"sources,omitempty"`
	LowImageDiversity   bool               `json:"lowImageDiversity,omitempty"`
}

// Report is a persisted valuation owned by a user.
type Report struct {
	Valuation
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	PreviewImage    string          `json:"previewImage"`
	PropertyDetails PropertyDetails `json:"propertyDetails"`
	InputHash       string          `json:"inputHash"`
	DetailedReport  string          `json:"detailedReport,omitempty"`
	ShareToken      string          `json:"-"`
	Timestamp       time.Time       `json:"timestamp"`
}

type CreditPackage struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Credits            int       `json:"credits"`
	PriceCents         int       `json:"priceCents"`
	OriginalPriceCents *int      `json:"originalPriceCents,omitempty"`
	Currency           string    `json:"currency"`
	StripePriceID      string    `json:"stripePriceId,omitempty"`
	Popular            bool      `json:"popular"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type PromoCode struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	BonusCredits int       `json:"bonusCredits"`
	MaxUses      int       `json:"maxUses"`
	Uses         int       `json:"uses"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Payment struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"userId"`
	PackageID      *int64    `json:"packageId,omitempty"`
	Provider       string    `json:"provider"`
	ProviderCharge string    `json:"providerCharge"`
	Currency       string    `json:"currency"`
	Amount         int       `json:"amount"`
	Status         string    `json:"status"`
	RawPayload     string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type ValuationLog struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	InputHash string    `json:"inputHash"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"createdAt"`
}
