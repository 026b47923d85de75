package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/digkill/ValuationAPI/internal/models"
)

const providerStripe = "stripe"

var (
	ErrInvalidSignature = errors.New("stripe signature verification failed")
	ErrInvalidPurchase  = errors.New("invalid credit purchase data")
)

type PaymentUserStore interface {
	FindByStripeCustomer(ctx context.Context, customerID string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	SetSubscriptionStatus(ctx context.Context, customerID, status string) (bool, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, provider, chargeID, status, payload string) error
	FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error)
}

// CheckoutGateway is the subset of the Stripe API used for purchases.
type CheckoutGateway interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) CheckoutGateway {
	return &stripeGateway{api: client.New(secretKey, nil)}
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{"user_id": userID},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return g.api.CheckoutSessions.New(params)
}

type PaymentSettings struct {
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
	CostPerReport int
}

type PaymentService struct {
	settings PaymentSettings
	gateway  CheckoutGateway
	users    PaymentUserStore
	payments PaymentStore
	packages *PackageService
	ledger   *LedgerService
	alerts   Alerter
	log      *slog.Logger
}

func NewPaymentService(settings PaymentSettings, gateway CheckoutGateway, users PaymentUserStore, payments PaymentStore, packages *PackageService, ledger *LedgerService, alerts Alerter, log *slog.Logger) *PaymentService {
	return &PaymentService{
		settings: settings,
		gateway:  gateway,
		users:    users,
		payments: payments,
		packages: packages,
		ledger:   ledger,
		alerts:   alerts,
		log:      log,
	}
}

type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateCheckout opens a Stripe Checkout Session for one credit package.
func (s *PaymentService) CreateCheckout(ctx context.Context, user *models.User, packageID int64) (*CheckoutResult, error) {
	pkg, err := s.packages.GetActive(ctx, packageID)
	if err != nil {
		return nil, err
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, user.Email, user.ID)
		if err != nil {
			return nil, fmt.Errorf("create stripe customer: %w", err)
		}
		if err := s.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			return nil, fmt.Errorf("store stripe customer: %w", err)
		}
	}

	metadata := map[string]string{
		"user_id":    user.ID,
		"type":       "credits",
		"package_id": strconv.FormatInt(pkg.ID, 10),
		"credits":    strconv.Itoa(pkg.Credits),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(s.settings.SuccessURL),
		CancelURL:  stripe.String(s.settings.CancelURL),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{s.lineItem(pkg)},
		Metadata:   metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	sess, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	pkgID := pkg.ID
	record := &models.Payment{
		UserID:         user.ID,
		PackageID:      &pkgID,
		Provider:       providerStripe,
		ProviderCharge: sess.ID,
		Currency:       pkg.Currency,
		Amount:         pkg.PriceCents,
		Status:         "pending",
		RawPayload:     "{}",
	}
	if err := s.payments.Create(ctx, record); err != nil {
		// the webhook still credits the user; only the pending record is lost
		s.log.Warn("record pending payment", "session_id", sess.ID, "err", err)
	}
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *PaymentService) lineItem(pkg *models.CreditPackage) *stripe.CheckoutSessionLineItemParams {
	if pkg.StripePriceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(pkg.StripePriceID),
			Quantity: stripe.Int64(1),
		}
	}
	currency := pkg.Currency
	if currency == "" {
		currency = s.settings.Currency
	}
	description := fmt.Sprintf("%d credits for property valuations", pkg.Credits)
	if s.settings.CostPerReport > 0 {
		description = fmt.Sprintf("%d credits for property valuations (%d credits per valuation)", pkg.Credits, s.settings.CostPerReport)
	}
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(fmt.Sprintf("%s - %d Credits", pkg.Name, pkg.Credits)),
				Description: stripe.String(description),
			},
			UnitAmount: stripe.Int64(int64(pkg.PriceCents)),
		},
		Quantity: stripe.Int64(1),
	}
}

// HandleWebhook verifies and applies a Stripe event. Redelivered events are safe:
// the ledger credit is keyed by the payment reference.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.settings.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: decode session: %v", ErrInvalidPurchase, err)
		}
		return s.completeCheckout(ctx, &sess, payload)
	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.updateSubscription(ctx, &sub, string(event.Type))
	default:
		s.log.Debug("stripe event ignored", "type", event.Type, "event_id", event.ID)
	}
	return nil
}

func (s *PaymentService) completeCheckout(ctx context.Context, sess *stripe.CheckoutSession, payload []byte) error {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.log.Info("checkout not paid yet", "session_id", sess.ID, "status", sess.PaymentStatus)
		return nil
	}
	if sess.Metadata["type"] != "credits" {
		s.log.Info("checkout is not a credit purchase", "session_id", sess.ID)
		return nil
	}

	userID := sess.Metadata["user_id"]
	if userID == "" && sess.Customer != nil && sess.Customer.ID != "" {
		user, err := s.users.FindByStripeCustomer(ctx, sess.Customer.ID)
		if err != nil {
			return fmt.Errorf("find user by stripe customer: %w", err)
		}
		if user != nil {
			userID = user.ID
		}
	}
	credits, _ := strconv.Atoi(sess.Metadata["credits"])
	if userID == "" || credits <= 0 {
		s.log.Error("invalid credit purchase", "session_id", sess.ID, "user_id", userID, "credits", credits)
		return ErrInvalidPurchase
	}

	var packageID *int64
	if id, err := strconv.ParseInt(sess.Metadata["package_id"], 10, 64); err == nil && id > 0 {
		packageID = &id
	} else if pending, err := s.payments.FindByProviderCharge(ctx, providerStripe, sess.ID); err != nil {
		s.log.Warn("load pending payment", "session_id", sess.ID, "err", err)
	} else if pending != nil {
		packageID = pending.PackageID
	}

	externalRef := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		externalRef = sess.PaymentIntent.ID
	}

	applied, err := s.ledger.Credit(ctx, userID, credits, models.TransactionPurchased,
		fmt.Sprintf("Purchased %d credits", credits), externalRef, packageID)
	if err != nil {
		return fmt.Errorf("credit purchase: %w", err)
	}
	if err := s.payments.UpdateStatus(ctx, providerStripe, sess.ID, "paid", string(payload)); err != nil {
		s.log.Warn("mark payment paid", "session_id", sess.ID, "err", err)
	}
	if !applied {
		return nil
	}

	s.log.Info("credits purchased", "user_id", userID, "credits", credits, "external_ref", externalRef)
	if s.alerts != nil {
		text := fmt.Sprintf("Credit purchase: user %s bought %d credits (%s %.2f)",
			userID, credits, sess.Currency, float64(sess.AmountTotal)/100)
		if err := s.alerts.Notify(ctx, text); err != nil {
			s.log.Warn("purchase alert", "err", err)
		}
	}
	return nil
}

func (s *PaymentService) updateSubscription(ctx context.Context, sub *stripe.Subscription, eventType string) error {
	if sub.Customer == nil || sub.Customer.ID == "" {
		s.log.Warn("subscription event without customer", "subscription_id", sub.ID)
		return nil
	}
	status := string(sub.Status)
	if eventType == "customer.subscription.deleted" {
		status = string(stripe.SubscriptionStatusCanceled)
	}
	found, err := s.users.SetSubscriptionStatus(ctx, sub.Customer.ID, status)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if !found {
		s.log.Warn("subscription for unknown customer", "customer_id", sub.Customer.ID)
	}
	return nil
}
