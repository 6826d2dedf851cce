package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stripe amounts are in the currency's minor unit.
const minorUnitsPerWhole = 100

var (
	gatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tutorlink",
		Subsystem: "payment",
		Name:      "gateway_duration_seconds",
		Help:      "Duration of payment gateway calls",
	}, []string{"operation"})

	gatewayFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutorlink",
		Subsystem: "payment",
		Name:      "gateway_failures_total",
		Help:      "Number of failed payment gateway calls",
	}, []string{"operation"})
)

// StripeConfig defines the Stripe adapter configuration.
type StripeConfig struct {
	SecretKey string
	Currency  string
	Logger    zerolog.Logger
}

// StripeGateway implements Gateway with Stripe payment intents.
type StripeGateway struct {
	api      *client.API
	currency string
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewStripeGateway builds a gateway from the secret key.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "bdt"
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeGateway{
		api:      api,
		currency: currency,
		tracer:   otel.Tracer("github.com/noah-isme/tutorlink-api/pkg/payment/stripe"),
		logger:   cfg.Logger.With().Str("component", "stripe_gateway").Logger(),
	}, nil
}

// CreateIntent opens a payment intent for the requested amount.
func (g *StripeGateway) CreateIntent(parent context.Context, request IntentRequest) (Intent, error) {
	ctx, span := g.tracer.Start(parent, "stripe.create_intent", trace.WithAttributes(
		attribute.Int64("amount", request.Amount),
	))
	defer span.End()

	currency := g.currencyOf(request.Currency)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(request.Amount * minorUnitsPerWhole),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if request.Description != "" {
		params.Description = stripe.String(request.Description)
	}
	for key, value := range request.Metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx

	start := time.Now()
	intent, err := g.api.PaymentIntents.New(params)
	if err := g.observe("create_intent", start, span, err); err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}

	g.logger.Info().Str("intent_id", intent.ID).Int64("amount", request.Amount).Msg("payment intent created")

	return Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       request.Amount,
		Currency:     currency,
	}, nil
}

// Confirm fetches the intent and reports whether it succeeded.
func (g *StripeGateway) Confirm(parent context.Context, reference string) (Confirmation, error) {
	ctx, span := g.tracer.Start(parent, "stripe.confirm", trace.WithAttributes(
		attribute.String("intent_id", reference),
	))
	defer span.End()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	start := time.Now()
	intent, err := g.api.PaymentIntents.Get(reference, params)
	if err := g.observe("confirm", start, span, err); err != nil {
		return Confirmation{}, fmt.Errorf("retrieve payment intent: %w", err)
	}

	return Confirmation{
		Reference: intent.ID,
		Succeeded: intent.Status == stripe.PaymentIntentStatusSucceeded,
		Status:    string(intent.Status),
		Amount:    intent.Amount / minorUnitsPerWhole,
		Currency:  string(intent.Currency),
		Metadata:  intent.Metadata,
	}, nil
}

// Refund refunds a succeeded intent, fully when request.Amount is zero.
func (g *StripeGateway) Refund(parent context.Context, request RefundRequest) (Refund, error) {
	ctx, span := g.tracer.Start(parent, "stripe.refund", trace.WithAttributes(
		attribute.String("intent_id", request.Reference),
	))
	defer span.End()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(request.Reference),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if request.Amount > 0 {
		params.Amount = stripe.Int64(request.Amount * minorUnitsPerWhole)
	}
	if request.Reason != "" {
		params.AddMetadata("reason", request.Reason)
	}
	params.Context = ctx

	start := time.Now()
	refund, err := g.api.Refunds.New(params)
	if err := g.observe("refund", start, span, err); err != nil {
		return Refund{}, fmt.Errorf("create refund: %w", err)
	}

	g.logger.Info().Str("intent_id", request.Reference).Str("refund_id", refund.ID).Msg("payment refunded")

	return Refund{ID: refund.ID, Status: string(refund.Status)}, nil
}

func (g *StripeGateway) currencyOf(requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		return g.currency
	}
	return requested
}

func (g *StripeGateway) observe(operation string, start time.Time, span trace.Span, err error) error {
	gatewayDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	gatewayFailures.WithLabelValues(operation).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
