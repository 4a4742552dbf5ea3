package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trattoria-be/internal/logger"
	"trattoria-be/internal/pricing"
	"trattoria-be/internal/receipt"
	"trattoria-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PrintQueue is the slice of the print job server the order service needs.
type PrintQueue interface {
	Enqueue(ctx context.Context, mac, dialect string, payload []byte) (string, error)
	Dialect(mac string) string
}

type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, next Status) (*Order, error)
}

// SubmitInput is the client's order payload. The service prices every line
// itself; client-supplied totals are never trusted.
type SubmitInput struct {
	IdempotencyKey string
	CustomerName   string
	Phone          string
	Fulfillment    Fulfillment
	Address        string
	PaymentMethod  string
	Paid           bool
	Lines          []LineInput
}

type LineInput struct {
	ItemID    string
	Name      string
	Quantity  int
	Size      string
	UnitPrice float64
	AddOns    []AddOnSelection
	Notes     string

	ConditionalPricing bool
	IncludedFreeCount  int
}

// Options configures the service from the shop settings.
type Options struct {
	// Surcharges is the per-size surcharge table applied by the pricing engine.
	Surcharges map[string]float64

	ReceiptHeader string
	ReceiptFooter string
	ReceiptQRURL  string

	// PrinterMAC is the kitchen printer new orders are printed on. Empty
	// disables printing.
	PrinterMAC string
}

type service struct {
	repo   Repository
	prints PrintQueue
	opts   Options
}

func NewService(repo Repository, prints PrintQueue, opts Options) Service {
	return &service{repo: repo, prints: prints, opts: opts}
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*Order, error) {
	if len(input.Lines) == 0 {
		return nil, ErrEmptyOrder
	}
	if strings.TrimSpace(input.CustomerName) == "" && strings.TrimSpace(input.Phone) == "" {
		return nil, ErrMissingCustomer
	}

	// A resubmitted order with a known key returns the stored result instead
	// of creating a duplicate.
	if input.IdempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			logger.FromCtx(ctx).Info("duplicate submission ignored",
				zap.String("order_id", existing.ID),
				zap.String("idempotency_key", input.IdempotencyKey),
			)
			return existing, nil
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:             uuid.NewString(),
		Number:         utils.GenerateOrderNumber(),
		IdempotencyKey: input.IdempotencyKey,
		CustomerName:   input.CustomerName,
		Phone:          input.Phone,
		Fulfillment:    input.Fulfillment,
		Address:        input.Address,
		Status:         StatusPending,
		PaymentMethod:  input.PaymentMethod,
		Paid:           input.Paid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, in := range input.Lines {
		line := Line{
			ID:                 uuid.NewString(),
			ItemID:             in.ItemID,
			Name:               in.Name,
			Quantity:           in.Quantity,
			Size:               in.Size,
			UnitPrice:          in.UnitPrice,
			AddOns:             in.AddOns,
			Notes:              in.Notes,
			ConditionalPricing: in.ConditionalPricing,
			IncludedFreeCount:  in.IncludedFreeCount,
		}
		line.Total = pricing.Calculate(s.pricingInput(line)).Total
		o.Lines = append(o.Lines, line)
		o.Total += line.Total
	}
	o.Total = utils.RoundCents(o.Total)

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	if _, ok := ParseStatus(string(next)); !ok {
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Duplicate status updates are expected from the retry pipeline.
	if o.Status == next {
		return o, nil
	}
	if o.Status.Terminal() {
		return nil, ErrOrderTerminal
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}

	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()

	logger.FromCtx(ctx).Info("order status updated",
		zap.String("order_id", o.ID),
		zap.String("status", string(next)),
	)

	if next == StatusConfirmed {
		s.printReceipt(ctx, o)
	}
	return o, nil
}

// printReceipt renders and queues the kitchen receipt. Printing is best
// effort: a render or queue failure never rolls back the status change.
func (s *service) printReceipt(ctx context.Context, o *Order) {
	if s.prints == nil || s.opts.PrinterMAC == "" {
		return
	}

	dialect := s.prints.Dialect(s.opts.PrinterMAC)
	payload, err := receipt.Render(s.document(o), receipt.Options{
		Dialect: receipt.Dialect(dialect),
		Header:  s.opts.ReceiptHeader,
		Footer:  s.opts.ReceiptFooter,
		QRURL:   s.opts.ReceiptQRURL,
	})
	if err != nil {
		logger.FromCtx(ctx).Error("receipt render failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		return
	}

	jobID, err := s.prints.Enqueue(ctx, s.opts.PrinterMAC, dialect, payload)
	if err != nil {
		logger.FromCtx(ctx).Error("print job enqueue failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		return
	}
	logger.FromCtx(ctx).Info("receipt queued",
		zap.String("order_id", o.ID),
		zap.String("job_id", jobID),
	)
}

func (s *service) pricingInput(l Line) pricing.Input {
	sel := make([]pricing.Selection, 0, len(l.AddOns))
	for _, a := range l.AddOns {
		sel = append(sel, pricing.Selection{AddOnID: a.AddOnID, Name: a.Name, Price: a.Price})
	}
	return pricing.Input{
		BasePrice:  l.UnitPrice,
		Size:       l.Size,
		Quantity:   l.Quantity,
		Selections: sel,
		Rules:      l.Rules(),
		Surcharges: s.opts.Surcharges,
	}
}

// document flattens a priced order into the renderer's input, marking which
// add-ons the conditional-free tier covered.
func (s *service) document(o *Order) receipt.Document {
	doc := receipt.Document{
		OrderNumber:   o.Number,
		PlacedAt:      o.CreatedAt,
		CustomerName:  o.CustomerName,
		Phone:         o.Phone,
		Fulfillment:   string(o.Fulfillment),
		Address:       o.Address,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		Paid:          o.Paid,
	}
	for _, l := range o.Lines {
		line := receipt.Line{
			Name:      l.Name,
			Quantity:  l.Quantity,
			Size:      l.Size,
			UnitPrice: l.UnitPrice,
			Notes:     l.Notes,
			LineTotal: l.Total,
		}
		for i, a := range l.AddOns {
			line.AddOns = append(line.AddOns, receipt.AddOn{
				Name:  a.Name,
				Price: a.Price,
				Free:  pricing.IsFree(i, l.Rules()),
			})
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc
}
