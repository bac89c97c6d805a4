// Package payments applies settled purchases to the ledger exactly once per charge.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/Proton-105/tapcoin-engine/internal/engine"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/idempotency"
)

const (
	productSkin    = "skin"
	productBooster = "booster"

	// DefaultResultTTL outlives any provider's callback retry schedule.
	DefaultResultTTL = 7 * 24 * time.Hour
)

// Settlement is a provider confirmation. Product is "skin:<id>" or "booster:<kind>".
type Settlement struct {
	Provider  string `json:"provider" validate:"required"`
	ChargeID  string `json:"charge_id" validate:"required"`
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	Product   string `json:"product" validate:"required"`
}

// Receipt is the stored outcome of a settlement.
type Receipt struct {
	ChargeID string             `json:"charge_id"`
	Product  string             `json:"product"`
	Account  engine.AccountView `json:"account"`
	Replayed bool               `json:"replayed"`
}

// Ledger is the part of engine.Engine a settlement touches.
type Ledger interface {
	GrantSkin(ctx context.Context, id int64, skinID string) (engine.AccountView, error)
	ActivateBooster(ctx context.Context, req engine.ActivateRequest) (engine.AccountView, error)
}

type Settler struct {
	ledger          Ledger
	idem            *idempotency.Manager
	boosterDuration time.Duration
	resultTTL       time.Duration
	validate        *validator.Validate
	log             *slog.Logger
}

// NewSettler builds a Settler. A non-positive resultTTL falls back to DefaultResultTTL.
func NewSettler(ledger Ledger, idem *idempotency.Manager, boosterDuration, resultTTL time.Duration, log *slog.Logger) *Settler {
	if log == nil {
		log = slog.Default()
	}
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	return &Settler{
		ledger:          ledger,
		idem:            idem,
		boosterDuration: boosterDuration,
		resultTTL:       resultTTL,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		log:             log.With(slog.String("component", "payments")),
	}
}

// Settle applies s once. Repeated callbacks for the same charge replay the
// first receipt without touching the ledger again.
func (p *Settler) Settle(ctx context.Context, s Settlement) (Receipt, error) {
	if err := p.validate.Struct(s); err != nil {
		return Receipt{}, apperrors.NewValidationError(err.Error())
	}
	kind, item, ok := strings.Cut(s.Product, ":")
	if !ok || item == "" || (kind != productSkin && kind != productBooster) {
		return Receipt{}, apperrors.NewValidationError(fmt.Sprintf("unknown product %q", s.Product))
	}

	key := idempotency.GenerateKey("payment", s.Provider, s.ChargeID)
	receipt, replayed, err := idempotency.Execute(ctx, p.idem, key, p.resultTTL, func(ctx context.Context) (Receipt, error) {
		var (
			view engine.AccountView
			err  error
		)
		switch kind {
		case productSkin:
			view, err = p.ledger.GrantSkin(ctx, s.AccountID, item)
		case productBooster:
			view, err = p.ledger.ActivateBooster(ctx, engine.ActivateRequest{
				AccountID: s.AccountID,
				Kind:      item,
				Duration:  p.boosterDuration,
			})
		}
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{ChargeID: s.ChargeID, Product: s.Product, Account: view}, nil
	})
	if err != nil {
		if errors.Is(err, idempotency.ErrRequestInProgress) {
			return Receipt{}, apperrors.NewConflictError("settlement for this charge is in progress")
		}
		return Receipt{}, err
	}
	if receipt.Account.ID != s.AccountID {
		return Receipt{}, apperrors.NewConflictError(fmt.Sprintf("charge %s was settled for another account", s.ChargeID))
	}

	receipt.Replayed = replayed
	p.log.InfoContext(ctx, "payment settled",
		slog.String("provider", s.Provider),
		slog.String("charge_id", s.ChargeID),
		slog.Int64("account_id", s.AccountID),
		slog.String("product", s.Product),
		slog.Bool("replayed", replayed),
	)
	return receipt, nil
}
