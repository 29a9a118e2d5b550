package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dexterm/internal/domain"
	"dexterm/pkg/scale"
	"dexterm/pkg/subacct"
)

// Collaborator boundaries. The pipeline consumes these; it implements none
// of them.

// AccountQuerier fetches the account metadata needed to build a transaction.
type AccountQuerier interface {
	FetchAccount(ctx context.Context, address string) (domain.AccountInfo, error)
}

// Signer produces a signature over the transaction's canonical bytes. It
// may reject (user declines) or fail (signer unavailable).
type Signer interface {
	Sign(ctx context.Context, canonical []byte, signerAddress string) ([]byte, error)
}

// Broadcaster submits a signed transaction and polls for its inclusion.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx domain.SignedTransaction) (string, error)
	PollConfirmation(ctx context.Context, txHash string) (domain.ConfirmationResult, error)
}

// Request is one submission attempt: the selected market, the user's trade
// intent, and the ambient context the UI passes in explicitly (no shared
// mutable state is read).
type Request struct {
	Market          *domain.Market
	Intent          domain.TradeIntent
	WalletConnected bool
	Address         string
	SubaccountIndex int

	// ReferencePrice is the synchronizer's mid price; HaveReference is
	// false when the book is empty and no market order can price itself.
	ReferencePrice decimal.Decimal
	HaveReference  bool
}

// Result is the terminal outcome of one submission.
type Result struct {
	Phase  Phase
	TxHash string // set from Broadcast onward, including Unconfirmed
	Err    *Error // nil on PhaseConfirmed
}

// Pipeline drives one trade intent from validation to confirmation. One
// instance serves the whole UI, but only one submission may be in a
// non-terminal phase at a time (Busy).
type Pipeline struct {
	engine   *scale.Engine
	accounts AccountQuerier
	signer   Signer
	caster   Broadcaster

	feeRecipient string
	fee          domain.Fee

	// onRefresh is poked after every terminal state that may have moved
	// funds (Confirmed and Unconfirmed), so the balance/position view can
	// refetch. Optional.
	onRefresh func()
	// onPhase observes each phase transition. Optional, used by the UI
	// progress display.
	onPhase func(Phase)

	pollInterval time.Duration
	pollBudget   int

	busy atomic.Bool
}

// Config carries the pipeline's construction parameters.
type Config struct {
	Engine       *scale.Engine
	Accounts     AccountQuerier
	Signer       Signer
	Broadcaster  Broadcaster
	FeeRecipient string
	OnRefresh    func()
	OnPhase      func(Phase)
	PollInterval time.Duration
	PollBudget   int        // poll attempts before giving up as Unconfirmed
	Fee          domain.Fee // zero value selects the default fixed fee
}

func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		engine:       cfg.Engine,
		accounts:     cfg.Accounts,
		signer:       cfg.Signer,
		caster:       cfg.Broadcaster,
		feeRecipient: cfg.FeeRecipient,
		onRefresh:    cfg.OnRefresh,
		onPhase:      cfg.OnPhase,
		pollInterval: cfg.PollInterval,
		pollBudget:   cfg.PollBudget,
		fee:          cfg.Fee,
	}
	if p.fee == (domain.Fee{}) {
		p.fee = domain.Fee{Amount: "200000000000000", Denom: "stake", Gas: 200000}
	}
	if p.engine == nil {
		p.engine = scale.NewEngine()
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 2 * time.Second
	}
	if p.pollBudget <= 0 {
		p.pollBudget = 10
	}
	return p
}

// Busy reports whether a submission is between Validated and a terminal
// phase. The UI must not start a new submission while Busy.
func (p *Pipeline) Busy() bool { return p.busy.Load() }

// Submit runs the full state machine for one request and returns its
// terminal result. There is no mid-flight cancellation once signing has
// been requested; ctx cancellation before that point fails the current
// phase normally.
func (p *Pipeline) Submit(ctx context.Context, req Request) Result {
	if !p.busy.CompareAndSwap(false, true) {
		return p.fail(newError(KindValidation, PhaseIdle, "a submission is already in flight", nil))
	}
	defer p.busy.Store(false)

	// Idle -> Validated
	price, qty, err := p.validate(req)
	if err != nil {
		return p.fail(err)
	}
	p.step(PhaseValidated)

	// Validated -> Scaled
	msgPrice, msgQty, serr := p.scaleIntent(req, price, qty)
	if serr != nil {
		return p.fail(serr)
	}
	p.step(PhaseScaled)

	// Scaled -> AccountFetched
	subaccountID, derr := subacct.Derive(req.Address, req.SubaccountIndex)
	if derr != nil {
		// Validated input should never produce an invalid index; if it
		// does, report a defect rather than a user error.
		return p.fail(newError(KindContract, PhaseScaled, "sub-account derivation failed", derr))
	}
	account, aerr := p.accounts.FetchAccount(ctx, req.Address)
	if aerr != nil {
		return p.fail(newError(KindAccountQuery, PhaseScaled, "account query failed", aerr))
	}
	p.step(PhaseAccountFetched)

	// AccountFetched -> TransactionBuilt (pure, local)
	tx := domain.Transaction{
		Msg: domain.ChainOrderMessage{
			SubaccountID: subaccountID,
			MarketID:     req.Market.ID,
			Price:        msgPrice,
			Quantity:     msgQty,
			OrderType:    domain.OrderTypeFor(req.Intent.Side, req.Intent.Kind),
			FeeRecipient: p.feeRecipient,
			Cid:          uuid.NewString(),
		},
		Fee:     p.fee,
		Memo:    fmt.Sprintf("%s %s order via dexterm", req.Intent.Kind, req.Intent.Side),
		Account: account,
	}
	canonical, cerr := tx.CanonicalBytes()
	if cerr != nil {
		return p.fail(newError(KindContract, PhaseAccountFetched, "transaction encoding failed", cerr))
	}
	p.step(PhaseTransactionBuilt)

	// TransactionBuilt -> AwaitingSignature
	p.step(PhaseAwaitingSignature)
	sig, serr2 := p.signer.Sign(ctx, canonical, req.Address)
	if serr2 != nil {
		return p.fail(newError(KindSigning, PhaseAwaitingSignature, "signature rejected or unavailable", serr2))
	}

	// AwaitingSignature -> Broadcast
	signed := domain.SignedTransaction{Tx: tx, Signature: sig}
	hash, berr := p.caster.Broadcast(ctx, signed)
	if berr != nil {
		return p.fail(newError(KindBroadcast, PhaseAwaitingSignature, "broadcast failed", berr))
	}
	p.step(PhaseBroadcast)
	slog.Info("Order broadcast", slog.String("tx", hash), slog.String("market", req.Market.ID))

	// Broadcast -> Confirmed | Unconfirmed
	if perr := p.awaitConfirmation(ctx, hash); perr != nil {
		p.step(PhaseUnconfirmed)
		p.refresh()
		return Result{Phase: PhaseUnconfirmed, TxHash: hash,
			Err: newError(KindConfirmation, PhaseBroadcast, "submitted, confirmation unknown", perr)}
	}
	p.step(PhaseConfirmed)
	p.refresh()
	return Result{Phase: PhaseConfirmed, TxHash: hash}
}

// validate applies the pre-flight constraints in their fixed short-circuit
// order: wallet connection, market selection, limit price presence, market
// price availability, quantity presence. The first failing constraint is
// reported alone.
func (p *Pipeline) validate(req Request) (price, qty decimal.Decimal, _ *Error) {
	fail := func(reason string) (decimal.Decimal, decimal.Decimal, *Error) {
		return decimal.Zero, decimal.Zero, newError(KindValidation, PhaseIdle, reason, nil)
	}

	if !req.WalletConnected || req.Address == "" {
		return fail("wallet is not connected")
	}
	if req.Market == nil {
		return fail("no market selected")
	}
	switch req.Intent.Kind {
	case domain.KindLimit:
		parsed, err := scale.ParseValue(req.Intent.Price)
		if err != nil {
			return fail("limit orders require a positive price")
		}
		price = parsed
	case domain.KindMarket:
		if !req.HaveReference {
			return fail("market price unavailable: order book is empty")
		}
		price = req.ReferencePrice
	default:
		return fail(fmt.Sprintf("unknown order kind %q", req.Intent.Kind))
	}
	if req.Intent.Quantity == "" {
		return fail("quantity is required")
	}
	parsedQty, err := scale.ParseValue(req.Intent.Quantity)
	if err != nil {
		return fail("quantity must be a positive decimal")
	}
	return price, parsedQty, nil
}

func (p *Pipeline) scaleIntent(req Request, price, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal, *Error) {
	params := req.Market.ScaleParams()
	scaledPrice, err := p.engine.ScalePrice(params, price)
	if err != nil {
		return decimal.Zero, decimal.Zero, p.classifyScaleErr(err, "price")
	}
	scaledQty, err := p.engine.ScaleQuantity(params, qty)
	if err != nil {
		return decimal.Zero, decimal.Zero, p.classifyScaleErr(err, "quantity")
	}
	return scaledPrice, scaledQty, nil
}

func (p *Pipeline) classifyScaleErr(err error, field string) *Error {
	// A magnitude error on already-validated input is a contract violation,
	// not a user mistake, but the distinction only matters for ErrInvalidMarket
	// versus value errors: bad market parameters are a catalog defect.
	if errors.Is(err, scale.ErrInvalidMarket) {
		return newError(KindContract, PhaseValidated, "market parameters are unusable", err)
	}
	return newError(KindScaling, PhaseValidated, fmt.Sprintf("cannot scale %s", field), err)
}

// awaitConfirmation polls for inclusion until the budget runs out. Any
// residual error means "confirmation unknown", never "order failed".
func (p *Pipeline) awaitConfirmation(ctx context.Context, hash string) error {
	var lastErr error
	for i := 0; i < p.pollBudget; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pollInterval):
			}
		}
		res, err := p.caster.PollConfirmation(ctx, hash)
		if err != nil {
			lastErr = err
			continue
		}
		if res.Confirmed {
			if res.Code != 0 {
				// Included but the venue rejected execution; still a
				// definitive answer, surfaced through the raw log.
				return fmt.Errorf("transaction included with code %d: %s", res.Code, res.RawLog)
			}
			return nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no confirmation after %d polls", p.pollBudget)
	}
	return lastErr
}

func (p *Pipeline) step(phase Phase) {
	if p.onPhase != nil {
		p.onPhase(phase)
	}
}

func (p *Pipeline) refresh() {
	if p.onRefresh != nil {
		p.onRefresh()
	}
}

func (p *Pipeline) fail(err *Error) Result {
	slog.Warn("Submission failed", slog.String("kind", err.Kind.String()),
		slog.String("phase", err.Phase.String()), slog.String("reason", err.Reason))
	p.step(PhaseFailed)
	return Result{Phase: PhaseFailed, Err: err}
}
