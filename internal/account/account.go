// Package account is a small banking domain, modeled as an Aggregate,
// used as test fixture by the Event Store backends and the Repository.
package account

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/genproto/googleapis/type/date"

	"github.com/get-eventually/go-eventstore/aggregate"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/serde"
)

// Type is the Account aggregate type.
var Type = aggregate.Type[aggregate.StringID, *Account]{
	Name:    "account",
	Factory: func() *Account { return new(Account) },
}

// All the errors returned by Account methods.
var (
	ErrInvalidID     = errors.New("account: invalid id, is empty")
	ErrInvalidOwner  = errors.New("account: invalid owner, is empty")
	ErrInvalidAmount = errors.New("account: invalid amount, must be positive")
)

// WasOpened is the domain event fired after an Account is opened.
type WasOpened struct {
	ID       string     `json:"id"`
	Owner    string     `json:"owner"`
	OpenedOn *date.Date `json:"opened_on"`
}

// Name implements message.Message.
func (*WasOpened) Name() string { return "account_was_opened" }

// MoneyWasDeposited is the domain event fired after some money is deposited.
type MoneyWasDeposited struct {
	Amount int64 `json:"amount"`
}

// Name implements message.Message.
func (*MoneyWasDeposited) Name() string { return "account_money_was_deposited" }

// Account is a naive bank account.
type Account struct {
	aggregate.BaseRoot

	id      aggregate.StringID
	owner   string
	balance int64
}

// Open opens a new Account for the owner.
func Open(id, owner string, now time.Time) (*Account, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	if owner == "" {
		return nil, ErrInvalidOwner
	}

	acc := new(Account)

	if err := aggregate.RecordThat[aggregate.StringID](acc, event.Envelope{
		Message: &WasOpened{ID: id, Owner: owner, OpenedOn: toDate(now)},
	}); err != nil {
		return nil, fmt.Errorf("account.Open: failed to record domain event, %w", err)
	}

	return acc, nil
}

// Deposit adds money to the Account.
func (acc *Account) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if err := aggregate.RecordThat[aggregate.StringID](acc, event.Envelope{
		Message: &MoneyWasDeposited{Amount: amount},
	}); err != nil {
		return fmt.Errorf("account.Deposit: failed to record domain event, %w", err)
	}

	return nil
}

// Apply implements aggregate.Aggregate.
func (acc *Account) Apply(evt event.Event) error {
	switch e := evt.(type) {
	case *WasOpened:
		acc.id = aggregate.StringID(e.ID)
		acc.owner = e.Owner
	case *MoneyWasDeposited:
		acc.balance += e.Amount
	default:
		return fmt.Errorf("account.Apply: unexpected event type, %T", evt)
	}

	return nil
}

// AggregateID implements aggregate.Root.
func (acc *Account) AggregateID() aggregate.StringID { return acc.id }

// Owner returns the owner of the Account.
func (acc *Account) Owner() string { return acc.owner }

// Balance returns the current balance of the Account.
func (acc *Account) Balance() int64 { return acc.balance }

// NewRegistry returns a serde.Registry with all the Account domain events.
func NewRegistry() *serde.Registry {
	registry := serde.NewRegistry()

	// Registration only fails on duplicate names, which is a programming error.
	if err := serde.RegisterJSON(registry, func() *WasOpened { return new(WasOpened) }); err != nil {
		panic(err)
	}

	if err := serde.RegisterJSON(registry, func() *MoneyWasDeposited { return new(MoneyWasDeposited) }); err != nil {
		panic(err)
	}

	return registry
}

func toDate(t time.Time) *date.Date {
	return &date.Date{
		Year:  int32(t.Year()),
		Month: int32(t.Month()),
		Day:   int32(t.Day()),
	}
}
