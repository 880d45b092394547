// Package services orchestrates ledger writes and change notifications.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"saldi/internal/amqp"
	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/log"
)

// Publisher announces ledger changes. *amqp.Client implements it.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// ChangeListener is told about changes in-process, for deployments without
// a broker.
type ChangeListener func(ctx context.Context, msg *amqp.LedgerChangedMessage)

// LedgerService writes to the ledger and then announces the change.
type LedgerService struct {
	store     ledger.Writer
	publisher Publisher
	listeners []ChangeListener
	logger    *log.Logger
}

func NewLedgerService(store ledger.Writer, publisher Publisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentService),
	}
}

// OnChange registers a listener called after every successful write.
func (s *LedgerService) OnChange(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

// Record validates and stores t, assigning a UUID when it has no id.
func (s *LedgerService) Record(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.InsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction recorded",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithTransaction(t.ID, string(t.Type), t.Amount.Cents).
			WithConti([]string{t.FromContoID, t.ToContoID}).ToSlice()...)

	s.announce(ctx, amqp.NewLedgerChangedMessage(amqp.ChangeRecorded, t.ID, t.FromContoID, t.ToContoID))
	return t, nil
}

// Delete removes a transaction by id.
func (s *LedgerService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("transaction id: %w", ledger.ErrNotFound)
	}
	t, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.NewFields().WithOperation(log.OpDelete).WithTransaction(t.ID, string(t.Type), t.Amount.Cents).ToSlice()...)

	s.announce(ctx, amqp.NewLedgerChangedMessage(amqp.ChangeDeleted, t.ID, t.FromContoID, t.ToContoID))
	return nil
}

// announce never fails the write: the ledger is already updated.
func (s *LedgerService) announce(ctx context.Context, msg *amqp.LedgerChangedMessage) {
	for _, l := range s.listeners {
		l(ctx, msg)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.NewFields().WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
}
