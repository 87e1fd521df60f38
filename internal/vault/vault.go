// internal/vault/vault.go
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/observability"
)

const (
	// KeyCards holds the JSON array of CardRecord.
	KeyCards = "cards"
	// KeyHistory holds the JSON array of TransactionRecord.
	KeyHistory = "history"

	defaultBank = "Axis"
)

// Vault is the card and history store the presentation layer reads from.
type Vault struct {
	kv     KV
	logger *zap.Logger
	newID  func() string

	// mu serializes read-modify-write cycles on a key.
	mu sync.Mutex
}

// New wraps kv.
func New(kv KV, logger *zap.Logger) *Vault {
	return &Vault{kv: kv, logger: logger.Named("vault"), newID: uuid.NewString}
}

// Open builds the backend selected by cfg. The returned close function releases it.
func Open(ctx context.Context, cfg config.VaultConfig, logger *zap.Logger) (*Vault, func(), error) {
	switch cfg.Backend {
	case "memory":
		return New(NewMemoryKV(), logger), func() {}, nil
	case "file":
		return New(NewFileKV(cfg.Path), logger), func() {}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("vault: connect: %w", err)
		}
		kv, err := NewPostgresKV(ctx, pool, cfg.Table, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return New(kv, logger), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("vault: unknown backend %q", cfg.Backend)
	}
}

// Cards returns the stored cards in insertion order.
func (v *Vault) Cards(ctx context.Context) ([]schemas.CardRecord, error) {
	var cards []schemas.CardRecord
	if err := v.get(ctx, KeyCards, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// SaveCards replaces the card list.
func (v *Vault) SaveCards(ctx context.Context, cards []schemas.CardRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.put(ctx, KeyCards, cards)
}

// AddCard validates card, assigns it an id and appends it.
func (v *Vault) AddCard(ctx context.Context, card schemas.CardRecord) (schemas.CardRecord, error) {
	card.Number = strings.ReplaceAll(card.Number, " ", "")
	if err := card.Validate(); err != nil {
		return schemas.CardRecord{}, err
	}
	if card.BankName == "" {
		card.BankName = defaultBank
	}
	card.ID = v.newID()

	v.mu.Lock()
	defer v.mu.Unlock()
	var cards []schemas.CardRecord
	if err := v.get(ctx, KeyCards, &cards); err != nil {
		return schemas.CardRecord{}, err
	}
	if err := v.put(ctx, KeyCards, append(cards, card)); err != nil {
		return schemas.CardRecord{}, err
	}
	v.logger.Info("Card added.", zap.String("id", card.ID), zap.String("bank", card.BankName), observability.Card(card.Number))
	return card, nil
}

// RemoveCard deletes the card with id.
func (v *Vault) RemoveCard(ctx context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	var cards []schemas.CardRecord
	if err := v.get(ctx, KeyCards, &cards); err != nil {
		return err
	}
	for i, c := range cards {
		if c.ID == id {
			return v.put(ctx, KeyCards, append(cards[:i:i], cards[i+1:]...))
		}
	}
	return fmt.Errorf("%w: card %s", ErrNotFound, id)
}

// Card returns the card with id.
func (v *Vault) Card(ctx context.Context, id string) (schemas.CardRecord, error) {
	cards, err := v.Cards(ctx)
	if err != nil {
		return schemas.CardRecord{}, err
	}
	for _, c := range cards {
		if c.ID == id {
			return c, nil
		}
	}
	return schemas.CardRecord{}, fmt.Errorf("%w: card %s", ErrNotFound, id)
}

// History returns the completed transactions, oldest first.
func (v *Vault) History(ctx context.Context) ([]schemas.TransactionRecord, error) {
	var history []schemas.TransactionRecord
	if err := v.get(ctx, KeyHistory, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// AppendTransaction records a completed payment.
func (v *Vault) AppendTransaction(ctx context.Context, tx schemas.TransactionRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	var history []schemas.TransactionRecord
	if err := v.get(ctx, KeyHistory, &history); err != nil {
		return err
	}
	return v.put(ctx, KeyHistory, append(history, tx))
}

// get decodes key into out. An absent key leaves out untouched.
func (v *Vault) get(ctx context.Context, key string, out interface{}) error {
	raw, err := v.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("vault: decode %s: %w", key, err)
	}
	return nil
}

func (v *Vault) put(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("vault: encode %s: %w", key, err)
	}
	return v.kv.Put(ctx, key, raw)
}
