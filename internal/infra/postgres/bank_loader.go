package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"couple-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BankLoader loads the quiz bank JSONB from Postgres. One bank row per
// couple, in the same document shape as the file bank.
type BankLoader struct {
	pool   *pgxpool.Pool
	bankID string
}

func NewBankLoader(pool *pgxpool.Pool, bankID string) *BankLoader {
	return &BankLoader{pool: pool, bankID: bankID}
}

func (l *BankLoader) LoadBank(ctx context.Context) (domain.Bank, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT days FROM quiz_banks WHERE id=$1`, l.bankID).Scan(&raw)
	if err != nil {
		return domain.Bank{}, fmt.Errorf("load quiz bank: %w", err)
	}
	var days map[string][]domain.Question
	if err := json.Unmarshal(raw, &days); err != nil {
		return domain.Bank{}, fmt.Errorf("unmarshal quiz bank: %w", err)
	}
	return domain.Bank{Days: days}, nil
}
