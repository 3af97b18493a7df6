package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/model"
	"github.com/paribook/settle-engine/internal/money"
)

// PostgresStore implements Store using PostgreSQL as the source of
// truth. Amounts are stored as NUMERIC and moved as decimal text, so a
// full uint64 survives the round-trip. IDs and hashes are hex text.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const marketColumns = `id, creator, resolution_authority, question, question_hash,
	end_time, resolved, outcome,
	total_yes::TEXT, total_no::TEXT, fee_bps, escrow_balance::TEXT`

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, creator, resolution_authority, question, question_hash,
		                      end_time, resolved, outcome, total_yes, total_no, fee_bps, escrow_balance)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10::NUMERIC, $11, $12::NUMERIC)`,
		m.ID.String(), m.Creator.String(), m.ResolutionAuthority.String(),
		m.Question, m.QuestionHash.String(),
		m.EndTime, m.Resolved, m.Outcome.String(),
		m.TotalYes.String(), m.TotalNo.String(), int32(m.FeeBps), m.EscrowBalance.String(),
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id ident.ID) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id.String())
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY end_time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET resolved = $2, outcome = $3,
		     total_yes = $4::NUMERIC, total_no = $5::NUMERIC, escrow_balance = $6::NUMERIC
		 WHERE id = $1`,
		m.ID.String(), m.Resolved, m.Outcome.String(),
		m.TotalYes.String(), m.TotalNo.String(), m.EscrowBalance.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateBet(ctx context.Context, b *model.Bet, m *model.Market) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO bets (id, bettor, market, amount, outcome, claimed)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)`,
		b.ID.String(), b.Bettor.String(), b.Market.String(),
		b.Amount.String(), b.Outcome.String(), b.Claimed,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE markets
		 SET total_yes = $2::NUMERIC, total_no = $3::NUMERIC, escrow_balance = $4::NUMERIC
		 WHERE id = $1`,
		m.ID.String(), m.TotalYes.String(), m.TotalNo.String(), m.EscrowBalance.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetBet(ctx context.Context, id ident.ID) (*model.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, bettor, market, amount::TEXT, outcome, claimed
		 FROM bets WHERE id = $1`, id.String())
	b, err := scanBet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *PostgresStore) ListBetsByMarket(ctx context.Context, marketID ident.ID) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, bettor, market, amount::TEXT, outcome, claimed
		 FROM bets WHERE market = $1 ORDER BY id`, marketID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

func (s *PostgresStore) SettleBet(ctx context.Context, betID ident.ID, m *model.Market) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE bets SET claimed = TRUE WHERE id = $1`, betID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	tag, err = tx.Exec(ctx,
		`UPDATE markets SET escrow_balance = $2::NUMERIC WHERE id = $1`,
		m.ID.String(), m.EscrowBalance.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

// --- Row scanning ---

type pgxRow interface {
	Scan(dest ...any) error
}

func scanMarket(row pgxRow) (*model.Market, error) {
	var m model.Market
	var id, creator, authority, qhash, outcome string
	var totalYes, totalNo, escrow string
	var feeBps int32

	err := row.Scan(&id, &creator, &authority, &m.Question, &qhash,
		&m.EndTime, &m.Resolved, &outcome,
		&totalYes, &totalNo, &feeBps, &escrow)
	if err != nil {
		return nil, err
	}

	if m.ID, err = ident.FromHex(id); err != nil {
		return nil, fmt.Errorf("scan market id: %w", err)
	}
	if m.Creator, err = ident.FromHex(creator); err != nil {
		return nil, fmt.Errorf("scan market creator: %w", err)
	}
	if m.ResolutionAuthority, err = ident.FromHex(authority); err != nil {
		return nil, fmt.Errorf("scan market authority: %w", err)
	}
	if m.QuestionHash, err = ident.DigestFromHex(qhash); err != nil {
		return nil, fmt.Errorf("scan market question_hash: %w", err)
	}
	if err = m.Outcome.UnmarshalText([]byte(outcome)); err != nil {
		return nil, fmt.Errorf("scan market outcome: %w", err)
	}
	if m.TotalYes, err = money.Parse(totalYes); err != nil {
		return nil, fmt.Errorf("scan market total_yes: %w", err)
	}
	if m.TotalNo, err = money.Parse(totalNo); err != nil {
		return nil, fmt.Errorf("scan market total_no: %w", err)
	}
	if m.EscrowBalance, err = money.Parse(escrow); err != nil {
		return nil, fmt.Errorf("scan market escrow_balance: %w", err)
	}
	m.FeeBps = uint16(feeBps)
	return &m, nil
}

func scanBet(row pgxRow) (*model.Bet, error) {
	var b model.Bet
	var id, bettor, market, amount, outcome string

	err := row.Scan(&id, &bettor, &market, &amount, &outcome, &b.Claimed)
	if err != nil {
		return nil, err
	}

	if b.ID, err = ident.FromHex(id); err != nil {
		return nil, fmt.Errorf("scan bet id: %w", err)
	}
	if b.Bettor, err = ident.FromHex(bettor); err != nil {
		return nil, fmt.Errorf("scan bet bettor: %w", err)
	}
	if b.Market, err = ident.FromHex(market); err != nil {
		return nil, fmt.Errorf("scan bet market: %w", err)
	}
	if b.Amount, err = money.Parse(amount); err != nil {
		return nil, fmt.Errorf("scan bet amount: %w", err)
	}
	if err = b.Outcome.UnmarshalText([]byte(outcome)); err != nil {
		return nil, fmt.Errorf("scan bet outcome: %w", err)
	}
	return &b, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), which the store surfaces as ErrAlreadyExists.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
