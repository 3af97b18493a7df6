package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/model"
	"github.com/paribook/settle-engine/internal/money"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS markets (
    id                   TEXT PRIMARY KEY,
    creator              TEXT    NOT NULL,
    resolution_authority TEXT    NOT NULL,
    question             TEXT    NOT NULL,
    question_hash        TEXT    NOT NULL,
    end_time             INTEGER NOT NULL,
    resolved             INTEGER NOT NULL DEFAULT 0,
    outcome              TEXT    NOT NULL DEFAULT 'unset',
    total_yes            TEXT    NOT NULL DEFAULT '0',
    total_no             TEXT    NOT NULL DEFAULT '0',
    fee_bps              INTEGER NOT NULL,
    escrow_balance       TEXT    NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS bets (
    id      TEXT PRIMARY KEY,
    bettor  TEXT    NOT NULL,
    market  TEXT    NOT NULL REFERENCES markets(id),
    amount  TEXT    NOT NULL,
    outcome TEXT    NOT NULL,
    claimed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_markets_end ON markets(end_time);
CREATE INDEX IF NOT EXISTS idx_bets_market ON bets(market);
`

// SQLiteStore implements Store on a single-file SQLite database
// (pure Go driver, no CGo). Amounts are stored as decimal text — a
// full uint64 does not fit SQLite's signed INTEGER.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and
// applies the schema. Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.NewSQLiteStore: open %q: %w", path, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO markets (id, creator, resolution_authority, question, question_hash,
		                      end_time, resolved, outcome, total_yes, total_no, fee_bps, escrow_balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.Creator.String(), m.ResolutionAuthority.String(),
		m.Question, m.QuestionHash.String(),
		m.EndTime, boolToInt(m.Resolved), m.Outcome.String(),
		m.TotalYes.String(), m.TotalNo.String(), int64(m.FeeBps), m.EscrowBalance.String(),
	)
	if isSQLiteConstraint(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *SQLiteStore) GetMarket(ctx context.Context, id ident.ID) (*model.Market, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, creator, resolution_authority, question, question_hash,
		        end_time, resolved, outcome, total_yes, total_no, fee_bps, escrow_balance
		 FROM markets WHERE id = ?`, id.String())
	m, err := scanSQLiteMarket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (s *SQLiteStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, creator, resolution_authority, question, question_hash,
		        end_time, resolved, outcome, total_yes, total_no, fee_bps, escrow_balance
		 FROM markets ORDER BY end_time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanSQLiteMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *SQLiteStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE markets
		 SET resolved = ?, outcome = ?, total_yes = ?, total_no = ?, escrow_balance = ?
		 WHERE id = ?`,
		boolToInt(m.Resolved), m.Outcome.String(),
		m.TotalYes.String(), m.TotalNo.String(), m.EscrowBalance.String(),
		m.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *SQLiteStore) CreateBet(ctx context.Context, b *model.Bet, m *model.Market) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bets (id, bettor, market, amount, outcome, claimed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.Bettor.String(), b.Market.String(),
		b.Amount.String(), b.Outcome.String(), boolToInt(b.Claimed),
	)
	if isSQLiteConstraint(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE markets SET total_yes = ?, total_no = ?, escrow_balance = ? WHERE id = ?`,
		m.TotalYes.String(), m.TotalNo.String(), m.EscrowBalance.String(), m.ID.String(),
	)
	if err != nil {
		return err
	}
	if err := requireRows(res); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetBet(ctx context.Context, id ident.ID) (*model.Bet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, bettor, market, amount, outcome, claimed FROM bets WHERE id = ?`,
		id.String())
	b, err := scanSQLiteBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *SQLiteStore) ListBetsByMarket(ctx context.Context, marketID ident.ID) ([]model.Bet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bettor, market, amount, outcome, claimed
		 FROM bets WHERE market = ? ORDER BY id`, marketID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []model.Bet
	for rows.Next() {
		b, err := scanSQLiteBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

func (s *SQLiteStore) SettleBet(ctx context.Context, betID ident.ID, m *model.Market) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE bets SET claimed = 1 WHERE id = ?`, betID.String())
	if err != nil {
		return err
	}
	if err := requireRows(res); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE markets SET escrow_balance = ? WHERE id = ?`,
		m.EscrowBalance.String(), m.ID.String())
	if err != nil {
		return err
	}
	if err := requireRows(res); err != nil {
		return err
	}

	return tx.Commit()
}

// --- Row scanning ---

type sqlRow interface {
	Scan(dest ...any) error
}

func scanSQLiteMarket(row sqlRow) (*model.Market, error) {
	var m model.Market
	var id, creator, authority, qhash, outcome string
	var totalYes, totalNo, escrow string
	var resolved, feeBps int64

	err := row.Scan(&id, &creator, &authority, &m.Question, &qhash,
		&m.EndTime, &resolved, &outcome,
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
	m.Resolved = resolved != 0
	m.FeeBps = uint16(feeBps)
	return &m, nil
}

func scanSQLiteBet(row sqlRow) (*model.Bet, error) {
	var b model.Bet
	var id, bettor, market, amount, outcome string
	var claimed int64

	err := row.Scan(&id, &bettor, &market, &amount, &outcome, &claimed)
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
	b.Claimed = claimed != 0
	return &b, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isSQLiteConstraint reports whether err is a primary-key or unique
// constraint failure. The pure-Go driver exposes these only as message
// text.
func isSQLiteConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
