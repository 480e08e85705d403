package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"match-ticketing/models"
)

// SQLite is the durable Store implementation, built on dbx over the pure-Go
// sqlite driver. Unique indexes on serial, token and payment reference back
// the uniqueness guarantees the services rely on.
type SQLite struct {
	db *dbx.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := dbx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Ping verifies the underlying connection, for health checks.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.DB().PingContext(ctx)
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			team_a TEXT NOT NULL,
			team_b TEXT NOT NULL,
			kickoff_at TEXT NOT NULL,
			stadium TEXT NOT NULL,
			city TEXT NOT NULL,
			competition TEXT NOT NULL,
			status TEXT NOT NULL,
			standard_price TEXT NOT NULL,
			vip_price TEXT,
			standard_capacity INTEGER NOT NULL,
			vip_capacity INTEGER,
			sale_cutoff TEXT,
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			reference TEXT NOT NULL,
			amount TEXT NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL,
			phone TEXT,
			provider_txn_id TEXT,
			failure_reason TEXT,
			user_id TEXT NOT NULL,
			succeeded_at TEXT,
			failed_at TEXT,
			refunded_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_reference ON payments (reference)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			serial TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			price TEXT NOT NULL,
			token TEXT NOT NULL,
			holder_name TEXT,
			holder_phone TEXT,
			user_id TEXT NOT NULL,
			match_id TEXT NOT NULL REFERENCES matches (id),
			payment_id TEXT,
			used_at TEXT,
			cancelled_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_serial ON tickets (serial)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_token ON tickets (token)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_match ON tickets (match_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets (user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.NewQuery(stmt).Execute(); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

type ticketRow struct {
	ID          string         `db:"id"`
	Serial      string         `db:"serial"`
	Type        string         `db:"type"`
	Status      string         `db:"status"`
	Price       string         `db:"price"`
	Token       string         `db:"token"`
	HolderName  sql.NullString `db:"holder_name"`
	HolderPhone sql.NullString `db:"holder_phone"`
	UserID      string         `db:"user_id"`
	MatchID     string         `db:"match_id"`
	PaymentID   sql.NullString `db:"payment_id"`
	UsedAt      sql.NullString `db:"used_at"`
	CancelledAt sql.NullString `db:"cancelled_at"`
	CreatedAt   string         `db:"created_at"`
}

func (s *SQLite) InsertTicket(ctx context.Context, t *models.Ticket) error {
	row := ticketRow{
		ID:          t.ID,
		Serial:      t.Serial,
		Type:        string(t.Type),
		Status:      string(t.Status),
		Price:       t.Price.String(),
		Token:       t.Token,
		HolderName:  nullString(t.HolderName),
		HolderPhone: nullString(t.HolderPhone),
		UserID:      t.UserID,
		MatchID:     t.MatchID,
		PaymentID:   nullString(t.PaymentID),
		UsedAt:      nullTime(t.UsedAt),
		CancelledAt: nullTime(t.CancelledAt),
		CreatedAt:   formatTime(t.CreatedAt),
	}
	_, err := s.db.Insert("tickets", dbx.Params{
		"id":           row.ID,
		"serial":       row.Serial,
		"type":         row.Type,
		"status":       row.Status,
		"price":        row.Price,
		"token":        row.Token,
		"holder_name":  row.HolderName,
		"holder_phone": row.HolderPhone,
		"user_id":      row.UserID,
		"match_id":     row.MatchID,
		"payment_id":   row.PaymentID,
		"used_at":      row.UsedAt,
		"cancelled_at": row.CancelledAt,
		"created_at":   row.CreatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func (s *SQLite) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var row ticketRow
	err := s.db.Select().From("tickets").Where(dbx.HashExp{"id": id}).WithContext(ctx).One(&row)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return ticketFromRow(&row)
}

func (s *SQLite) ListUserTickets(ctx context.Context, userID string) ([]*models.Ticket, error) {
	return s.listTickets(ctx, dbx.HashExp{"user_id": userID})
}

func (s *SQLite) ListMatchTickets(ctx context.Context, matchID string) ([]*models.Ticket, error) {
	return s.listTickets(ctx, dbx.HashExp{"match_id": matchID})
}

func (s *SQLite) listTickets(ctx context.Context, cond dbx.Expression) ([]*models.Ticket, error) {
	var rows []ticketRow
	err := s.db.Select().From("tickets").Where(cond).OrderBy("created_at DESC").WithContext(ctx).All(&rows)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	out := make([]*models.Ticket, 0, len(rows))
	for i := range rows {
		t, err := ticketFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLite) CountIssued(ctx context.Context, matchID string, types []models.TicketType) (int, error) {
	typeVals := make([]interface{}, len(types))
	for i, t := range types {
		typeVals[i] = string(t)
	}
	var count int
	err := s.db.Select("COUNT(*)").
		From("tickets").
		Where(dbx.And(
			dbx.HashExp{"match_id": matchID},
			dbx.In("status", string(models.TicketValid), string(models.TicketUsed)),
			dbx.In("type", typeVals...),
		)).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return 0, mapSQLiteErr(err)
	}
	return count, nil
}

func (s *SQLite) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.conditionalTransition(ctx, id, dbx.Params{
		"status":  string(models.TicketUsed),
		"used_at": formatTime(at),
	})
}

func (s *SQLite) MarkCancelled(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.conditionalTransition(ctx, id, dbx.Params{
		"status":       string(models.TicketCancelled),
		"cancelled_at": formatTime(at),
	})
}

// conditionalTransition commits a state change only when the ticket is still
// Valid; the WHERE guard is what makes concurrent redeems at-most-once.
func (s *SQLite) conditionalTransition(ctx context.Context, id string, cols dbx.Params) (bool, error) {
	res, err := s.db.Update("tickets", cols,
		dbx.And(
			dbx.HashExp{"id": id},
			dbx.HashExp{"status": string(models.TicketValid)},
		)).WithContext(ctx).Execute()
	if err != nil {
		return false, mapSQLiteErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		// Distinguish "wrong state" from "no such ticket".
		if _, err := s.GetTicket(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *SQLite) ExpireMatchTickets(ctx context.Context, matchID string) (int, error) {
	res, err := s.db.Update("tickets",
		dbx.Params{"status": string(models.TicketExpired)},
		dbx.And(
			dbx.HashExp{"match_id": matchID},
			dbx.HashExp{"status": string(models.TicketValid)},
		)).WithContext(ctx).Execute()
	if err != nil {
		return 0, mapSQLiteErr(err)
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

type matchRow struct {
	ID               string          `db:"id"`
	TeamA            string          `db:"team_a"`
	TeamB            string          `db:"team_b"`
	KickoffAt        string          `db:"kickoff_at"`
	Stadium          string          `db:"stadium"`
	City             string          `db:"city"`
	Competition      string          `db:"competition"`
	Status           string          `db:"status"`
	StandardPrice    string          `db:"standard_price"`
	VIPPrice         sql.NullString  `db:"vip_price"`
	StandardCapacity int             `db:"standard_capacity"`
	VIPCapacity      sql.NullInt64   `db:"vip_capacity"`
	SaleCutoff       sql.NullString  `db:"sale_cutoff"`
	CreatedBy        string          `db:"created_by"`
	CreatedAt        string          `db:"created_at"`
}

func (s *SQLite) InsertMatch(ctx context.Context, m *models.Match) error {
	row := matchRow{
		ID:               m.ID,
		TeamA:            m.TeamA,
		TeamB:            m.TeamB,
		KickoffAt:        formatTime(m.KickoffAt),
		Stadium:          m.Stadium,
		City:             m.City,
		Competition:      m.Competition,
		Status:           string(m.Status),
		StandardPrice:    m.StandardPrice.String(),
		StandardCapacity: m.StandardCapacity,
		SaleCutoff:       nullTime(m.SaleCutoff),
		CreatedBy:        m.CreatedBy,
		CreatedAt:        formatTime(m.CreatedAt),
	}
	if m.VIPPrice != nil {
		row.VIPPrice = nullString(m.VIPPrice.String())
	}
	if m.VIPCapacity != nil {
		row.VIPCapacity = sql.NullInt64{Int64: int64(*m.VIPCapacity), Valid: true}
	}
	_, err := s.db.Insert("matches", dbx.Params{
		"id":                row.ID,
		"team_a":            row.TeamA,
		"team_b":            row.TeamB,
		"kickoff_at":        row.KickoffAt,
		"stadium":           row.Stadium,
		"city":              row.City,
		"competition":       row.Competition,
		"status":            row.Status,
		"standard_price":    row.StandardPrice,
		"vip_price":         row.VIPPrice,
		"standard_capacity": row.StandardCapacity,
		"vip_capacity":      row.VIPCapacity,
		"sale_cutoff":       row.SaleCutoff,
		"created_by":        row.CreatedBy,
		"created_at":        row.CreatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func (s *SQLite) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var row matchRow
	err := s.db.Select().From("matches").Where(dbx.HashExp{"id": id}).WithContext(ctx).One(&row)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return matchFromRow(&row)
}

func (s *SQLite) ListMatches(ctx context.Context) ([]*models.Match, error) {
	var rows []matchRow
	err := s.db.Select().From("matches").OrderBy("kickoff_at ASC").WithContext(ctx).All(&rows)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return matchesFromRows(rows)
}

func (s *SQLite) ListConcluded(ctx context.Context, kickoffBefore time.Time) ([]*models.Match, error) {
	var rows []matchRow
	err := s.db.Select().From("matches").
		Where(dbx.Or(
			dbx.In("status", string(models.MatchFinished), string(models.MatchCancelled)),
			dbx.And(
				dbx.NewExp("status != {:postponed}", dbx.Params{"postponed": string(models.MatchPostponed)}),
				dbx.NewExp("kickoff_at < {:before}", dbx.Params{"before": formatTime(kickoffBefore)}),
			),
		)).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return matchesFromRows(rows)
}

type paymentRow struct {
	ID            string         `db:"id"`
	Reference     string         `db:"reference"`
	Amount        string         `db:"amount"`
	Method        string         `db:"method"`
	Status        string         `db:"status"`
	Phone         sql.NullString `db:"phone"`
	ProviderTxnID sql.NullString `db:"provider_txn_id"`
	FailureReason sql.NullString `db:"failure_reason"`
	UserID        string         `db:"user_id"`
	SucceededAt   sql.NullString `db:"succeeded_at"`
	FailedAt      sql.NullString `db:"failed_at"`
	RefundedAt    sql.NullString `db:"refunded_at"`
	CreatedAt     string         `db:"created_at"`
}

func (s *SQLite) InsertPayment(ctx context.Context, p *models.Payment) error {
	row := paymentRowFrom(p)
	_, err := s.db.Insert("payments", dbx.Params{
		"id":              row.ID,
		"reference":       row.Reference,
		"amount":          row.Amount,
		"method":          row.Method,
		"status":          row.Status,
		"phone":           row.Phone,
		"provider_txn_id": row.ProviderTxnID,
		"failure_reason":  row.FailureReason,
		"user_id":         row.UserID,
		"succeeded_at":    row.SucceededAt,
		"failed_at":       row.FailedAt,
		"refunded_at":     row.RefundedAt,
		"created_at":      row.CreatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func (s *SQLite) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var row paymentRow
	err := s.db.Select().From("payments").Where(dbx.HashExp{"id": id}).WithContext(ctx).One(&row)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return paymentFromRow(&row)
}

func (s *SQLite) UpdatePayment(ctx context.Context, p *models.Payment) error {
	row := paymentRowFrom(p)
	res, err := s.db.Update("payments", dbx.Params{
		"status":          row.Status,
		"provider_txn_id": row.ProviderTxnID,
		"failure_reason":  row.FailureReason,
		"succeeded_at":    row.SucceededAt,
		"failed_at":       row.FailedAt,
		"refunded_at":     row.RefundedAt,
	}, dbx.HashExp{"id": p.ID}).WithContext(ctx).Execute()
	if err != nil {
		return mapSQLiteErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func paymentRowFrom(p *models.Payment) *paymentRow {
	return &paymentRow{
		ID:            p.ID,
		Reference:     p.Reference,
		Amount:        p.Amount.String(),
		Method:        string(p.Method),
		Status:        string(p.Status),
		Phone:         nullString(p.Phone),
		ProviderTxnID: nullString(p.ProviderTxnID),
		FailureReason: nullString(p.FailureReason),
		UserID:        p.UserID,
		SucceededAt:   nullTime(p.SucceededAt),
		FailedAt:      nullTime(p.FailedAt),
		RefundedAt:    nullTime(p.RefundedAt),
		CreatedAt:     formatTime(p.CreatedAt),
	}
}

func ticketFromRow(r *ticketRow) (*models.Ticket, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return nil, fmt.Errorf("store: ticket %s: bad price: %w", r.ID, err)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	usedAt, err := parseNullTime(r.UsedAt)
	if err != nil {
		return nil, err
	}
	cancelledAt, err := parseNullTime(r.CancelledAt)
	if err != nil {
		return nil, err
	}
	return &models.Ticket{
		ID:          r.ID,
		Serial:      r.Serial,
		Type:        models.TicketType(r.Type),
		Status:      models.TicketStatus(r.Status),
		Price:       price,
		Token:       r.Token,
		HolderName:  r.HolderName.String,
		HolderPhone: r.HolderPhone.String,
		UserID:      r.UserID,
		MatchID:     r.MatchID,
		PaymentID:   r.PaymentID.String,
		UsedAt:      usedAt,
		CancelledAt: cancelledAt,
		CreatedAt:   createdAt,
	}, nil
}

func matchFromRow(r *matchRow) (*models.Match, error) {
	price, err := decimal.NewFromString(r.StandardPrice)
	if err != nil {
		return nil, fmt.Errorf("store: match %s: bad price: %w", r.ID, err)
	}
	kickoff, err := parseTime(r.KickoffAt)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	cutoff, err := parseNullTime(r.SaleCutoff)
	if err != nil {
		return nil, err
	}
	m := &models.Match{
		ID:               r.ID,
		TeamA:            r.TeamA,
		TeamB:            r.TeamB,
		KickoffAt:        kickoff,
		Stadium:          r.Stadium,
		City:             r.City,
		Competition:      r.Competition,
		Status:           models.MatchStatus(r.Status),
		StandardPrice:    price,
		StandardCapacity: r.StandardCapacity,
		SaleCutoff:       cutoff,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        createdAt,
	}
	if r.VIPPrice.Valid {
		vip, err := decimal.NewFromString(r.VIPPrice.String)
		if err != nil {
			return nil, fmt.Errorf("store: match %s: bad vip price: %w", r.ID, err)
		}
		m.VIPPrice = &vip
	}
	if r.VIPCapacity.Valid {
		cap := int(r.VIPCapacity.Int64)
		m.VIPCapacity = &cap
	}
	return m, nil
}

func matchesFromRows(rows []matchRow) ([]*models.Match, error) {
	out := make([]*models.Match, 0, len(rows))
	for i := range rows {
		m, err := matchFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func paymentFromRow(r *paymentRow) (*models.Payment, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("store: payment %s: bad amount: %w", r.ID, err)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	succeededAt, err := parseNullTime(r.SucceededAt)
	if err != nil {
		return nil, err
	}
	failedAt, err := parseNullTime(r.FailedAt)
	if err != nil {
		return nil, err
	}
	refundedAt, err := parseNullTime(r.RefundedAt)
	if err != nil {
		return nil, err
	}
	return &models.Payment{
		ID:            r.ID,
		Reference:     r.Reference,
		Amount:        amount,
		Method:        models.PaymentMethod(r.Method),
		Status:        models.PaymentStatus(r.Status),
		Phone:         r.Phone.String,
		ProviderTxnID: r.ProviderTxnID.String,
		FailureReason: r.FailureReason.String,
		UserID:        r.UserID,
		SucceededAt:   succeededAt,
		FailedAt:      failedAt,
		RefundedAt:    refundedAt,
		CreatedAt:     createdAt,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}
