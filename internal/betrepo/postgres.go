package betrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Postgres implementa a fachada de persistência de apostas.
// Toda escrita terminal é condicionada ao status atual, então tentativa
// duplicada ou concorrente de finalização vira no-op (retorno false/nil).
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const betColumns = `id, table_id, game_id, league, mode_key, status, description,
	stake_cents, time_limit_seconds, close_time, proposed_at, mode_config,
	winning_choice, resolved_at`

// ListPendingBets retorna as apostas PENDING de um modo; gameID vazio lista
// todos os jogos (usado no catch-up do kernel).
func (p *Postgres) ListPendingBets(ctx context.Context, modeKey, gameID string) ([]Bet, error) {
	q := `SELECT ` + betColumns + ` FROM bets WHERE status='PENDING' AND mode_key=$1`
	args := []any{modeKey}
	if gameID != "" {
		q += ` AND game_id=$2`
		args = append(args, gameID)
	}
	q += ` ORDER BY proposed_at`

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBets(rows)
}

// GetBet retorna uma aposta pelo id.
func (p *Postgres) GetBet(ctx context.Context, betID string) (*Bet, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, betID)
	b, err := scanBet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SetWinningChoice grava o vencedor e move a aposta para RESOLVED, somente
// se ainda estiver PENDING. Retorna false quando a aposta já saiu de
// PENDING — não é erro, é replay/conflito benigno.
func (p *Postgres) SetWinningChoice(ctx context.Context, betID, choice string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets
		SET status='RESOLVED', winning_choice=$1, resolved_at=NOW(), updated_at=NOW()
		WHERE id=$2 AND status='PENDING'`,
		choice, betID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// WashBet anula a aposta (sem vencedor), condicionado ao status informado:
// PENDING para wash de resolução, ACTIVE para void na transição do
// scheduler. Retorna nil quando a precondição de status falhou.
func (p *Postgres) WashBet(ctx context.Context, betID, fromStatus string) (*WashedBet, error) {
	var tableID string
	err := p.db.QueryRowContext(ctx, `
		UPDATE bets
		SET status='WASHED', winning_choice=NULL, resolved_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status=$2
		RETURNING table_id`,
		betID, fromStatus,
	).Scan(&tableID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &WashedBet{BetID: betID, TableID: tableID}, nil
}

// RecordHistory insere uma entrada no histórico de resolução (append-only,
// nunca atualizado nem deletado).
func (p *Postgres) RecordHistory(ctx context.Context, betID, eventType string, payload json.RawMessage) error {
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bet_resolution_history (id, bet_id, event_type, payload, created_at)
		VALUES ($1,$2,$3,$4,NOW())`,
		uuid.NewString(), betID, eventType, []byte(payload),
	)
	return err
}

// ListActiveDue lista apostas ACTIVE cujo close_time já passou — alvo do
// sweep de catch-up do scheduler.
func (p *Postgres) ListActiveDue(ctx context.Context, now time.Time) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE status='ACTIVE' AND close_time <= $1
		ORDER BY close_time`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBets(rows)
}

// ListActive lista todas as apostas ACTIVE (rearme de timers no startup).
func (p *Postgres) ListActive(ctx context.Context) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+betColumns+` FROM bets WHERE status='ACTIVE' ORDER BY close_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBets(rows)
}

// MarkPending transiciona ACTIVE -> PENDING. Retorna false se a aposta já
// saiu de ACTIVE (job duplicado ou sweep concorrente).
func (p *Postgres) MarkPending(ctx context.Context, betID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status='PENDING', updated_at=NOW()
		WHERE id=$1 AND status='ACTIVE'`, betID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountDistinctChoices conta quantas escolhas distintas os participantes
// fizeram. Menos de duas no fechamento => aposta sem lado, é anulada.
func (p *Postgres) CountDistinctChoices(ctx context.Context, betID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT choice) FROM bet_choices WHERE bet_id=$1`, betID).Scan(&n)
	return n, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanBet(row rowScanner) (*Bet, error) {
	var (
		b          Bet
		timeLimitS int64
		modeConfig []byte
		winning    sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.TableID, &b.GameID, &b.League, &b.ModeKey, &b.Status,
		&b.Description, &b.StakeCents, &timeLimitS, &b.CloseTime,
		&b.ProposedAt, &modeConfig, &winning, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	b.TimeLimit = time.Duration(timeLimitS) * time.Second
	b.ModeConfig = json.RawMessage(modeConfig)
	if winning.Valid {
		b.WinningChoice = &winning.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		b.ResolvedAt = &t
	}
	return &b, nil
}

func scanBets(rows *sql.Rows) ([]Bet, error) {
	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
