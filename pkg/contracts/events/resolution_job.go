package events

import (
	"encoding/json"
	"time"
)

// Tipos de job aceitos pelo resolution-worker.
const (
	JobSetWinningChoice = "set_winning_choice"
	JobWashBet          = "wash_bet"
)

// ResolutionJob é a unidade de trabalho publicada no tópico resolution_jobs.
// Enfileirar o job é o ponto em que o validator considera a aposta resolvida;
// a escrita durável acontece depois, no worker, de forma condicional.
type ResolutionJob struct {
	Kind           string          `json:"kind"` // set_winning_choice | wash_bet
	BetID          string          `json:"bet_id"`
	TableID        string          `json:"table_id"`
	GameID         string          `json:"game_id"`
	ModeKey        string          `json:"mode_key"`
	ModeLabel      string          `json:"mode_label"`
	WinningChoice  string          `json:"winning_choice,omitempty"` // apenas set_winning_choice
	EventType      string          `json:"event_type"`               // ex: "bet_resolved", "bet_washed"
	Payload        json.RawMessage `json:"payload,omitempty"`        // detalhe da avaliação, vai pro histórico
	Explanation    string          `json:"explanation,omitempty"`    // texto humano postado na mesa (wash)
	EnqueuedAtUnix int64           `json:"enqueued_at_unix_ms"`
}

// BetLifecycleEvent notifica os kernels sobre transições de status de aposta.
// Publicado no canal Redis bet_lifecycle_events pelo lifecycle-scheduler.
type BetLifecycleEvent struct {
	BetID      string    `json:"bet_id"`
	GameID     string    `json:"game_id"`
	ModeKey    string    `json:"mode_key"`
	PrevStatus string    `json:"prev_status"`
	NewStatus  string    `json:"new_status"` // "PENDING", "WASHED", "DELETED", ...
	Ts         time.Time `json:"ts"`
}
