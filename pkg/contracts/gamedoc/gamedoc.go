package gamedoc

import "time"

// Status possíveis de um jogo no documento refinado.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusFinal      = "final"
)

// Stats agrupa valores numéricos por categoria e campo,
// ex: stats["passing"]["passingYards"] = 287.
type Stats map[string]map[string]float64

// Team é o estado de um time dentro do documento refinado.
type Team struct {
	ID           string `json:"teamId"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
	HomeAway     string `json:"homeAway"` // "home" | "away"
	Score        int64  `json:"score"`
	Stats        Stats  `json:"stats"`
}

// Player é o estado de um jogador dentro do documento refinado.
type Player struct {
	ID     string `json:"athleteId"`
	Name   string `json:"fullName"`
	TeamID string `json:"teamId"`
	Stats  Stats  `json:"stats"`
}

// Document é o documento refinado de um jogo ao vivo, produzido pelo pipeline
// de ingestão (externo a este serviço). Somente leitura aqui.
type Document struct {
	GameID    string    `json:"gameId"`
	Status    string    `json:"status"` // scheduled | in_progress | final
	Period    int       `json:"period"`
	UpdatedAt time.Time `json:"updatedAt"`
	Teams     []Team    `json:"teams"`
	Players   []Player  `json:"players"`
}

// Team retorna o time pelo id, ou nil se não estiver no documento.
func (d *Document) Team(id string) *Team {
	for i := range d.Teams {
		if d.Teams[i].ID == id {
			return &d.Teams[i]
		}
	}
	return nil
}

// Player retorna o jogador pelo id, ou nil se não estiver no documento.
func (d *Document) Player(id string) *Player {
	for i := range d.Players {
		if d.Players[i].ID == id {
			return &d.Players[i]
		}
	}
	return nil
}

// Home retorna o time mandante, ou nil se o documento não o marca.
func (d *Document) Home() *Team {
	for i := range d.Teams {
		if d.Teams[i].HomeAway == "home" {
			return &d.Teams[i]
		}
	}
	return nil
}

// Away retorna o time visitante, ou nil se o documento não o marca.
func (d *Document) Away() *Team {
	for i := range d.Teams {
		if d.Teams[i].HomeAway == "away" {
			return &d.Teams[i]
		}
	}
	return nil
}

// IsFinal indica se o jogo já terminou.
func (d *Document) IsFinal() bool { return d.Status == StatusFinal }

// Value retorna o valor de uma categoria/campo, ou 0 se ausente.
func (s Stats) Value(category, field string) float64 {
	if s == nil {
		return 0
	}
	cat, ok := s[category]
	if !ok {
		return 0
	}
	return cat[field]
}
