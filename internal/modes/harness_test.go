package modes

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/baseline"
	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

// fakeRepo implementa PendingLister em memória.
type fakeRepo struct {
	bets []betrepo.Bet
	err  error
}

func (f *fakeRepo) ListPendingBets(_ context.Context, modeKey, gameID string) ([]betrepo.Bet, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []betrepo.Bet
	for _, b := range f.bets {
		if b.ModeKey != modeKey || b.Status != betrepo.StatusPending {
			continue
		}
		if gameID != "" && b.GameID != gameID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// fakeBaselines implementa BaselineStore com semântica SetNX. Protegido por
// mutex porque o kernel roda em goroutine própria nos testes.
type fakeBaselines struct {
	mu         sync.Mutex
	recs       map[string]*baseline.Record
	captureErr error
	getErr     error
	deleted    []string
}

func newFakeBaselines() *fakeBaselines {
	return &fakeBaselines{recs: make(map[string]*baseline.Record)}
}

func (f *fakeBaselines) Get(_ context.Context, betID string) (*baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.recs[betID], nil
}

func (f *fakeBaselines) Capture(_ context.Context, betID string, rec baseline.Record) (*baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	if existing, ok := f.recs[betID]; ok {
		return existing, nil
	}
	cp := rec
	f.recs[betID] = &cp
	return &cp, nil
}

func (f *fakeBaselines) Delete(_ context.Context, betID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recs, betID)
	f.deleted = append(f.deleted, betID)
	return nil
}

func (f *fakeBaselines) record(betID string) *baseline.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs[betID]
}

func (f *fakeBaselines) seed(betID string, rec baseline.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[betID] = &rec
}

func (f *fakeBaselines) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type recordedWin struct {
	betID  string
	choice string
}

type recordedWash struct {
	betID       string
	eventType   string
	explanation string
	reason      string
}

// fakeQueue implementa Resolver gravando as decisões em memória.
type fakeQueue struct {
	wins   []recordedWin
	washes []recordedWash
	err    error
}

func (f *fakeQueue) ResolveWithWinner(_ context.Context, bet *betrepo.Bet, _ string, choice string, _ any) error {
	if f.err != nil {
		return f.err
	}
	f.wins = append(f.wins, recordedWin{betID: bet.ID, choice: choice})
	return nil
}

func (f *fakeQueue) Wash(_ context.Context, bet *betrepo.Bet, _ string, eventType, explanation string, payload any) error {
	if f.err != nil {
		return f.err
	}
	w := recordedWash{betID: bet.ID, eventType: eventType, explanation: explanation}
	if d, ok := payload.(washDetail); ok {
		w.reason = d.Reason
	}
	f.washes = append(f.washes, w)
	return nil
}

// env monta um validator com todas as dependências fakes e um cache de
// documentos por jogo.
type env struct {
	repo      *fakeRepo
	baselines *fakeBaselines
	queue     *fakeQueue
	docs      map[string]*gamedoc.Document
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return &env{
		repo:      &fakeRepo{},
		baselines: newFakeBaselines(),
		queue:     &fakeQueue{},
		docs:      make(map[string]*gamedoc.Document),
	}
}

func (e *env) deps() ValidatorDeps {
	return ValidatorDeps{
		Log:       zap.NewNop(),
		Repo:      e.repo,
		Baselines: e.baselines,
		Queue:     e.queue,
		Latest: func(gameID string) (*gamedoc.Document, bool) {
			d, ok := e.docs[gameID]
			return d, ok
		},
	}
}

func (e *env) addPending(id, gameID, modeKey string, cfg any) *betrepo.Bet {
	raw, _ := json.Marshal(cfg)
	bet := betrepo.Bet{
		ID:         id,
		TableID:    "table-" + id,
		GameID:     gameID,
		ModeKey:    modeKey,
		Status:     betrepo.StatusPending,
		ModeConfig: raw,
	}
	e.repo.bets = append(e.repo.bets, bet)
	return &e.repo.bets[len(e.repo.bets)-1]
}

// testDoc monta um documento com dois times e jogadores opcionais.
func testDoc(gameID, status string, homeScore, awayScore int64, players ...gamedoc.Player) *gamedoc.Document {
	return &gamedoc.Document{
		GameID: gameID,
		Status: status,
		Period: 2,
		Teams: []gamedoc.Team{
			{ID: "TH", Abbreviation: "KC", DisplayName: "Kansas City Chiefs", HomeAway: "home", Score: homeScore},
			{ID: "TA", Abbreviation: "BUF", DisplayName: "Buffalo Bills", HomeAway: "away", Score: awayScore},
		},
		Players: players,
	}
}

func playerWith(id, name string, category, field string, value float64) gamedoc.Player {
	return gamedoc.Player{
		ID:    id,
		Name:  name,
		Stats: gamedoc.Stats{category: {field: value}},
	}
}

var errStoreDown = errors.New("store down")
