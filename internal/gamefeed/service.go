package gamefeed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

// Event é a notificação de mudança de estado de um jogo, entregue aos
// assinantes (kernels de modo). Não é persistido.
type Event struct {
	GameID    string
	Doc       *gamedoc.Document
	Signature string
	UpdatedAt time.Time
}

// Source é o transporte que entrega documentos refinados brutos ao serviço.
// Duas implementações: diretório de arquivos (DirSource) e push via
// WebSocket (WSSource). Run só retorna quando o contexto for cancelado.
type Source interface {
	Run(ctx context.Context, emit func(raw []byte)) error
}

type cachedGame struct {
	doc       *gamedoc.Document
	signature string
	updatedAt time.Time
}

// Service observa documentos por jogo, deduplica por assinatura de conteúdo
// e emite eventos de mudança para os assinantes de forma assíncrona.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Service struct {
	log *zap.Logger

	mu    sync.RWMutex
	games map[string]cachedGame
	subs  []chan Event

	OnObserved func()       // métricas: documento observado
	OnEmitted  func()       // métricas: evento emitido
	OnSkipped  func()       // métricas: assinatura repetida, nada emitido
	OnError    func(string) // métricas: erro por estágio
}

func NewService(log *zap.Logger) *Service {
	return &Service{
		log:   log,
		games: make(map[string]cachedGame),
	}
}

// Run conecta uma Source ao serviço até o contexto encerrar.
func (s *Service) Run(ctx context.Context, src Source) error {
	return src.Run(ctx, s.Observe)
}

// Observe processa um documento bruto: parse, assinatura, dedup e fan-out.
// Falha de parse é logada e ignorada; nunca derruba a observação dos demais
// jogos.
func (s *Service) Observe(raw []byte) {
	if s.OnObserved != nil {
		s.OnObserved()
	}

	doc, err := gamedoc.Parse(raw)
	if err != nil || doc.GameID == "" {
		s.log.Warn("invalid game document", zap.Error(err))
		if s.OnError != nil {
			s.OnError("parse")
		}
		return
	}

	sig := gamedoc.Signature(doc)
	now := time.Now()

	s.mu.Lock()
	prev, seen := s.games[doc.GameID]
	if seen && prev.signature == sig {
		s.mu.Unlock()
		if s.OnSkipped != nil {
			s.OnSkipped()
		}
		return
	}
	s.games[doc.GameID] = cachedGame{doc: doc, signature: sig, updatedAt: now}
	subs := make([]chan Event, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	ev := Event{GameID: doc.GameID, Doc: doc, Signature: sig, UpdatedAt: now}
	s.deliver(subs, ev)
	if s.OnEmitted != nil {
		s.OnEmitted()
	}
}

// Subscribe registra um assinante. Com replay=true, o canal recebe primeiro
// o último estado conhecido de cada jogo em cache.
func (s *Service) Subscribe(buffer int, replay bool) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	s.subs = append(s.subs, ch)
	var snapshot []Event
	if replay {
		for id, g := range s.games {
			snapshot = append(snapshot, Event{GameID: id, Doc: g.doc, Signature: g.signature, UpdatedAt: g.updatedAt})
		}
	}
	s.mu.Unlock()

	for _, ev := range snapshot {
		s.send(ch, ev)
	}
	return ch
}

// Latest retorna o último documento conhecido de um jogo, se houver.
func (s *Service) Latest(gameID string) (*gamedoc.Document, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, "", false
	}
	return g.doc, g.signature, true
}

// LatestAll retorna o último documento de cada jogo em cache.
func (s *Service) LatestAll() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.games))
	for id, g := range s.games {
		out = append(out, Event{GameID: id, Doc: g.doc, Signature: g.signature, UpdatedAt: g.updatedAt})
	}
	return out
}

func (s *Service) deliver(subs []chan Event, ev Event) {
	for _, ch := range subs {
		s.send(ch, ev)
	}
}

// send nunca bloqueia o loop do feed: assinante lento perde o evento
// (o próximo update ou o sweep de catch-up cobre o atraso).
func (s *Service) send(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
		s.log.Warn("slow feed subscriber, dropping event", zap.String("game_id", ev.GameID))
		if s.OnError != nil {
			s.OnError("slow_subscriber")
		}
	}
}
