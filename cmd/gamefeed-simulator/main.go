package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/shared/config"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/logger"
	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_ws_messages_sent_total",
		Help: "Total de documentos enviados",
	})
	gamesFinished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_games_finished_total",
		Help: "Jogos simulados que chegaram ao final",
	})
)

// Representa uma conexão de cliente WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// Hub gerencia os clientes conectados e faz broadcast dos documentos.
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

// Estado mutável de um jogo simulado; a cada tick o documento evolui um pouco
// (ou não evolui — repetição proposital pra exercitar o dedup do consumidor).
type simGame struct {
	doc   gamedoc.Document
	ticks int
	limit int
}

func newCatalog() []*simGame {
	mk := func(gameID, homeID, homeAbbr, homeName, awayID, awayAbbr, awayName string, players []gamedoc.Player) *simGame {
		return &simGame{
			doc: gamedoc.Document{
				GameID: gameID,
				Status: gamedoc.StatusInProgress,
				Period: 1,
				Teams: []gamedoc.Team{
					{ID: homeID, Abbreviation: homeAbbr, DisplayName: homeName, HomeAway: "home", Stats: gamedoc.Stats{}},
					{ID: awayID, Abbreviation: awayAbbr, DisplayName: awayName, HomeAway: "away", Stats: gamedoc.Stats{}},
				},
				Players: players,
			},
			limit: 40 + rand.Intn(20),
		}
	}

	return []*simGame{
		mk("401_SIM_001", "T01", "KC", "Kansas City Chiefs", "T02", "BUF", "Buffalo Bills", []gamedoc.Player{
			{ID: "P1001", Name: "Patrick Mahomes", TeamID: "T01", Stats: gamedoc.Stats{"passing": {"passingYards": 0, "passingTouchdowns": 0}}},
			{ID: "P1002", Name: "Josh Allen", TeamID: "T02", Stats: gamedoc.Stats{"passing": {"passingYards": 0, "passingTouchdowns": 0}}},
			{ID: "P1003", Name: "Travis Kelce", TeamID: "T01", Stats: gamedoc.Stats{"receiving": {"receivingYards": 0, "receptions": 0}}},
		}),
		mk("401_SIM_002", "T03", "SF", "San Francisco 49ers", "T04", "DAL", "Dallas Cowboys", []gamedoc.Player{
			{ID: "P2001", Name: "Christian McCaffrey", TeamID: "T03", Stats: gamedoc.Stats{"rushing": {"rushingYards": 0, "rushingAttempts": 0}}},
			{ID: "P2002", Name: "CeeDee Lamb", TeamID: "T04", Stats: gamedoc.Stats{"receiving": {"receivingYards": 0, "receptions": 0}}},
		}),
	}
}

// tick avança o jogo: pontuação ocasional, stats acumulando, períodos
// passando. ~1 em cada 4 ticks não muda nada.
func (g *simGame) tick() *gamedoc.Document {
	if g.doc.IsFinal() {
		d := g.doc
		d.UpdatedAt = time.Now().UTC()
		return &d
	}
	g.ticks++

	if rand.Intn(4) != 0 {
		// pontuação: raramente, e só pra um dos lados por tick
		if rand.Intn(5) == 0 {
			t := &g.doc.Teams[rand.Intn(len(g.doc.Teams))]
			t.Score += []int64{3, 7, 7, 2}[rand.Intn(4)]
		}
		for i := range g.doc.Players {
			p := &g.doc.Players[i]
			for cat, fields := range p.Stats {
				for f := range fields {
					switch f {
					case "passingYards", "rushingYards", "receivingYards":
						p.Stats[cat][f] += float64(rand.Intn(15))
					case "passingTouchdowns":
						if rand.Intn(12) == 0 {
							p.Stats[cat][f]++
						}
					case "receptions", "rushingAttempts":
						if rand.Intn(3) == 0 {
							p.Stats[cat][f]++
						}
					}
				}
			}
		}
	}

	if g.ticks%(g.limit/4+1) == 0 && g.doc.Period < 4 {
		g.doc.Period++
	}
	if g.ticks >= g.limit {
		g.doc.Status = gamedoc.StatusFinal
		gamesFinished.Inc()
	}

	g.doc.UpdatedAt = time.Now().UTC()
	d := g.doc
	return &d
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent, gamesFinished)

	h := newHub(log)
	catalog := newCatalog()

	// Evolui e transmite os documentos a cada 2 segundos
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for _, g := range catalog {
				h.broadcast(g.tick())
			}
		}
	}()

	appMux := http.NewServeMux()
	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		// Goroutine para manter a conexão viva e remover cliente ao desconectar
		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			_ = conn.SetReadDeadline(time.Time{})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("gamefeed simulator (metrics) running",
			zap.String("addr", metricsAddr),
			zap.String("paths", "/healthz,/metrics"),
		)
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("gamefeed simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws"),
		zap.Int("games", len(catalog)),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
