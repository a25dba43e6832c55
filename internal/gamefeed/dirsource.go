package gamefeed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DirSource observa um diretório com um JSON refinado por jogo
// (<gameId>.json), no layout produzido pelo pipeline de ingestão.
// O dedup por assinatura fica no Service; aqui só lemos e repassamos.
type DirSource struct {
	Dir      string
	Interval time.Duration
	Log      *zap.Logger
}

// Run varre o diretório em intervalos fixos e emite cada arquivo legível.
// Arquivo corrompido ou parcialmente escrito é ignorado nesta rodada;
// nunca interrompe a observação dos demais jogos.
func (d *DirSource) Run(ctx context.Context, emit func(raw []byte)) error {
	interval := d.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.scan(emit)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.scan(emit)
		}
	}
}

func (d *DirSource) scan(emit func(raw []byte)) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		d.Log.Warn("feed dir read failed", zap.String("dir", d.Dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(d.Dir, e.Name()))
		if err != nil {
			d.Log.Warn("feed file read failed", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		emit(raw)
	}
}
