package gamedoc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Signature calcula um hash estável do conteúdo relevante do documento.
// Entram: status, período, placar e stats dos times, stats dos jogadores.
// Ficam de fora campos voláteis (updatedAt, nomes de exibição), para que
// upstream "barulhento" não gere eventos sem mudança real de estado.
func Signature(d *Document) string {
	var sb strings.Builder
	sb.WriteString(d.Status)
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(d.Period))

	teams := make([]Team, len(d.Teams))
	copy(teams, d.Teams)
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	for _, t := range teams {
		sb.WriteByte('|')
		sb.WriteString(t.ID)
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(t.Score, 10))
		writeStats(&sb, t.Stats)
	}

	players := make([]Player, len(d.Players))
	copy(players, d.Players)
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	for _, p := range players {
		sb.WriteByte('|')
		sb.WriteString(p.ID)
		writeStats(&sb, p.Stats)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// writeStats serializa o mapa de stats em ordem determinística de chaves.
func writeStats(sb *strings.Builder, s Stats) {
	cats := make([]string, 0, len(s))
	for c := range s {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fields := make([]string, 0, len(s[c]))
		for f := range s[c] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			sb.WriteByte(';')
			sb.WriteString(c)
			sb.WriteByte('.')
			sb.WriteString(f)
			sb.WriteByte('=')
			sb.WriteString(strconv.FormatFloat(s[c][f], 'g', -1, 64))
		}
	}
}

// Parse desserializa um documento refinado a partir do JSON bruto.
func Parse(raw []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
