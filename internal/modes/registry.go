package modes

// All retorna o conjunto fixo e curado de modos. Não é um motor de regras
// genérico: cada modo é uma estratégia implementada aqui dentro.
func All() []Mode {
	return []Mode{
		PropLineMode{},
		SpreadMode{},
		ScoreBucketMode{},
		FirstToScoreMode{},
		StatDuelMode{},
	}
}

// ByKey retorna o modo pela chave, ou nil se desconhecida.
func ByKey(key string) Mode {
	for _, m := range All() {
		if m.Key() == key {
			return m
		}
	}
	return nil
}
