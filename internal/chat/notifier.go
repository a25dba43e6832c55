package chat

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Notifier posta mensagens de sistema na conversa da mesa que originou a
// aposta (explicação de wash, anúncio de vencedor). A interface de chat em
// si é externa; aqui só inserimos a linha que ela exibe.
type Notifier struct{ db *sql.DB }

func NewNotifier(db *sql.DB) *Notifier { return &Notifier{db: db} }

// Post insere uma mensagem de sistema na mesa. Falha aqui é responsabilidade
// do chamador logar; nenhuma decisão de resolução depende deste insert.
func (n *Notifier) Post(ctx context.Context, tableID, text string) error {
	_, err := n.db.ExecContext(ctx, `
		INSERT INTO table_messages (id, table_id, sender, body, created_at)
		VALUES ($1,$2,'system',$3,NOW())`,
		uuid.NewString(), tableID, text,
	)
	return err
}
