package models

import (
	"context"
	"strconv"
	"time"

	"github.com/mmlogistics/freight_backend/config"
	"gorm.io/gorm"
)

// DocumentHistory is the append-only audit trail of one document. Entries
// are only ever inserted; reads come back newest-first.
type DocumentHistory struct {
	ID         int       `gorm:"primary_key" json:"id"`
	DocumentId int       `gorm:"index;not null" json:"document_id"`
	Action     string    `gorm:"size:20;not null" json:"action"`
	Detail     string    `gorm:"type:text" json:"detail"`
	ActorId    string    `gorm:"size:100;not null" json:"actor_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// appendHistory writes one entry on the caller's transaction (or bare
// connection). An empty actorId records the system label.
func appendHistory(tx *gorm.DB, documentId int, action string, detail string, actorId string) error {
	if actorId == "" {
		actorId = SystemActor
	}
	entry := DocumentHistory{
		DocumentId: documentId,
		Action:     action,
		Detail:     detail,
		ActorId:    actorId,
	}
	return tx.Create(&entry).Error
}

// AppendDocumentHistory is the out-of-transaction entry point for
// callers outside this package (workflow side effects).
func AppendDocumentHistory(ctx context.Context, documentId int, action string, detail string, actorId string) error {
	db := config.GetDB()
	return appendHistory(db.WithContext(ctx), documentId, action, detail, actorId)
}

func GetDocumentHistories(ctx context.Context, documentId int) ([]*DocumentHistory, error) {
	db := config.GetDB()
	var results []*DocumentHistory
	err := db.WithContext(ctx).
		Where("document_id = ?", documentId).
		Order("created_at DESC, id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

type HistoriesConnection struct {
	Edges    []*HistoriesEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

type HistoriesEdge Edge[DocumentHistory]

func (h DocumentHistory) GetId() int {
	return h.ID
}

// The ledger is append-only, so id order is insertion order and makes a
// simpler cursor than the created_at timestamp.
func (h DocumentHistory) GetCursor() string {
	return strconv.Itoa(h.ID)
}

func PaginateDocumentHistory(ctx context.Context, limit int, after *string, documentId int) (*HistoriesConnection, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("document_id = ?", documentId)

	edges, pageInfo, err := FetchPagePureCursor[DocumentHistory](dbCtx, limit, after, "id", "<")
	if err != nil {
		return nil, err
	}
	var connection HistoriesConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		historyEdge := HistoriesEdge(edge)
		connection.Edges = append(connection.Edges, &historyEdge)
	}

	return &connection, err
}
