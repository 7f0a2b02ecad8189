package models

import (
	"strconv"
	"time"
)

type Identifier interface {
	GetId() int
}

// interface for dataloader results
type Data interface {
	Identifier
	GetDefault(int) Data
}

// loader loading more than one row by one id
type RelatedData interface {
	GetReferenceId() int
}

func (h DocumentHistory) GetReferenceId() int {
	return h.DocumentId
}

func (c Client) GetId() int {
	return c.ID
}

func (c Client) GetDefault(id int) Data {
	return Client{
		ID:        id,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (c Client) GetCursor() string {
	return c.Name
}

func (d Document) GetId() int {
	return d.ID
}

// Documents page on id: a datetime cursor would be compared as text
// against the driver's stored format, which differs between MySQL and
// sqlite, while id comparison coerces numerically on both.
func (d Document) GetCursor() string {
	return strconv.Itoa(d.ID)
}

func (d Document) GetDefault(id int) Data {
	return Document{
		ID:            id,
		DocumentDate:  time.Now(),
		CurrentStatus: DocumentStatusDraft,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}
