package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmlogistics/freight_backend/config"
	"github.com/mmlogistics/freight_backend/utils"
	"gorm.io/gorm"
)

type Client struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:50" json:"phone"`
	Address   string    `gorm:"size:500" json:"address"`
	City      string    `gorm:"size:100" json:"city"`
	ZipCode   string    `gorm:"size:20" json:"zipCode"`
	Country   string    `gorm:"size:100" json:"country"`
	VatNumber string    `gorm:"size:50" json:"vatNumber"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type NewClient struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	VatNumber string `json:"vatNumber"`
}

func (input *NewClient) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return errors.New("client name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid client email address")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
	}
	return nil
}

func CreateClient(ctx context.Context, input NewClient) (*Client, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	client := Client{
		Name:      strings.TrimSpace(input.Name),
		Email:     input.Email,
		Phone:     input.Phone,
		Address:   input.Address,
		City:      input.City,
		ZipCode:   input.ZipCode,
		Country:   input.Country,
		VatNumber: input.VatNumber,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func UpdateClient(ctx context.Context, id int, input NewClient) (*Client, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	client, err := GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	client.Name = strings.TrimSpace(input.Name)
	client.Email = input.Email
	client.Phone = input.Phone
	client.Address = input.Address
	client.City = input.City
	client.ZipCode = input.ZipCode
	client.Country = input.Country
	client.VatNumber = input.VatNumber

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

// DeleteClient refuses while any document still references the client.
func DeleteClient(ctx context.Context, id int) (*Client, error) {
	client, err := GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Document](ctx, "client_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("client still has documents attached")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

func GetClient(ctx context.Context, id int) (*Client, error) {
	db := config.GetDB()
	var client Client
	if err := db.WithContext(ctx).First(&client, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &client, nil
}

// GetClientsByIds preserves dataloader batching semantics: the result
// map only holds the ids that exist.
func GetClientsByIds(ctx context.Context, ids []int) (map[int]*Client, error) {
	db := config.GetDB()
	var clients []*Client
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&clients).Error; err != nil {
		return nil, err
	}

	result := make(map[int]*Client, len(clients))
	for _, client := range clients {
		result[client.ID] = client
	}
	return result, nil
}

type ClientsConnection struct {
	Edges    []*ClientsEdge `json:"edges"`
	PageInfo *PageInfo      `json:"pageInfo"`
}

type ClientsEdge Edge[Client]

func PaginateClients(ctx context.Context, limit *int, after *string, name *string) (*ClientsConnection, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)

	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	pageSize := 20
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}

	// Names are free text and can repeat, so the page cursor carries the
	// id as a tiebreak.
	edges, pageInfo, err := FetchPageCompositeCursor[Client](dbCtx, pageSize, after, "name", ">")
	if err != nil {
		return nil, err
	}

	var connection ClientsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		clientEdge := ClientsEdge(edge)
		connection.Edges = append(connection.Edges, &clientEdge)
	}

	return &connection, nil
}
