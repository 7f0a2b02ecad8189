package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmlogistics/freight_backend/config"
	"gorm.io/gorm"
)

// DocumentSettings holds the per-kind defaults applied when a new
// document omits payment terms or the footer note. One row per kind.
type DocumentSettings struct {
	ID           int          `gorm:"primaryKey" json:"id"`
	Kind         DocumentKind `gorm:"size:1;uniqueIndex" json:"kind"`
	PaymentTerms string       `gorm:"size:500" json:"paymentTerms"`
	FooterNote   string       `gorm:"size:1000" json:"footerNote"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type DocumentDefaults struct {
	PaymentTerms string `json:"paymentTerms"`
	FooterNote   string `json:"footerNote"`
}

func settingsCacheKey(kind DocumentKind) string {
	return "document_settings:" + string(kind)
}

// GetDocumentDefaults never fails on a missing row: absent settings mean
// empty defaults. Defaults are read on every create/convert, so they sit
// behind a redis cache when one is connected; without redis the cache
// helpers are no-ops and every read hits the table.
func GetDocumentDefaults(ctx context.Context, kind DocumentKind) (DocumentDefaults, error) {
	var defaults DocumentDefaults
	if cached, ok, err := config.GetRedisValue(settingsCacheKey(kind)); err == nil && ok {
		if err := json.Unmarshal([]byte(cached), &defaults); err == nil {
			return defaults, nil
		}
	}

	db := config.GetDB()
	var settings DocumentSettings
	err := db.WithContext(ctx).Where("kind = ?", kind).First(&settings).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return DocumentDefaults{}, err
	}
	defaults = DocumentDefaults{
		PaymentTerms: settings.PaymentTerms,
		FooterNote:   settings.FooterNote,
	}

	if encoded, err := json.Marshal(defaults); err == nil {
		_ = config.SetRedisValue(settingsCacheKey(kind), string(encoded), time.Hour)
	}
	return defaults, nil
}

type NewDocumentSettings struct {
	Kind         DocumentKind `json:"kind" binding:"required"`
	PaymentTerms string       `json:"paymentTerms"`
	FooterNote   string       `json:"footerNote"`
}

// UpsertDocumentSettings replaces the defaults for one document kind and
// drops the cached copy.
func UpsertDocumentSettings(ctx context.Context, input NewDocumentSettings) (*DocumentSettings, error) {
	if input.Kind != DocumentKindQuote && input.Kind != DocumentKindInvoice {
		return nil, errors.New("unknown document kind")
	}

	db := config.GetDB()
	var settings DocumentSettings
	err := db.WithContext(ctx).Where("kind = ?", input.Kind).First(&settings).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	settings.Kind = input.Kind
	settings.PaymentTerms = input.PaymentTerms
	settings.FooterNote = input.FooterNote
	if err := db.WithContext(ctx).Save(&settings).Error; err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey(settingsCacheKey(input.Kind)); err != nil {
		config.LogWarn(config.GetLogger(), "settings.go", "UpsertDocumentSettings", "RemoveRedisKey", string(input.Kind), err)
	}
	return &settings, nil
}
