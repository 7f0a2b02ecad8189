package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmlogistics/freight_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GenerateDocumentNumber produces the next human-readable reference for
// the kind and year, "{DEV|FAC}-{year}-{seq}" with a three-digit minimum
// sequence: DEV-2026-001, FAC-2026-014.
//
// The sequence is 1 + the numeric suffix of the lexicographically-last
// existing number sharing the kind+year prefix, read without an exclusive
// lock: two concurrent creations in the same kind/year can read the same
// latest number and collide on the unique index, which the save protocol
// then reports as a conflict. STRICT_DOCUMENT_NUMBER_LOCK=true closes the
// race by serializing generation behind a redis lock per kind+year.
func GenerateDocumentNumber(ctx context.Context, db *gorm.DB, kind DocumentKind, at time.Time) (string, error) {

	prefix := DocumentNumberPrefix(kind)
	year := at.Year()

	if config.StrictDocumentNumberLock() {
		locker := config.GetRedisLock()
		if locker == nil {
			logger := config.GetLogger()
			logger.WithFields(logrus.Fields{
				"module": "documentNumber",
				"kind":   string(kind),
			}).Warn("redis lock not ready; generating document number without lock")
		} else {
			lock, err := locker.Obtain(ctx, fmt.Sprintf("docnum:%s-%d", prefix, year), 10*time.Second, nil)
			if err == nil {
				defer func() { _ = lock.Release(ctx) }()
			} else if err != redislock.ErrNotObtained {
				return "", err
			}
			// ErrNotObtained: proceed unlocked, the unique index still
			// catches a collision.
		}
	}

	return nextDocumentNumber(db.WithContext(ctx), kind, year)
}

func nextDocumentNumber(tx *gorm.DB, kind DocumentKind, year int) (string, error) {
	prefix := DocumentNumberPrefix(kind)
	yearPrefix := fmt.Sprintf("%s-%d-", prefix, year)

	var lastNumbers []string
	err := tx.Model(&Document{}).
		Where("kind = ? AND document_number LIKE ?", kind, yearPrefix+"%").
		Order("document_number DESC").
		Limit(1).
		Pluck("document_number", &lastNumbers).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if len(lastNumbers) > 0 {
		if n, ok := parseNumberSuffix(lastNumbers[0]); ok {
			seq = n + 1
		}
	}

	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq), nil
}

func parseNumberSuffix(number string) (int, bool) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
