// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between the driver errors of the session
// backends and the errors the session core reasons about.
//
// Every backend signals "nothing stored under this key" differently; the
// session stores only need to know whether a read found nothing or failed.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// IsMissing reports whether err means the row or key does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, redis.Nil)
}

// Wrap tags a driver error with the failed action, keeping the cause for [errors.Is].
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", action, err)
}
