package handler

// DI for all handlers alike.

import (
	"database/sql"

	"github.com/bioepi/snapdb/pkg/model"
)

type DBContext struct {
	DB        *sql.DB
	Clusterer *model.Clusterer
}
