package storage

import (
	"fmt"
	"time"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

// ObjectKey locates one persisted composite.
type ObjectKey struct {
	Band  model.Band
	Level model.GridLevel
	Date  time.Time
	Name  string // file name rendered from the naming template
}

// Key returns {band}/{level}d/{YYYY}/{MM}/{DD}/{name}.
func (k ObjectKey) Key() string {
	return fmt.Sprintf("%s/%dd/%s/%s", k.Band, k.Level, k.Date.UTC().Format("2006/01/02"), k.Name)
}
