package eventlogdb

import (
	"context"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/kestrelcv/kestrel/internal/core/eventlog"
	"gorm.io/gorm"
)

var _ eventlog.Storer = (*DB)(nil)

type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) *DB {
	return &DB{db: db}
}

// EnsureSchema creates the log table if it does not exist. Safe to call
// repeatedly, the lazy reconnect path depends on that.
func (d *DB) EnsureSchema(ctx context.Context) error {
	return d.db.WithContext(ctx).AutoMigrate(&eventlog.Event{})
}

func (d *DB) Add(ctx context.Context, ev *eventlog.Event) error {
	return d.db.WithContext(ctx).Create(ev).Error
}

func (d *DB) Find(ctx context.Context, out *[]*eventlog.Event, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := d.db.WithContext(ctx).Model(&eventlog.Event{})
	for _, fn := range opts {
		db = fn(db)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, err
	}
	if err := db.Offset(pager.Offset()).Limit(pager.Limit()).Find(out).Error; err != nil {
		return 0, err
	}
	return total, nil
}
