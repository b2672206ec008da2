package clipdb

import (
	"context"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/kestrelcv/kestrel/internal/core/recording"
	"gorm.io/gorm"
)

var _ recording.Storer = (*DB)(nil)

type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) *DB {
	return &DB{db: db}
}

func (d *DB) EnsureSchema(ctx context.Context) error {
	return d.db.WithContext(ctx).AutoMigrate(&recording.Clip{})
}

func (d *DB) Add(ctx context.Context, clip *recording.Clip) error {
	return d.db.WithContext(ctx).Create(clip).Error
}

func (d *DB) Get(ctx context.Context, out *recording.Clip, opts ...orm.QueryOption) error {
	db := d.db.WithContext(ctx)
	for _, fn := range opts {
		db = fn(db)
	}
	return db.First(out).Error
}

func (d *DB) Del(ctx context.Context, clip *recording.Clip, opts ...orm.QueryOption) error {
	db := d.db.WithContext(ctx)
	for _, fn := range opts {
		db = fn(db)
	}
	return db.Delete(clip).Error
}

func (d *DB) Find(ctx context.Context, out *[]*recording.Clip, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := d.db.WithContext(ctx).Model(&recording.Clip{})
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
