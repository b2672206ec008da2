package recording

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"

	"github.com/kestrelcv/kestrel/internal/conf"
)

// Storer is the clip metadata persistence interface.
type Storer interface {
	EnsureSchema(context.Context) error
	Add(context.Context, *Clip) error
	Get(context.Context, *Clip, ...orm.QueryOption) error
	Del(context.Context, *Clip, ...orm.QueryOption) error
	Find(context.Context, *[]*Clip, orm.Pager, ...orm.QueryOption) (int64, error)
}

// Core is the clip metadata business domain.
type Core struct {
	store Storer
	conf  *conf.Record
}

func NewCore(store Storer, cfg *conf.Record) Core {
	return Core{store: store, conf: cfg}
}

// FindClips pages through recorded clips, newest first.
func (c Core) FindClips(ctx context.Context, in *FindClipInput) ([]*Clip, int64, error) {
	query := orm.NewQuery(4).OrderBy("started_at DESC")
	if in.Label != "" {
		query.Where("label = ?", in.Label)
	}
	if in.VideoSource != "" {
		query.Where("video_source = ?", in.VideoSource)
	}
	if in.StartMs > 0 && in.EndMs > 0 {
		query.Where("started_at >= ? AND ended_at <= ?", in.StartAt(), in.EndAt())
	}

	items := make([]*Clip, 0, in.Limit())
	total, err := c.store.Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetClip queries a single clip row.
func (c Core) GetClip(ctx context.Context, id int64) (*Clip, error) {
	out := Clip{ID: id}
	if err := c.store.Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelClip removes the clip row and its file on disk.
func (c Core) DelClip(ctx context.Context, id int64) (*Clip, error) {
	out, err := c.GetClip(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.store.Del(ctx, out, orm.Where("id=?", id)); err != nil {
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	if out.Path != "" {
		if err := os.Remove(out.Path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove clip file", "path", out.Path, "err", err)
		}
	}
	return out, nil
}

type addClipInput struct {
	Label       string
	Path        string
	VideoSource string
	StartedAt   time.Time
	EndedAt     time.Time
	Frames      int
	FPS         float64
	Forced      bool
}

// addFinished persists the metadata of a finalized clip. Best effort: the
// clip file is already durable on disk, a failed insert only loses the row.
func (c Core) addFinished(ctx context.Context, in *addClipInput) {
	if c.store == nil {
		return
	}
	var out Clip
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	out.StartedAt = orm.Time{Time: in.StartedAt}
	out.EndedAt = orm.Time{Time: in.EndedAt}
	if in.FPS > 0 {
		out.Duration = float64(in.Frames) / in.FPS
	}
	out.CreatedAt = orm.Now()

	if err := c.store.Add(ctx, &out); err != nil {
		slog.Warn("failed to persist clip metadata", "path", in.Path, "err", err)
	}
}

// StartCleanupWorker deletes clips older than the retention window. Runs
// once at startup and then hourly.
func (c Core) StartCleanupWorker() {
	if c.conf == nil || c.conf.RetainDays <= 0 {
		slog.Info("clip cleanup disabled")
		return
	}

	slog.Info("clip cleanup worker started", "retain_days", c.conf.RetainDays, "output_dir", c.conf.OutputDir)

	c.cleanupExpired()

	ticker := time.NewTicker(60 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.cleanupExpired()
	}
}

func (c Core) cleanupExpired() {
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -c.conf.RetainDays)

	var expired []*Clip
	_, err := c.store.Find(ctx, &expired, pageOf(1, 200), orm.Where("started_at < ?", orm.Time{Time: cutoff}))
	if err != nil {
		slog.Warn("failed to query expired clips", "err", err)
		return
	}

	deleted, filesDeleted := 0, 0
	for _, clip := range expired {
		if clip.Path != "" {
			if err := os.Remove(clip.Path); err == nil {
				filesDeleted++
			} else if !os.IsNotExist(err) {
				slog.Warn("failed to remove expired clip file", "path", clip.Path, "err", err)
				continue
			}
		}
		if err := c.store.Del(ctx, clip, orm.Where("id=?", clip.ID)); err != nil {
			slog.Warn("failed to delete expired clip row", "id", clip.ID, "err", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		slog.Info("expired clip cleanup completed",
			"retain_days", c.conf.RetainDays,
			"cutoff_time", cutoff.Format(time.DateTime),
			"clips_deleted", deleted,
			"files_deleted", filesDeleted,
		)
	}
}

// FullPath resolves a clip row path against the output directory when the
// stored path is relative.
func (c Core) FullPath(path string) string {
	if c.conf == nil || c.conf.OutputDir == "" || filepath.IsAbs(path) {
		return path
	}
	if filepath.Dir(path) == c.conf.OutputDir {
		return path
	}
	return filepath.Join(c.conf.OutputDir, filepath.Base(path))
}

type fixedPager struct {
	offset, limit int
}

func (p fixedPager) Offset() int { return p.offset }
func (p fixedPager) Limit() int  { return p.limit }

func pageOf(page, size int) fixedPager {
	if page < 1 {
		page = 1
	}
	return fixedPager{offset: (page - 1) * size, limit: size}
}
