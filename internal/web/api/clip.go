package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/grafov/m3u8"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/kestrelcv/kestrel/internal/conf"
	"github.com/kestrelcv/kestrel/internal/core/recording"
)

// ClipAPI serves recorded clip metadata and files.
type ClipAPI struct {
	clipCore recording.Core
	conf     *conf.Bootstrap
}

func NewClipAPI(core recording.Core, cfg *conf.Bootstrap) ClipAPI {
	return ClipAPI{clipCore: core, conf: cfg}
}

func RegisterClip(g gin.IRouter, api ClipAPI, handler ...gin.HandlerFunc) {
	{
		group := g.Group("/clips", handler...)
		group.GET("", web.WrapH(api.findClips))
		group.GET("/playlist.m3u8", api.playlist)
		group.GET("/:id", web.WrapH(api.getClip))
		group.DELETE("/:id", web.WrapH(api.delClip))
		group.GET("/:id/download", api.downloadClip)
	}

	// Static access to the flat clip directory. Gin's Static supports HTTP
	// Range requests, so players can seek.
	if api.conf != nil && api.conf.Record.OutputDir != "" {
		slog.Info("serving clip files", "path", "/static/clips", "dir", api.conf.Record.OutputDir)
		g.Static("/static/clips", api.conf.Record.OutputDir)
	}
}

func (a ClipAPI) findClips(c *gin.Context, in *recording.FindClipInput) (any, error) {
	items, total, err := a.clipCore.FindClips(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a ClipAPI) getClip(c *gin.Context, _ *struct{}) (*recording.Clip, error) {
	clipID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return a.clipCore.GetClip(c.Request.Context(), clipID)
}

func (a ClipAPI) delClip(c *gin.Context, _ *struct{}) (*recording.Clip, error) {
	clipID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return a.clipCore.DelClip(c.Request.Context(), clipID)
}

func (a ClipAPI) downloadClip(c *gin.Context) {
	clipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "msg": "invalid clip id"})
		return
	}

	clip, err := a.clipCore.GetClip(c.Request.Context(), clipID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": err.Error()})
		return
	}

	path := a.clipCore.FullPath(clip.Path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": "clip file not found"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(path)))
	c.File(path)
}

// playlist renders the clips of a time range as a VOD m3u8 so a whole
// incident can be reviewed as one stream.
func (a ClipAPI) playlist(c *gin.Context) {
	startMs, _ := strconv.ParseInt(c.Query("start_ms"), 10, 64)
	endMs, _ := strconv.ParseInt(c.Query("end_ms"), 10, 64)

	in := recording.FindClipInput{
		PagerFilter: web.PagerFilter{Page: 1, Size: 10000},
	}
	if startMs > 0 && endMs > 0 {
		in.DateFilter = web.DateFilter{StartMs: startMs, EndMs: endMs}
	}

	clips, _, err := a.clipCore.FindClips(c.Request.Context(), &in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 1, "msg": err.Error()})
		return
	}
	if len(clips) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": "no clips found"})
		return
	}

	body, err := buildPlaylist(clips)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 1, "msg": err.Error()})
		return
	}

	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, body)
}

// buildPlaylist emits a VOD playlist, oldest first, with a DISCONTINUITY
// between clips since every file starts its own timeline.
func buildPlaylist(clips []*recording.Clip) (string, error) {
	pl, err := m3u8.NewMediaPlaylist(0, uint(len(clips)))
	if err != nil {
		return "", err
	}
	pl.MediaType = m3u8.VOD

	sorted := make([]*recording.Clip, len(clips))
	copy(sorted, clips)
	for i := 0; i < len(sorted)-1; i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i].StartedAt.After(sorted[j].StartedAt.Time) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	for i, clip := range sorted {
		uri := "/static/clips/" + filepath.Base(clip.Path)
		if err := pl.Append(uri, clip.Duration, ""); err != nil {
			return "", err
		}
		// Each file starts its own timeline; the flag lands on the segment
		// just appended and renders as EXT-X-DISCONTINUITY before it.
		if i > 0 {
			_ = pl.SetDiscontinuity()
		}
	}
	pl.Close()
	return pl.String(), nil
}
