package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/kestrelcv/kestrel/internal/conf"
	"github.com/kestrelcv/kestrel/internal/core/session"
)

// SessionAPI exposes session control to the presentation boundary.
type SessionAPI struct {
	core    *session.Core
	preview *session.Preview
	conf    *conf.Bootstrap
}

func NewSessionAPI(core *session.Core, preview *session.Preview, cfg *conf.Bootstrap) SessionAPI {
	return SessionAPI{core: core, preview: preview, conf: cfg}
}

func RegisterSession(g gin.IRouter, api SessionAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/session", handler...)
	group.POST("/start", web.WrapH(api.startSession))
	group.POST("/upload", api.uploadAndStart)
	group.POST("/stop", web.WrapH(api.stopSession))
	group.GET("/status", web.WrapH(api.getStatus))
	group.GET("/samples", web.WrapH(api.listSamples))

	g.GET("/preview", api.streamPreview)
}

type startSessionOutput struct {
	SessionID string `json:"session_id"`
}

// startSession begins a webcam, file or sample session.
func (a SessionAPI) startSession(c *gin.Context, in *session.StartInput) (startSessionOutput, error) {
	id, err := a.core.Start(c.Request.Context(), in)
	if err != nil {
		return startSessionOutput{}, err
	}
	return startSessionOutput{SessionID: id}, nil
}

func (a SessionAPI) stopSession(c *gin.Context, _ *struct{}) (session.StatusOutput, error) {
	a.core.RequestStop(c.Request.Context())
	return a.core.Status(), nil
}

func (a SessionAPI) getStatus(_ *gin.Context, _ *struct{}) (session.StatusOutput, error) {
	return a.core.Status(), nil
}

type listSamplesOutput struct {
	Items map[string]string `json:"items"`
}

func (a SessionAPI) listSamples(_ *gin.Context, _ *struct{}) (listSamplesOutput, error) {
	return listSamplesOutput{Items: a.conf.Source.Samples}, nil
}

// uploadAndStart stores the multipart video into a temp file and starts a
// file session on it. The session removes the temp file when it ends.
func (a SessionAPI) uploadAndStart(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		web.Fail(c, reason.ErrBadRequest.Withf("missing video file: %s", err.Error()))
		return
	}

	dir := a.conf.Source.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp := filepath.Join(dir, fmt.Sprintf("upload_%d%s", time.Now().UnixNano(), filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, tmp); err != nil {
		web.Fail(c, reason.ErrServer.Withf("save upload: %s", err.Error()))
		return
	}

	id, err := a.core.Start(c.Request.Context(), &session.StartInput{
		Kind:       session.KindFile,
		Identifier: tmp,
		TempFile:   true,
	})
	if err != nil {
		_ = os.Remove(tmp)
		web.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "file": file.Filename})
}

// streamPreview serves the annotated frames as multipart MJPEG. Consumers
// poll the latest frame, a slow client skips frames instead of stalling the
// loop.
func (a SessionAPI) streamPreview(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		web.Fail(c, reason.ErrServer.Withf("streaming unsupported"))
		return
	}

	var lastSeq uint64
	ticker := time.NewTicker(40 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}

		frame, seq := a.preview.Latest()
		if seq == lastSeq || len(frame) == 0 {
			if !a.core.IsActive() && lastSeq != 0 {
				return
			}
			continue
		}
		lastSeq = seq

		if _, err := fmt.Fprintf(c.Writer,
			"--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return
		}
		if _, err := c.Writer.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprint(c.Writer, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}
