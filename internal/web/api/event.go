package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/kestrelcv/kestrel/internal/core/eventlog"
)

// EventAPI serves the audit log: the durable table for history queries and
// the in-memory buffer for the scrolling live view.
type EventAPI struct {
	events *eventlog.Core
}

func NewEventAPI(events *eventlog.Core) EventAPI {
	return EventAPI{events: events}
}

func RegisterEvent(g gin.IRouter, api EventAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/events", handler...)
	group.GET("", web.WrapH(api.findEvents))
	group.GET("/recent", web.WrapH(api.recentEvents))
	group.POST("/note", web.WrapH(api.addNote))
}

// findEvents pages the durable audit table.
func (a EventAPI) findEvents(c *gin.Context, in *eventlog.FindEventInput) (any, error) {
	items, total, err := a.events.FindEvents(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

type recentEventsInput struct {
	Limit int `form:"limit"`
}

type recentEventsOutput struct {
	Items []eventlog.Event `json:"items"`
	// Text is the ready-to-render scrolling view, most recent first.
	Text string `json:"text"`
}

// recentEvents returns the bounded in-memory buffer. It works even when the
// durable store is down.
func (a EventAPI) recentEvents(_ *gin.Context, in *recentEventsInput) (recentEventsOutput, error) {
	items := a.events.Recent(in.Limit)
	lines := make([]string, 0, len(items))
	for _, e := range items {
		lines = append(lines, e.String())
	}
	return recentEventsOutput{Items: items, Text: strings.Join(lines, "\n")}, nil
}

type addNoteInput struct {
	Message string `json:"message"`
	// Level is optional; free-form notes fall back to keyword inference.
	Level string `json:"level"`
}

// addNote records an operator note. Explicit levels win, keyword inference
// is only the fallback for untagged messages.
func (a EventAPI) addNote(c *gin.Context, in *addNoteInput) (any, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, reason.ErrBadRequest.Withf("message is required")
	}
	level := eventlog.Level(strings.ToUpper(in.Level))
	if level == "" {
		level = eventlog.InferLevel(in.Message)
	}
	a.events.Record(c.Request.Context(), level, in.Message)
	return gin.H{"msg": "ok"}, nil
}
