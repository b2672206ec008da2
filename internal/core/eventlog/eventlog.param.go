package eventlog

import "github.com/ixugo/goddd/pkg/web"

type FindEventInput struct {
	web.PagerFilter
	web.DateFilter
	Level       string `form:"level"`        // event level, e.g. DETECTION
	VideoSource string `form:"video_source"` // active source when the event was emitted
}
