package recording

import "github.com/ixugo/goddd/pkg/web"

type FindClipInput struct {
	web.PagerFilter
	web.DateFilter
	Label       string `form:"label"`        // detection label the clip was named after
	VideoSource string `form:"video_source"` // source the clip was captured from
}
