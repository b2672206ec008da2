package recording

import "github.com/ixugo/goddd/pkg/orm"

// Clip is the persisted metadata row for one recorded clip file. The file
// itself lives flat under the output directory.
type Clip struct {
	ID          int64    `gorm:"primaryKey" json:"id"`
	Label       string   `gorm:"column:label;type:varchar(64);notNull" json:"label"`
	Path        string   `gorm:"column:path;type:varchar(255);notNull" json:"path"`
	VideoSource string   `gorm:"column:video_source;type:varchar(255)" json:"video_source"`
	StartedAt   orm.Time `gorm:"column:started_at;notNull;index" json:"started_at"`
	EndedAt     orm.Time `gorm:"column:ended_at;notNull" json:"ended_at"`
	Duration    float64  `gorm:"column:duration" json:"duration"`
	Frames      int      `gorm:"column:frames" json:"frames"`
	// Forced marks clips closed by stream end or an external stop rather
	// than a natural negative-frame transition.
	Forced    bool     `gorm:"column:forced" json:"forced"`
	CreatedAt orm.Time `gorm:"column:created_at" json:"created_at"`
}

func (*Clip) TableName() string {
	return "clips"
}
