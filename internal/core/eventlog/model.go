package eventlog

import (
	"fmt"

	"github.com/ixugo/goddd/pkg/orm"
)

// Event is one audit log entry. Immutable once created; the same value is
// delivered to the in-memory buffer and, best effort, to the durable table.
type Event struct {
	ID          int64    `gorm:"primaryKey" json:"id"`
	Timestamp   orm.Time `gorm:"column:timestamp;notNull;index" json:"timestamp"`
	Level       Level    `gorm:"column:level;type:varchar(20);notNull;index" json:"level"`
	Message     string   `gorm:"column:message;type:text;notNull" json:"message"`
	VideoSource string   `gorm:"column:video_source;type:varchar(255)" json:"video_source,omitempty"`
	ClipPath    string   `gorm:"column:clip_path;type:varchar(255)" json:"clip_path,omitempty"`
}

func (*Event) TableName() string {
	return "log_events"
}

// String renders the entry for the scrolling log view.
func (e Event) String() string {
	return fmt.Sprintf("[%s] %s %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Level, e.Message)
}
