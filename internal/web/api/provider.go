package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/kestrelcv/kestrel/internal/adapter/dnnadapter"
	"github.com/kestrelcv/kestrel/internal/conf"
	"github.com/kestrelcv/kestrel/internal/core/eventlog"
	"github.com/kestrelcv/kestrel/internal/core/eventlog/store/eventlogdb"
	"github.com/kestrelcv/kestrel/internal/core/recording"
	"github.com/kestrelcv/kestrel/internal/core/recording/store/clipdb"
	"github.com/kestrelcv/kestrel/internal/core/session"
	"github.com/kestrelcv/kestrel/internal/core/vision"
	"github.com/kestrelcv/kestrel/internal/media"
	"gorm.io/gorm"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewEventLogCore,
	NewClipCore, NewClipAPI,
	NewDetectors,
	NewPreview,
	NewRecorder,
	NewSessionCore, NewSessionAPI,
	NewEventAPI,
)

type Usecase struct {
	Conf       *conf.Bootstrap
	DB         *gorm.DB
	EventLog   *eventlog.Core
	SessionAPI SessionAPI
	EventAPI   EventAPI
	ClipAPI    ClipAPI
}

// NewHTTPHandler builds the gin router.
func NewHTTPHandler(uc *Usecase) http.Handler {
	if !uc.Conf.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	setupRouter(g, uc)
	return g
}

func NewEventLogCore(db *gorm.DB) *eventlog.Core {
	return eventlog.NewCore(eventlogdb.NewDB(db))
}

// NewClipCore creates the clip metadata domain and starts its retention
// worker.
func NewClipCore(db *gorm.DB, cfg *conf.Bootstrap) (recording.Core, error) {
	store := clipdb.NewDB(db)
	// Clip rows are written on the recording hot path, warm the schema here.
	if err := store.EnsureSchema(context.Background()); err != nil {
		return recording.Core{}, err
	}
	core := recording.NewCore(store, &cfg.Record)
	go core.StartCleanupWorker()
	return core, nil
}

// Detectors groups the two independently configured model instances.
type Detectors struct {
	Weapon  vision.Detector
	General vision.Detector
}

func NewDetectors(cfg *conf.Bootstrap) (Detectors, func(), error) {
	weapon, err := dnnadapter.New(cfg.Detect.Weapon, cfg.Detect.InputSize, []string{"Weapon"})
	if err != nil {
		return Detectors{}, nil, err
	}
	general, err := dnnadapter.New(cfg.Detect.General, cfg.Detect.InputSize, vision.COCOLabels)
	if err != nil {
		weapon.Close()
		return Detectors{}, nil, err
	}
	cleanup := func() {
		_ = weapon.Close()
		_ = general.Close()
	}
	return Detectors{Weapon: weapon, General: general}, cleanup, nil
}

func NewPreview() *session.Preview {
	return session.NewPreview()
}

func NewRecorder(cfg *conf.Bootstrap, events *eventlog.Core, clips recording.Core) *recording.Recorder {
	return recording.NewRecorder(cfg.Record.OutputDir, media.OpenClipWriter, events, clips, cfg.Record.CooldownFrames)
}

func NewSessionCore(cfg *conf.Bootstrap, events *eventlog.Core, rec *recording.Recorder,
	dets Detectors, preview *session.Preview,
) *session.Core {
	return session.NewCore(cfg, events, rec, dets.Weapon, dets.General, media.CaptureOpener{}, preview)
}
