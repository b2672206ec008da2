//go:build wireinject

package app

import (
	"net/http"

	"github.com/google/wire"
	"github.com/kestrelcv/kestrel/internal/conf"
	"github.com/kestrelcv/kestrel/internal/data"
	"github.com/kestrelcv/kestrel/internal/web/api"
)

func wireApp(bc *conf.Bootstrap) (http.Handler, func(), error) {
	panic(wire.Build(data.ProviderSet, api.ProviderSet))
}
