//go:build !v8

package jshandler

import (
	"github.com/cryguy/jshandler/internal/core"
	"github.com/cryguy/jshandler/internal/handler"
	"github.com/cryguy/jshandler/internal/quickjs"
	"go.uber.org/zap"
)

// Engine names the compiled-in script engine.
const Engine = "quickjs"

func newFactory(cfg core.LocationConfig, source string, reg *core.ClassRegistry, log *zap.Logger) handler.Factory {
	return func() (handler.Context, error) {
		c, err := quickjs.NewContext(cfg, source, reg, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
