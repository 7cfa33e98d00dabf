package builtin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/conneroisu/sitecycle/internal/dom"
	"github.com/conneroisu/sitecycle/internal/lifecycle"
	"github.com/conneroisu/sitecycle/internal/modules"
	"github.com/conneroisu/sitecycle/internal/viewport"
)

const defaultColor = "#e2e2e2"

// Cycle paints its element on mount, fades it on page-out while it is in
// view, and logs its own teardown. Dataset keys: color, duration (ms).
func Cycle(el *dom.Element, data dom.Dataset, scope *modules.Scope) error {
	color := data["color"]
	if color == "" {
		color = defaultColor
	}

	var duration time.Duration
	if raw, ok := data["duration"]; ok {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			return fmt.Errorf("invalid duration %q", raw)
		}
		duration = time.Duration(ms) * time.Millisecond
	}

	logger := loggerFor(scope, el)
	lc := scope.Lifecycle

	lc.OnMount(func() {
		el.SetAttr("style", "background-color: "+color)
		el.SetAttr("data-mounted", "true")
	})

	lc.OnPageOut(func(ctx context.Context) error {
		if duration > 0 {
			timer := time.NewTimer(duration)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		el.SetAttr("style", "background-color: "+color+"; opacity: 0")
		return nil
	}, lifecycle.WithElement(el))

	_, err := lc.OnView(el, viewport.ObserveConfig{
		AutoStart: true,
		Callback: func(e viewport.Entry) {
			logger.Debug(context.Background(), "cycle visibility", "in_view", e.IsIn)
		},
	})
	if err != nil {
		return err
	}

	lc.OnDestroy(func() {
		logger.Info(context.Background(), "onDestroy")
	})
	return nil
}
