package fastview

import (
	"context"
	"errors"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
)

// ViewBuilder fans one data source out to views sharing a view-model. Items may be
// rate limited before conversion: only the latest item of each interval is converted,
// so a fast producer never queues work behind the views.
type ViewBuilder[DataModel any, ViewModel any] struct {
	source  <-chan DataModel
	convert func(DataModel) ViewModel
	views   []ViewBuilderFunc[ViewModel]
	minGap  time.Duration
	done    <-chan struct{} // nil never closes
}

// ViewBuilderFunc builds a view from a done channel and its view-model channel.
type ViewBuilderFunc[ViewModel any] func(<-chan struct{}, <-chan ViewModel) ViewComponent

// ErrNoViews is returned by Build when WithView was never called.
var ErrNoViews = errors.New("no views to build: WithView must be called")

// ErrNoModel is returned by Build when WithModel was never called.
var ErrNoModel = errors.New("no model specified: WithModel must be called")

func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{}
}

// WithModel sets the source and its conversion to the view-model.
func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	input <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.source = input
	vb.convert = convert
	return vb
}

// WithView appends a view; Build returns views in the order added.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	build ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.views = append(vb.views, build)
	return vb
}

// WithRate passes at most one source item per @gap, always the most recent one.
// The last item before the source closes is still delivered. A non-positive gap disables it.
func (vb *ViewBuilder[DataModel, ViewModel]) WithRate(
	gap time.Duration,
) *ViewBuilder[DataModel, ViewModel] {
	vb.minGap = gap
	return vb
}

// WithContext closes every downstream channel when @ctx is done.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

// Build connects source, rate limit, conversion and views. Every view receives every
// view-model, so a slow view slows its siblings.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() ([]ViewComponent, error) {
	if len(vb.views) == 0 {
		return nil, ErrNoViews
	}
	if vb.convert == nil || vb.source == nil {
		return nil, ErrNoModel
	}

	source := vb.source
	if vb.minGap > 0 {
		source = latest(vb.done, source, vb.minGap)
	}
	models := channerics.Broadcast(vb.done, channerics.Convert(vb.done, source, vb.convert), len(vb.views))

	views := make([]ViewComponent, 0, len(vb.views))
	for i, build := range vb.views {
		views = append(views, build(vb.done, models[i]))
	}
	return views, nil
}

// latest forwards items from @source no more often than once per @gap, replacing any
// item still waiting with the newer one.
func latest[T any](done <-chan struct{}, source <-chan T, gap time.Duration) <-chan T {
	output := make(chan T)
	go func() {
		defer close(output)
		ticker := time.NewTicker(gap)
		defer ticker.Stop()

		var (
			pending T
			waiting bool
			sent    time.Time
		)
		for {
			var ready chan<- T
			if waiting && time.Since(sent) >= gap {
				ready = output
			}

			select {
			case <-done:
				return
			case item, ok := <-source:
				if !ok {
					if waiting {
						select {
						case output <- pending:
						case <-done:
						}
					}
					return
				}
				pending, waiting = item, true
			case ready <- pending:
				waiting = false
				sent = time.Now()
			case <-ticker.C:
			}
		}
	}()
	return output
}
