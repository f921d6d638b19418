package root_view

import (
	"context"
	"html/template"
	"time"

	. "taxi/grid_world"
	"taxi/reinforcement"
	"taxi/server/cell_views"
	"taxi/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// frameGap bounds how often solver progress is converted into frames for the browser.
const frameGap = 100 * time.Millisecond

// RootView is the main page's index.html, which is the container for all the
// view components and the wiring for their channels.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView creates the main page and the views it contains. Solver progress reports are
// converted once by @toFrame and broadcast to the value views; @steps feeds the rollout animation.
func NewRootView(
	ctx context.Context,
	grid Grid,
	progress <-chan reinforcement.Progress,
	toFrame func(reinforcement.Progress) cell_views.Frame,
	steps <-chan reinforcement.Step,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[reinforcement.Progress, cell_views.Frame]().
		WithContext(ctx).
		WithRate(frameGap).
		WithModel(progress, toFrame).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, frames)
		}).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			return cell_views.NewValueFunction(done, grid, frames)
		}).
		Build()
	if err != nil {
		return nil, err
	}
	views = append(views, cell_views.NewTaxiView(ctx.Done(), grid, steps))

	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}

	return &RootView{
		views:   views,
		updates: channerics.Merge(ctx.Done(), inputs...),
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			err = parseErr
			return
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The main template bootstraps the rest: sets up client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>taxi value iteration</title>
			<link rel="icon" href="data:,">
			<!--This is the client bootstrap code by which the server pushes new data to the view via websocket.-->
			<script>
				const scheme = location.protocol === "https:" ? "wss://" : "ws://";
				const ws = new WebSocket(scheme + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body style="display:flex; flex-wrap:wrap; font-family:monospace;">
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}
