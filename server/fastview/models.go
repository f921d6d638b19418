// fastview implements simple server side views: a view converts its view-model into
// element updates, which a client publishes to the browser over a websocket, where a
// small bootstrap script applies them by element id.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attrib keys or 'textContent', values are the strings to which these are set.
	// Example: ('x','123') means 'set attribute 'x' to 123. 'textContent' is a reserved key:
	// ('textContent','abc') means 'set ele.textContent to abc'.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// TextContent is the reserved op key that sets an element's text.
const TextContent = "textContent"

// SetText returns an update setting the text of element @id.
func SetText(id, text string) EleUpdate {
	return EleUpdate{EleId: id, Ops: []Op{{Key: TextContent, Value: text}}}
}

// SetAttrs returns an update setting attribute key/value pairs of element @id.
func SetAttrs(id string, kvs ...string) EleUpdate {
	update := EleUpdate{EleId: id}
	for i := 0; i+1 < len(kvs); i += 2 {
		update.Ops = append(update.Ops, Op{Key: kvs[i], Value: kvs[i+1]})
	}
	return update
}

// ViewComponent implements server side views: Parse to add their initial form to a page
// template and Updates to obtain the chan by which ele-updates are notified.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse adds the view's template to the parent, inheriting its func-map, and returns the
	// name under which the view can be invoked.
	Parse(*template.Template) (string, error)
}
