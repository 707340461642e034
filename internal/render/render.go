// Package render turns API responses into the summaries shown on the dashboard.
// Missing fields are replaced by placeholders; they are never errors.
package render

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/meeyouu/skiniveAPI/internal/relay"
)

// Placeholder shown for a missing field.
const Placeholder = "N/A"

// Field is one labelled line of a summary. Link is set for values that
// should be rendered as a hyperlink.
type Field struct {
	Label string
	Value string
	Link  string
}

// Disease is one entry of a disease category.
type Disease struct {
	ID    string
	Label string
	Name  string
}

// Category groups diseases under a title.
type Category struct {
	Title    string
	Diseases []Disease
}

// View is everything the page shows for one response.
type View struct {
	Title       string
	Raw         string
	Error       string
	Fields      []Field
	Description string
	Categories  []Category
}

// Failed reports whether the response carried an error.
func (v View) Failed() bool {
	return v.Error != ""
}

// Validation summarises a validate response as "isgood: True, prob: 97".
func Validation(resp relay.Response) View {
	view := newView("Validation Response", resp)
	if view.Failed() {
		return view
	}
	view.Fields = []Field{{
		Label: "Result",
		Value: fmt.Sprintf("isgood: %s, prob: %s",
			Value(resp.Get("isgood"), "false"),
			Value(resp.Get("prob"), Placeholder)),
	}}
	return view
}

// Prediction summarises a predict response.
func Prediction(resp relay.Response) View {
	view := newView("Prediction Response", resp)
	if view.Failed() {
		return view
	}

	view.Fields = []Field{
		{Label: "Class", Value: Value(resp.Get("class"), Placeholder)},
		{Label: "Class Raw", Value: Value(resp.Get("class_raw"), Placeholder)},
		{Label: "Probability", Value: Value(resp.Get("prob"), Placeholder) + "%"},
		{Label: "Risk", Value: Value(resp.Get("risk"), Placeholder)},
		{Label: "Atlas Page", Value: "Link", Link: Value(resp.Get("atlas_page_link"), "#")},
	}
	view.Description = Value(resp.Get("description"), "")
	return view
}

// DiseaseClasses lists categories[].diseases[] of a classes response.
func DiseaseClasses(resp relay.Response) View {
	view := newView("Disease Classes Response", resp)
	if view.Failed() {
		return view
	}

	resp.Get("categories").ForEach(func(_, category gjson.Result) bool {
		item := Category{Title: Value(category.Get("title_name"), Placeholder)}
		category.Get("diseases").ForEach(func(_, disease gjson.Result) bool {
			item.Diseases = append(item.Diseases, Disease{
				ID:    Value(disease.Get("id"), Placeholder),
				Label: Value(disease.Get("label"), Placeholder),
				Name:  Value(disease.Get("name"), Placeholder),
			})
			return true
		})
		view.Categories = append(view.Categories, item)
		return true
	})
	return view
}

func newView(title string, resp relay.Response) View {
	return View{
		Title: title,
		Raw:   resp.Indented(),
		Error: resp.Error(),
	}
}

// Value formats a response field for display, see relay.Format.
func Value(value gjson.Result, placeholder string) string {
	return relay.Format(value, placeholder)
}
