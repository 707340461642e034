package render

import (
	"testing"

	"github.com/meeyouu/skiniveAPI/internal/relay"
)

func response(doc string) relay.Response {
	return relay.NewResponse([]byte(doc))
}

func TestValidationSummary(t *testing.T) {
	view := Validation(response(`{"isgood": true, "prob": 97}`))

	if view.Failed() {
		t.Fatalf("unexpected failure: %s", view.Error)
	}
	if len(view.Fields) != 1 || view.Fields[0].Value != "isgood: True, prob: 97" {
		t.Fatalf("unexpected fields %+v", view.Fields)
	}
}

func TestValidationDefaults(t *testing.T) {
	view := Validation(response(`{}`))
	if got := view.Fields[0].Value; got != "isgood: false, prob: N/A" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestErrorSkipsFields(t *testing.T) {
	for _, build := range []func(relay.Response) View{Validation, Prediction, DiseaseClasses} {
		view := build(response(`{"error": "timeout", "class": "nevus", "categories": [{"title_name": "x"}]}`))
		if view.Error != "timeout" {
			t.Fatalf("%s: expected error, got %q", view.Title, view.Error)
		}
		if len(view.Fields) != 0 || len(view.Categories) != 0 || view.Description != "" {
			t.Fatalf("%s: expected no summary, got %+v", view.Title, view)
		}
		if view.Raw == "" {
			t.Fatalf("%s: expected raw response to be kept", view.Title)
		}
	}
}

func TestPredictionPlaceholders(t *testing.T) {
	view := Prediction(response(`{"class": "Nevus", "class_raw": "nevus", "prob": 88.5, "description": "Benign."}`))

	want := map[string]string{
		"Class":       "Nevus",
		"Class Raw":   "nevus",
		"Probability": "88.5%",
		"Risk":        "N/A",
	}
	for _, field := range view.Fields {
		if expected, ok := want[field.Label]; ok && field.Value != expected {
			t.Fatalf("%s: expected %q, got %q", field.Label, expected, field.Value)
		}
		if field.Label == "Atlas Page" && field.Link != "#" {
			t.Fatalf("expected default atlas link, got %q", field.Link)
		}
	}
	if view.Description != "Benign." {
		t.Fatalf("unexpected description %q", view.Description)
	}
}

func TestDiseaseClassesEnumeration(t *testing.T) {
	view := DiseaseClasses(response(`{"categories":[{"title_name":"Fungal","diseases":[{"id":1,"label":"A","name":"Tinea"}]}]}`))

	if len(view.Categories) != 1 {
		t.Fatalf("expected one category, got %d", len(view.Categories))
	}
	category := view.Categories[0]
	if category.Title != "Fungal" {
		t.Fatalf("unexpected title %q", category.Title)
	}
	if len(category.Diseases) != 1 {
		t.Fatalf("expected one disease, got %d", len(category.Diseases))
	}
	if got := category.Diseases[0]; got != (Disease{ID: "1", Label: "A", Name: "Tinea"}) {
		t.Fatalf("unexpected disease %+v", got)
	}
}

func TestDiseaseClassesMissingFields(t *testing.T) {
	view := DiseaseClasses(response(`{"categories":[{"diseases":[{"id":7}]}, {}]}`))

	if len(view.Categories) != 2 {
		t.Fatalf("expected two categories, got %d", len(view.Categories))
	}
	if view.Categories[0].Title != Placeholder {
		t.Fatalf("expected placeholder title, got %q", view.Categories[0].Title)
	}
	if got := view.Categories[0].Diseases[0]; got.Label != Placeholder || got.Name != Placeholder {
		t.Fatalf("expected placeholders, got %+v", got)
	}
	if len(view.Categories[1].Diseases) != 0 {
		t.Fatalf("expected no diseases, got %+v", view.Categories[1].Diseases)
	}
}

func TestNonStringErrorUsesDisplayFormatting(t *testing.T) {
	view := Validation(response(`{"error": true}`))
	if view.Error != "True" {
		t.Fatalf("expected True, got %q", view.Error)
	}
}

func TestPredictionMissingProbabilityKeepsPercent(t *testing.T) {
	view := Prediction(response(`{"class": "Nevus"}`))
	for _, field := range view.Fields {
		if field.Label == "Probability" && field.Value != "N/A%" {
			t.Fatalf("expected N/A%%, got %q", field.Value)
		}
	}
}

func TestValueFormatting(t *testing.T) {
	view := Validation(response(`{"isgood": false, "prob": null}`))
	if got := view.Fields[0].Value; got != "isgood: False, prob: None" {
		t.Fatalf("unexpected summary %q", got)
	}
}
