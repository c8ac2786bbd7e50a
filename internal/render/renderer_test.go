package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
)

func TestDocumentEscapesUserText(t *testing.T) {
	renderer := NewRenderer(Config{})
	settings := profile.Normalize(map[string]any{
		"profileTitle": "<script>x</script>",
		"profileBio":   "Fish & <chips>",
		"links": []any{
			map[string]any{"title": `"><img src=x onerror=alert(1)>`, "url": "https://example.com/?a=1&b=2"},
		},
	})

	output, err := renderer.Document(settings)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(output, "<script>") {
		t.Fatalf("expected no script tag in output:\n%s", output)
	}
	if strings.Contains(output, "<img src=x") {
		t.Fatalf("expected link title to be escaped:\n%s", output)
	}
	if !strings.Contains(output, "Fish &amp;</p>") {
		t.Fatalf("expected ampersand to be escaped:\n%s", output)
	}
	if !strings.Contains(output, `href="https://example.com/?a=1&amp;b=2"`) {
		t.Fatalf("expected escaped url attribute:\n%s", output)
	}
	if !strings.Contains(output, `<html lang="en">`) {
		t.Fatalf("expected default language:\n%s", output)
	}
}

func TestFragmentKeepsLinkOrder(t *testing.T) {
	renderer := NewRenderer(Config{Language: "de"})
	settings := profile.Normalize(map[string]any{
		"links": []any{
			map[string]any{"title": "Charlie", "url": "https://c.example"},
			map[string]any{"title": "Alpha", "url": "https://a.example"},
			map[string]any{"title": "Bravo", "url": "https://b.example"},
		},
	})

	output, err := renderer.Fragment(settings)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(output, "<html") {
		t.Fatalf("fragment must not contain a document wrapper")
	}
	charlie := strings.Index(output, ">Charlie</a>")
	alpha := strings.Index(output, ">Alpha</a>")
	bravo := strings.Index(output, ">Bravo</a>")
	if charlie < 0 || alpha < 0 || bravo < 0 {
		t.Fatalf("missing buttons in output:\n%s", output)
	}
	if !(charlie < alpha && alpha < bravo) {
		t.Fatalf("buttons out of order: %d %d %d", charlie, alpha, bravo)
	}
	if strings.Count(output, `target="_blank" rel="noopener noreferrer"`) != 3 {
		t.Fatalf("expected hardened targets on every button:\n%s", output)
	}
}

func TestFragmentWithoutLinksOrImage(t *testing.T) {
	renderer := NewRenderer(Config{})
	output, err := renderer.Fragment(profile.Default())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(output, "<a ") {
		t.Fatalf("expected no buttons:\n%s", output)
	}
	if strings.Contains(output, "<img") {
		t.Fatalf("expected no image block without a profile image:\n%s", output)
	}
	if strings.Contains(output, "background-image") {
		t.Fatalf("expected no background image layer:\n%s", output)
	}
	if !strings.Contains(output, profile.DefaultProfileTitle) {
		t.Fatalf("expected default title:\n%s", output)
	}
}

func TestFragmentStylesFromSettings(t *testing.T) {
	renderer := NewRenderer(Config{})
	settings := profile.Normalize(map[string]any{
		"profile_image":      "https://example.com/me.png",
		"profile_image_size": 200,
		"profile_ring_width": 6,
		"button_color":       "#112233",
		"title_color":        "#abc",
		"background_color":   "#fafafa",
		"background_image":   "https://example.com/bg.jpg",
	})

	output, err := renderer.Fragment(settings)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{
		`src="https://example.com/me.png"`,
		"width: 200px; height: 200px;",
		"border: 6px solid #112233;",
		"color: #abc;",
		"background-color: #fafafa;",
		"background-image: url('https://example.com/bg.jpg')",
		"background-size: cover;",
		"width:160px !important",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestHostPageExpandsShortcode(t *testing.T) {
	renderer := NewRenderer(Config{})
	settings := profile.Normalize(map[string]any{"profile_title": "Jane"})

	output, err := renderer.HostPage("My Links", "<p>Intro</p>\n"+Shortcode, settings)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(output, "<title>My Links</title>") {
		t.Fatalf("expected host title:\n%s", output)
	}
	if !strings.Contains(output, `<div class="lib-fullscreen-wrapper">`) {
		t.Fatalf("expected fullscreen wrapper:\n%s", output)
	}
	if !strings.Contains(output, "<p>Intro</p>") || !strings.Contains(output, ">Jane</h1>") {
		t.Fatalf("expected host content and fragment:\n%s", output)
	}
	if strings.Contains(output, Shortcode) {
		t.Fatalf("expected marker to be replaced:\n%s", output)
	}

	bare, err := renderer.HostPage("Ignored", "  "+Shortcode+"\n", settings)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(bare, "<title>Jane</title>") {
		t.Fatalf("expected standalone document for bare marker:\n%s", bare)
	}
}

func TestExpandShortcode(t *testing.T) {
	calls := 0
	expand := func() (string, error) {
		calls++
		return "<div>page</div>", nil
	}

	output, err := ExpandShortcode("a "+Shortcode+" b "+Shortcode, expand)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if output != "a <div>page</div> b <div>page</div>" {
		t.Fatalf("unexpected output %q", output)
	}
	if calls != 1 {
		t.Fatalf("expected a single render, got %d", calls)
	}

	untouched, err := ExpandShortcode("no marker", expand)
	if err != nil || untouched != "no marker" || calls != 1 {
		t.Fatalf("expected content without marker to pass through")
	}

	failure := errors.New("boom")
	if _, err := ExpandShortcode(Shortcode, func() (string, error) { return "", failure }); !errors.Is(err, failure) {
		t.Fatalf("expected render error, got %v", err)
	}
}
