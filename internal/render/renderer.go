package render

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
)

const defaultLanguage = "en"

//go:embed templates/*.gohtml
var templateFiles embed.FS

var pageTemplates = template.Must(template.New("page").ParseFS(templateFiles, "templates/*.gohtml"))

// Config customises document level output.
type Config struct {
	Language string
}

// Renderer turns canonical settings into HTML. It holds no mutable state and
// is safe for concurrent use.
type Renderer struct {
	templates *template.Template
	language  string
}

// NewRenderer constructs a Renderer with the embedded page templates.
func NewRenderer(cfg Config) *Renderer {
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	return &Renderer{
		templates: pageTemplates,
		language:  language,
	}
}

type pageView struct {
	Language        string
	Title           string
	Bio             string
	ProfileImage    string
	ImageSize       int
	SmallImageSize  int
	RingWidth       int
	TitleColor      string
	BioColor        string
	ButtonColor     string
	BackgroundColor string
	BackgroundImage string
	Links           []profile.LinkEntry
}

type hostView struct {
	Language  string
	PageTitle string
	Content   template.HTML
}

func (r *Renderer) view(settings profile.Settings) pageView {
	return pageView{
		Language:        r.language,
		Title:           settings.ProfileTitle(),
		Bio:             settings.ProfileBio(),
		ProfileImage:    settings.ProfileImage(),
		ImageSize:       settings.ProfileImageSize(),
		SmallImageSize:  settings.ProfileImageSize() * 4 / 5,
		RingWidth:       settings.ProfileRingWidth(),
		TitleColor:      settings.TitleColor(),
		BioColor:        settings.BioColor(),
		ButtonColor:     settings.ButtonColor(),
		BackgroundColor: settings.BackgroundColor(),
		BackgroundImage: settings.BackgroundImage(),
		Links:           settings.Links(),
	}
}

// WriteDocument writes a complete HTML document for the public page.
func (r *Renderer) WriteDocument(w io.Writer, settings profile.Settings) error {
	return r.templates.ExecuteTemplate(w, "document", r.view(settings))
}

// WriteFragment writes the page container only, as used by the live preview.
func (r *Renderer) WriteFragment(w io.Writer, settings profile.Settings) error {
	return r.templates.ExecuteTemplate(w, "fragment", r.view(settings))
}

// Document renders the complete public page.
func (r *Renderer) Document(settings profile.Settings) (string, error) {
	var buffer bytes.Buffer
	if err := r.WriteDocument(&buffer, settings); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

// Fragment renders the page container without the surrounding document.
func (r *Renderer) Fragment(settings profile.Settings) (string, error) {
	var buffer bytes.Buffer
	if err := r.WriteFragment(&buffer, settings); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

// HostPage renders a host page whose content embeds the link page through
// the shortcode marker. Content is operator supplied markup and is trusted;
// the expanded fragment is escaped as usual.
func (r *Renderer) HostPage(pageTitle, content string, settings profile.Settings) (string, error) {
	if IsBareShortcode(content) {
		return r.Document(settings)
	}
	expanded, err := ExpandShortcode(content, func() (string, error) {
		return r.Fragment(settings)
	})
	if err != nil {
		return "", err
	}
	var buffer bytes.Buffer
	err = r.templates.ExecuteTemplate(&buffer, "host", hostView{
		Language:  r.language,
		PageTitle: pageTitle,
		Content:   template.HTML(expanded), //nolint:gosec // operator-controlled page body
	})
	if err != nil {
		return "", err
	}
	return buffer.String(), nil
}
