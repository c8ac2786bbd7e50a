package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.gohtml assets/*
var adminFiles embed.FS

var adminTemplates = template.Must(template.New("admin").ParseFS(adminFiles, "templates/*.gohtml"))

var sectionLabels = map[profile.Section]string{
	profile.SectionProfile: "Profile",
	profile.SectionLinks:   "Links",
	profile.SectionStyle:   "Style",
}

func adminAssets() http.FileSystem {
	assets, err := fs.Sub(adminFiles, "assets")
	if err != nil {
		panic(err)
	}
	return http.FS(assets)
}

type adminField struct {
	Name        string
	InputName   string
	Label       string
	Description string
	Kind        string
	Value       string
	Min         string
	Max         string
	Links       []adminLink
}

type adminLink struct {
	Index int
	Title string
	URL   string
}

type adminSection struct {
	ID     string
	Label  string
	Active bool
	Fields []adminField
}

type adminView struct {
	Sections     []adminSection
	Preview      template.HTML
	PreviewNonce string
	SaveNonce    string
	PublicPath   string
	FormPrefix   string
}

type loginView struct {
	Error string
}

func (h *httpHandler) handleLoginPage(c *gin.Context) {
	if _, ok := h.validateSession(c); ok {
		c.Redirect(http.StatusSeeOther, "/admin")
		return
	}
	h.renderLogin(c, http.StatusOK, "")
}

func (h *httpHandler) renderLogin(c *gin.Context, status int, message string) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := adminTemplates.ExecuteTemplate(c.Writer, "login", loginView{Error: message}); err != nil {
		h.logger.Error("failed to render login page", zap.Error(err))
	}
}

func (h *httpHandler) handleAdminPage(c *gin.Context) {
	session, ok := h.validateSession(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/admin/login")
		return
	}

	current, err := h.options.Load(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load options", zap.Error(err))
		c.String(http.StatusInternalServerError, "settings unavailable")
		return
	}
	nonces, err := h.issueNonces(session)
	if err != nil {
		h.logger.Error("failed to issue nonces", zap.Error(err))
		c.String(http.StatusInternalServerError, "settings unavailable")
		return
	}
	preview, err := h.options.Preview(current.Map())
	if err != nil {
		h.logger.Error("failed to render preview", zap.Error(err))
		preview = ""
	}

	publicPath := "/"
	if h.pageSlug != "" {
		publicPath = "/" + h.pageSlug
	}
	view := adminView{
		Sections:     buildAdminSections(current),
		Preview:      template.HTML(preview), //nolint:gosec // produced by the page renderer
		PreviewNonce: nonces["preview"],
		SaveNonce:    nonces["save"],
		PublicPath:   publicPath,
		FormPrefix:   profile.FormPrefix,
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	if err := adminTemplates.ExecuteTemplate(c.Writer, "admin", view); err != nil {
		h.logger.Error("failed to render admin page", zap.Error(err))
	}
}

// buildAdminSections lays the schema out as editor tabs holding the current values.
func buildAdminSections(current profile.Settings) []adminSection {
	sections := make([]adminSection, 0, len(profile.Sections()))
	indexBySection := map[profile.Section]int{}
	for position, section := range profile.Sections() {
		indexBySection[section] = position
		sections = append(sections, adminSection{
			ID:     string(section),
			Label:  sectionLabels[section],
			Active: position == 0,
		})
	}

	for _, field := range profile.Schema() {
		entry := adminField{
			Name:        field.Name,
			InputName:   profile.FormPrefix + "[" + field.Name + "]",
			Label:       field.Label,
			Description: field.Description,
			Kind:        string(field.Kind),
		}
		switch value := current.Value(field.Name).(type) {
		case []profile.LinkEntry:
			entry.Links = make([]adminLink, 0, len(value))
			for index, link := range value {
				entry.Links = append(entry.Links, adminLink{Index: index, Title: link.Title, URL: link.URL})
			}
		case int:
			entry.Value = strconv.Itoa(value)
		case string:
			entry.Value = value
		}
		if field.Range != nil {
			entry.Min = strconv.Itoa(field.Range.Min)
			entry.Max = strconv.Itoa(field.Range.Max)
		}
		position := indexBySection[field.Section]
		sections[position].Fields = append(sections[position].Fields, entry)
	}
	return sections
}
