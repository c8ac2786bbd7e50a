package profile

import (
	"encoding/json"
)

// OptionName is the key under which the settings record is stored.
const OptionName = "link_in_bio_options"

// LinkEntry is one clickable button on the public page.
type LinkEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Settings is the canonical settings record. Values can only be produced by
// Default and Normalize, so a Settings value always satisfies every field
// constraint.
type Settings struct {
	links            []LinkEntry
	profileImage     string
	profileTitle     string
	profileBio       string
	profileImageSize int
	profileRingWidth int
	titleColor       string
	bioColor         string
	buttonColor      string
	backgroundColor  string
	backgroundImage  string
}

// Default returns the record used when nothing has been saved yet.
func Default() Settings {
	settings := Settings{links: []LinkEntry{}}
	for _, field := range fields {
		switch field.Kind {
		case KindInteger:
			*field.number(&settings) = field.Default.(int)
		case KindText, KindTextarea, KindColor, KindURL:
			*field.text(&settings) = field.Default.(string)
		}
	}
	return settings
}

// Links returns a copy of the link list in display order.
func (s Settings) Links() []LinkEntry {
	out := make([]LinkEntry, len(s.links))
	copy(out, s.links)
	return out
}

func (s Settings) ProfileImage() string    { return s.profileImage }
func (s Settings) ProfileTitle() string    { return s.profileTitle }
func (s Settings) ProfileBio() string      { return s.profileBio }
func (s Settings) ProfileImageSize() int   { return s.profileImageSize }
func (s Settings) ProfileRingWidth() int   { return s.profileRingWidth }
func (s Settings) TitleColor() string      { return s.titleColor }
func (s Settings) BioColor() string        { return s.bioColor }
func (s Settings) ButtonColor() string     { return s.buttonColor }
func (s Settings) BackgroundColor() string { return s.backgroundColor }
func (s Settings) BackgroundImage() string { return s.backgroundImage }

// Map returns the record as an untyped document keyed by canonical option
// names. Normalize(s.Map()) yields s again.
func (s Settings) Map() map[string]any {
	document := make(map[string]any, len(fields))
	for _, field := range fields {
		switch field.Kind {
		case KindLinks:
			links := make([]any, 0, len(s.links))
			for _, link := range s.links {
				links = append(links, map[string]any{"title": link.Title, "url": link.URL})
			}
			document[field.Name] = links
		case KindInteger:
			document[field.Name] = *field.number(&s)
		default:
			document[field.Name] = *field.text(&s)
		}
	}
	return document
}

// Value returns the canonical value of a single field, or nil for unknown names.
func (s Settings) Value(name string) any {
	field, ok := lookupField(name)
	if !ok {
		return nil
	}
	switch field.Kind {
	case KindLinks:
		return s.Links()
	case KindInteger:
		return *field.number(&s)
	default:
		return *field.text(&s)
	}
}

type document struct {
	Links            []LinkEntry `json:"links"`
	ProfileImage     string      `json:"profile_image"`
	ProfileTitle     string      `json:"profile_title"`
	ProfileBio       string      `json:"profile_bio"`
	ProfileImageSize int         `json:"profile_image_size"`
	ProfileRingWidth int         `json:"profile_ring_width"`
	TitleColor       string      `json:"title_color"`
	BioColor         string      `json:"bio_color"`
	ButtonColor      string      `json:"button_color"`
	BackgroundColor  string      `json:"background_color"`
	BackgroundImage  string      `json:"background_image"`
}

// MarshalJSON encodes the record with canonical option names.
func (s Settings) MarshalJSON() ([]byte, error) {
	links := s.links
	if links == nil {
		links = []LinkEntry{}
	}
	return json.Marshal(document{
		Links:            links,
		ProfileImage:     s.profileImage,
		ProfileTitle:     s.profileTitle,
		ProfileBio:       s.profileBio,
		ProfileImageSize: s.profileImageSize,
		ProfileRingWidth: s.profileRingWidth,
		TitleColor:       s.titleColor,
		BioColor:         s.bioColor,
		ButtonColor:      s.buttonColor,
		BackgroundColor:  s.backgroundColor,
		BackgroundImage:  s.backgroundImage,
	})
}

// UnmarshalJSON decodes any JSON object through Normalize. Input that is not
// an object decodes to the defaults.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = nil
	}
	*s = Normalize(raw)
	return nil
}
