package profile

// Kind selects the normalization rule and the form control of a field.
type Kind string

const (
	KindLinks    Kind = "links"
	KindURL      Kind = "url"
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindInteger  Kind = "integer"
	KindColor    Kind = "color"
)

// Section groups fields into the admin editor tabs.
type Section string

const (
	SectionProfile Section = "profile"
	SectionLinks   Section = "links"
	SectionStyle   Section = "style"
)

// Range bounds an integer field, inclusive on both ends.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Field declares one settings field. The same table drives normalization and
// admin form generation.
type Field struct {
	Name        string  `json:"name"`
	Alias       string  `json:"alias"`
	Kind        Kind    `json:"kind"`
	Section     Section `json:"section"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Range       *Range  `json:"range,omitempty"`
	Default     any     `json:"default"`

	text   func(*Settings) *string
	number func(*Settings) *int
}

const (
	DefaultProfileTitle = "Your Name"
	DefaultProfileBio   = "Welcome to my links page! Here you will find my main links."
)

var fields = []Field{
	{
		Name: "profile_image", Alias: "profileImage", Kind: KindURL, Section: SectionProfile,
		Label:       "Profile image",
		Description: "Absolute http(s) URL of the profile picture.",
		Default:     "",
		text:        func(s *Settings) *string { return &s.profileImage },
	},
	{
		Name: "profile_image_size", Alias: "profileImageSize", Kind: KindInteger, Section: SectionProfile,
		Label:       "Profile image size (px)",
		Description: "Width and height of the profile picture in pixels.",
		Range:       &Range{Min: 50, Max: 400},
		Default:     150,
		number:      func(s *Settings) *int { return &s.profileImageSize },
	},
	{
		Name: "profile_ring_width", Alias: "profileRingWidth", Kind: KindInteger, Section: SectionProfile,
		Label:       "Profile ring width (px)",
		Description: "Border around the profile picture, 0 for none.",
		Range:       &Range{Min: 0, Max: 20},
		Default:     4,
		number:      func(s *Settings) *int { return &s.profileRingWidth },
	},
	{
		Name: "profile_title", Alias: "profileTitle", Kind: KindText, Section: SectionProfile,
		Label:       "Profile title",
		Description: "Your name or brand.",
		Default:     DefaultProfileTitle,
		text:        func(s *Settings) *string { return &s.profileTitle },
	},
	{
		Name: "title_color", Alias: "titleColor", Kind: KindColor, Section: SectionProfile,
		Label:   "Title color",
		Default: "#000000",
		text:    func(s *Settings) *string { return &s.titleColor },
	},
	{
		Name: "profile_bio", Alias: "profileBio", Kind: KindTextarea, Section: SectionProfile,
		Label:       "Biography",
		Description: "A short biography, line breaks are kept.",
		Default:     DefaultProfileBio,
		text:        func(s *Settings) *string { return &s.profileBio },
	},
	{
		Name: "bio_color", Alias: "bioColor", Kind: KindColor, Section: SectionProfile,
		Label:   "Biography color",
		Default: "#666666",
		text:    func(s *Settings) *string { return &s.bioColor },
	},
	{
		Name: "links", Alias: "links", Kind: KindLinks, Section: SectionLinks,
		Label:   "Your links",
		Default: []LinkEntry{},
	},
	{
		Name: "button_color", Alias: "buttonColor", Kind: KindColor, Section: SectionLinks,
		Label:   "Link button color",
		Default: "#7c3aed",
		text:    func(s *Settings) *string { return &s.buttonColor },
	},
	{
		Name: "background_color", Alias: "backgroundColor", Kind: KindColor, Section: SectionStyle,
		Label:   "Page background color",
		Default: "#ffffff",
		text:    func(s *Settings) *string { return &s.backgroundColor },
	},
	{
		Name: "background_image", Alias: "backgroundImage", Kind: KindURL, Section: SectionStyle,
		Label:       "Page background image",
		Description: "Absolute http(s) URL, drawn cover-fit behind the page.",
		Default:     "",
		text:        func(s *Settings) *string { return &s.backgroundImage },
	},
}

// Schema returns the field declarations in form order.
func Schema() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Sections returns the editor tabs in display order.
func Sections() []Section {
	return []Section{SectionProfile, SectionLinks, SectionStyle}
}

func lookupField(name string) (Field, bool) {
	for _, field := range fields {
		if field.Name == name || field.Alias == name {
			return field, true
		}
	}
	return Field{}, false
}
