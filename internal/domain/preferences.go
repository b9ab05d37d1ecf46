package domain

// Language is a supported interface language.
type Language string

const (
	LangEnglish Language = "en"
	LangHindi   Language = "hi"
	LangKannada Language = "kn"
)

// IsSupported reports whether the language has translations.
func (l Language) IsSupported() bool {
	switch l {
	case LangEnglish, LangHindi, LangKannada:
		return true
	}
	return false
}

// DefaultLatitude and DefaultLongitude point at central Punjab.
const (
	DefaultLatitude  = 31.1471
	DefaultLongitude = 75.3412
)

// Preferences are the per-device settings the dashboard persists.
type Preferences struct {
	Language             Language   `json:"language"`
	DarkMode             bool       `json:"dark_mode"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
	DefaultLocation      [2]float64 `json:"default_location"`
	VoiceMode            bool       `json:"voice_mode"`
}

// DefaultPreferences returns the settings of a fresh device.
func DefaultPreferences() Preferences {
	return Preferences{
		Language:             LangEnglish,
		NotificationsEnabled: true,
		DefaultLocation:      [2]float64{DefaultLatitude, DefaultLongitude},
	}
}

// PreferencesPatch carries a partial update; nil fields are left unchanged.
type PreferencesPatch struct {
	Language             *Language   `json:"language,omitempty"`
	DarkMode             *bool       `json:"dark_mode,omitempty"`
	NotificationsEnabled *bool       `json:"notifications_enabled,omitempty"`
	DefaultLocation      *[2]float64 `json:"default_location,omitempty"`
	VoiceMode            *bool       `json:"voice_mode,omitempty"`
}

// Apply merges the patch into p.
func (p *Preferences) Apply(patch PreferencesPatch) {
	if patch.Language != nil {
		p.Language = *patch.Language
	}
	if patch.DarkMode != nil {
		p.DarkMode = *patch.DarkMode
	}
	if patch.NotificationsEnabled != nil {
		p.NotificationsEnabled = *patch.NotificationsEnabled
	}
	if patch.DefaultLocation != nil {
		p.DefaultLocation = *patch.DefaultLocation
	}
	if patch.VoiceMode != nil {
		p.VoiceMode = *patch.VoiceMode
	}
}
