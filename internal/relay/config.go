package relay

// Locales accepted by the analysis API.
const (
	LocaleEN = "en"
	LocaleRU = "ru"
)

// Default endpoints of the public Skinive API.
const (
	DefaultValidateURL = "https://api.skiniver.com/validate"
	DefaultPredictURL  = "https://api.skiniver.com/predict"
	DefaultClassesURL  = "https://api.skiniver.com/get_disease_classes"
)

// Config is the operator supplied session configuration. The string fields
// are forwarded verbatim.
type Config struct {
	AuthToken   string `json:"auth_token"`
	ValidateURL string `json:"validate_url"`
	PredictURL  string `json:"predict_url"`
	ClassesURL  string `json:"classes_url"`
	Locale      string `json:"locale"`
}

// DefaultConfig returns a configuration pointing at the public endpoints.
func DefaultConfig() Config {
	return Config{
		ValidateURL: DefaultValidateURL,
		PredictURL:  DefaultPredictURL,
		ClassesURL:  DefaultClassesURL,
		Locale:      LocaleEN,
	}
}

// Locales lists the values offered by the locale selector.
func Locales() []string {
	return []string{LocaleEN, LocaleRU}
}
