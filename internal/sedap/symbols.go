package sedap

// Display names and MIL-STD-2525 symbol codes per incident category. Unknown
// categories fall back to an unclassified name and an unknown-ground symbol.

const (
	defaultName = "Unclassified Incident"
	// defaultSIDC is the 15-character unknown ground track symbol.
	defaultSIDC = "SUGP-----------"
)

var categoryNames = map[string]string{
	"drone_detection": "Suspected Drone",
	"fire":            "Fire",
	"medical":         "Medical Emergency",
	"flood":           "Flooding",
	"hazmat":          "Hazardous Material",
	"security":        "Security Incident",
	"infrastructure":  "Infrastructure Damage",
	"traffic":         "Traffic Accident",
}

var categorySIDCs = map[string]string{
	"drone_detection": "SUAPMFQ--------",
	"fire":            "EHOPDA---------",
	"medical":         "EHOPDE---------",
	"flood":           "EHOPDF---------",
	"hazmat":          "EHOPDH---------",
	"security":        "EHOPDS---------",
	"infrastructure":  "EHOPDI---------",
	"traffic":         "EHOPDT---------",
}

// CategoryName maps a category to its BMS display name.
func CategoryName(category string) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return defaultName
}

// CategorySIDC maps a category to its 15-character symbol code.
func CategorySIDC(category string) string {
	if sidc, ok := categorySIDCs[category]; ok {
		return sidc
	}
	return defaultSIDC
}
