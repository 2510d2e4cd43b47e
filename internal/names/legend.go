package names

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Legend is the persisted name mapping document.
type Legend struct {
	Physicians map[string]string `json:"physicians"`
	MLPs       map[string]string `json:"mlps"`
}

// LegendStore persists the legend. LoadLegend reports false when no legend
// has been stored yet.
type LegendStore interface {
	LoadLegend(ctx context.Context) (Legend, bool, error)
	SaveLegend(ctx context.Context, legend Legend) error
}

// Clone returns a deep copy with non-nil maps.
func (l Legend) Clone() Legend {
	out := Legend{
		Physicians: make(map[string]string, len(l.Physicians)),
		MLPs:       make(map[string]string, len(l.MLPs)),
	}
	for k, v := range l.Physicians {
		out.Physicians[k] = v
	}
	for k, v := range l.MLPs {
		out.MLPs[k] = v
	}
	return out
}

// Entry is one legend mapping, used for listings.
type Entry struct {
	Class   string
	Key     string
	Display string
}

// Entries flattens the legend into key-sorted entries, physicians first.
func (l Legend) Entries() []Entry {
	out := make([]Entry, 0, len(l.Physicians)+len(l.MLPs))
	for _, class := range []struct {
		name string
		m    map[string]string
	}{{ClassPhysician, l.Physicians}, {ClassMLP, l.MLPs}} {
		for _, key := range sortedKeys(class.m) {
			out = append(out, Entry{Class: class.name, Key: key, Display: class.m[key]})
		}
	}
	return out
}

// Placeholders returns the entries still carrying the generated display
// name, i.e. providers learned from the roster but never named by hand.
func (l Legend) Placeholders() []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		switch {
		case e.Class == ClassPhysician && e.Display == PhysicianPlaceholder(e.Key):
			out = append(out, e)
		case e.Class == ClassMLP && e.Display == MLPPlaceholder(e.Key):
			out = append(out, e)
		}
	}
	return out
}

// Legend class names, as used by the CLI.
const (
	ClassPhysician = "physician"
	ClassMLP       = "mlp"
)

// Set stores a display name for key in the given class.
func (l *Legend) Set(class, raw, display string) bool {
	key := Key(raw)
	if key == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(class)) {
	case ClassPhysician, "physicians":
		if l.Physicians == nil {
			l.Physicians = map[string]string{}
		}
		l.Physicians[key] = display
	case ClassMLP, "mlps":
		if l.MLPs == nil {
			l.MLPs = map[string]string{}
		}
		l.MLPs[key] = display
	default:
		return false
	}
	return true
}

// Key returns the lookup key for a raw name token.
func Key(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// TitleCase title-cases a name ("MOLLY ANN" -> "Molly Ann").
func TitleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

// PhysicianPlaceholder is the display name given to an unmapped physician.
func PhysicianPlaceholder(raw string) string {
	return "Dr. " + TitleCase(raw)
}

// MLPPlaceholder is the display name given to an unmapped mid-level provider.
func MLPPlaceholder(raw string) string {
	return TitleCase(raw) + ", PA-C"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultLegend returns the legend seeded into an empty store.
func DefaultLegend() Legend {
	physicians := []string{
		"ABDELKERIM", "ALCID", "ANDERSON", "ARAFA", "ASSAF", "AYALIN", "BANSIL",
		"BRINDIS", "DICKSON", "DOERING", "ENGLAND", "FIERRO", "GOLD", "GOMEZ",
		"GROMIS", "HEDLAND", "HEYMING", "HUGHES", "JARRETT", "JAYAMAHA", "JONES",
		"KEAR", "KIM", "LAPLANT", "LASALA", "LEE", "LI", "LUU", "MEHTA",
		"MERJANIAN", "MIKHAIL", "MINASYAN", "MIRCHANDANI", "MITTAL", "MOLNAR",
		"MULLARKY", "MURPHY", "NAVARRO", "ORANTES", "PAUL", "PIROUTEK", "POWELL",
		"RIVERS", "ROGAN", "RUDOLPH", "RUIZ", "SAINTGEORGES", "SHIEH", "SHNITER",
		"SIEMBIEDA", "SINGH", "SMITH", "STARR", "VALENTE", "YAO", "YUAN",
	}
	legend := Legend{
		Physicians: make(map[string]string, len(physicians)),
		MLPs: map[string]string{
			"DEOGRACIA":   "Reagan Deogracia",
			"DHALIWAL":    "Namneet Dhaliwal",
			"FURTEK":      "Marryanne Furtek",
			"GERMANN":     "Quentin Germann",
			"GO":          "Kyungsoo Go (Korrin)",
			"GREEN":       "Geoffrey Green (Geoff)",
			"GYORE":       "Victoria Gyore",
			"JIVAN":       "Elizabeth Jivan (Liz)",
			"KAMACHI":     "Roland Kamachi",
			"M. CAMPBELL": "M. Campbell",
			"MARONY":      "Gregory Marony (Greg)",
			"NISHIOKA":    "John Nishioka (Nish)",
			"REID":        "Craig Reid",
			"REPPER":      "Danielle Chater Lea (Dani)",
			"SHAHINYAN":   "Liana Shahinyan",
			"VAFAEIAN":    "Rojin Vafaeian",
			"ZWICK":       "Tamar Zwick",
		},
	}
	for _, key := range physicians {
		legend.Physicians[key] = PhysicianPlaceholder(key)
	}
	return legend
}
