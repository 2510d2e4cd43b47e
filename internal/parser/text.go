package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule names reported in Result.Rule.
const (
	RuleSitePrefix   = "site-prefix"
	RuleDirection    = "direction"
	RuleSecondary    = "secondary-site"
	RuleGeneric      = "generic-label"
	RuleRoleCode     = "role-code"
	RuleLocation     = "location"
	RuleBareTime     = "bare-time"
	RuleSplitColon   = "split-colon"
	RuleUnstructured = "unstructured"
)

const timePattern = `\d{3,4}-\d{3,4}`

// Fields are the structured parts of one shift fragment.
type Fields struct {
	Label  string
	Time   string
	Person string
}

// Result is a parsed fragment plus the rule that produced it.
type Result struct {
	Fields
	Rule string
}

// Options tune the site-specific vocabulary the rules recognise.
type Options struct {
	// PrimaryPrefix introduces physician entries ("SJH A 0700-1500: X").
	PrimaryPrefix string
	// SecondaryPrefix introduces PA coverage entries, labelled "PA".
	SecondaryPrefix string
	// Directions are zone names that stand alone as a label.
	Directions []string
}

// DefaultOptions returns the vocabulary used by the St Joseph roster.
func DefaultOptions() Options {
	return Options{
		PrimaryPrefix:   "SJH",
		SecondaryPrefix: "CHOC",
		Directions:      []string{"North", "South", "East", "West", "RED"},
	}
}

type matcher func(s string) (Fields, bool)

type rule struct {
	name  string
	match matcher
}

// Parser applies the ordered rule list. It is safe for concurrent use.
type Parser struct {
	rules      []rule
	siteTokens *regexp.Regexp
	timeRE     *regexp.Regexp
}

var defaultParser = MustNew(DefaultOptions())

// Default returns the parser built from DefaultOptions.
func Default() *Parser {
	return defaultParser
}

// Parse runs the default parser.
func Parse(raw string) Result {
	return defaultParser.Parse(raw)
}

// MustNew is New that panics on error.
func MustNew(opts Options) *Parser {
	p, err := New(opts)
	if err != nil {
		panic(err)
	}
	return p
}

// New compiles the rule list for opts. Empty fields fall back to defaults.
func New(opts Options) (*Parser, error) {
	defaults := DefaultOptions()
	primary := strings.TrimSpace(opts.PrimaryPrefix)
	if primary == "" {
		primary = defaults.PrimaryPrefix
	}
	secondary := strings.TrimSpace(opts.SecondaryPrefix)
	if secondary == "" {
		secondary = defaults.SecondaryPrefix
	}
	directions := make([]string, 0, len(opts.Directions))
	for _, d := range opts.Directions {
		if d = strings.TrimSpace(d); d != "" {
			directions = append(directions, regexp.QuoteMeta(d))
		}
	}
	if len(directions) == 0 {
		for _, d := range defaults.Directions {
			directions = append(directions, regexp.QuoteMeta(d))
		}
	}

	compile := func(name, expr string) (*regexp.Regexp, error) {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile %s rule: %w", name, err)
		}
		return re, nil
	}

	sitePrefix, err := compile(RuleSitePrefix,
		`(?i)^(?:`+regexp.QuoteMeta(primary)+`)\s+([A-Za-z0-9\- ]+?)\s+(`+timePattern+`):\s*(.+)$`)
	if err != nil {
		return nil, err
	}
	direction, err := compile(RuleDirection,
		`(?i)^(`+strings.Join(directions, "|")+`)\s+(`+timePattern+`):\s*(.+)$`)
	if err != nil {
		return nil, err
	}
	secondarySite, err := compile(RuleSecondary,
		`(?i)^`+regexp.QuoteMeta(secondary)+`\s+(?:MLP|PA|[A-Za-z0-9\- ]+?)\s+(`+timePattern+`):\s*(.+)$`)
	if err != nil {
		return nil, err
	}
	siteTokens, err := compile("site-token",
		`(?i)\b(?:`+regexp.QuoteMeta(primary)+`|`+regexp.QuoteMeta(secondary)+`)\b`)
	if err != nil {
		return nil, err
	}

	p := &Parser{
		siteTokens: siteTokens,
		timeRE:     regexp.MustCompile(`(` + timePattern + `)`),
	}
	p.rules = []rule{
		{RuleSitePrefix, labelTimePerson(sitePrefix)},
		{RuleDirection, labelTimePerson(direction)},
		{RuleSecondary, func(s string) (Fields, bool) {
			m := secondarySite.FindStringSubmatch(s)
			if m == nil {
				return Fields{}, false
			}
			return Fields{Label: "PA", Time: m[1], Person: strings.TrimSpace(m[2])}, true
		}},
		{RuleGeneric, labelTimePerson(genericRE)},
		{RuleRoleCode, func(s string) (Fields, bool) {
			m := roleCodeRE.FindStringSubmatch(s)
			if m == nil {
				return Fields{}, false
			}
			return Fields{Label: strings.ToUpper(m[2]), Time: m[1], Person: strings.TrimSpace(m[3])}, true
		}},
		{RuleLocation, func(s string) (Fields, bool) {
			m := locationRE.FindStringSubmatch(s)
			if m == nil {
				return Fields{}, false
			}
			return Fields{Label: strings.TrimSpace(m[2]), Time: m[1], Person: strings.TrimSpace(m[3])}, true
		}},
		{RuleBareTime, func(s string) (Fields, bool) {
			m := bareTimeRE.FindStringSubmatch(s)
			if m == nil {
				return Fields{}, false
			}
			return Fields{Time: m[1], Person: strings.TrimSpace(m[2])}, true
		}},
		{RuleSplitColon, p.splitColon},
	}
	return p, nil
}

var (
	genericRE  = regexp.MustCompile(`^([A-Za-z0-9\- ]{1,30}?)\s+(` + timePattern + `):\s*(.+)$`)
	roleCodeRE = regexp.MustCompile(`(?i)^(` + timePattern + `)\s*(PA|MD|NP|RN):\s*(.+)$`)
	locationRE = regexp.MustCompile(`^(` + timePattern + `)\s*\(([^)]+)\):\s*(.+)$`)
	bareTimeRE = regexp.MustCompile(`^(` + timePattern + `):\s*(.+)$`)
)

func labelTimePerson(re *regexp.Regexp) matcher {
	return func(s string) (Fields, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return Fields{}, false
		}
		return Fields{Label: strings.TrimSpace(m[1]), Time: m[2], Person: strings.TrimSpace(m[3])}, true
	}
}

// splitColon handles entries where the time is buried in free text before
// the first colon, e.g. "SJH Overflow 0900-1730 x: Smith".
func (p *Parser) splitColon(s string) (Fields, bool) {
	left, right, ok := strings.Cut(s, ":")
	if !ok {
		return Fields{}, false
	}
	left = strings.TrimSpace(left)
	loc := p.timeRE.FindStringIndex(left)
	if loc == nil {
		return Fields{}, false
	}
	label := p.siteTokens.ReplaceAllString(left[:loc[0]], "")
	return Fields{
		Label:  strings.Join(strings.Fields(label), " "),
		Time:   left[loc[0]:loc[1]],
		Person: strings.TrimSpace(right),
	}, true
}

// Parse normalizes raw and returns the interpretation of the first rule that
// matches. Text no rule recognises comes back whole as the person with rule
// RuleUnstructured.
func (p *Parser) Parse(raw string) Result {
	s := Normalize(raw)
	for _, r := range p.rules {
		if fields, ok := r.match(s); ok {
			fields.Person = NormalizePerson(fields.Person)
			return Result{Fields: fields, Rule: r.name}
		}
	}
	return Result{Fields: Fields{Person: NormalizePerson(s)}, Rule: RuleUnstructured}
}
