package trend

import (
	"sort"
	"strings"
)

// UnknownRegion and SpamRegion are the non-region values of DetectedRegion.
const (
	UnknownRegion = "UNKNOWN"
	SpamRegion    = "SPAM"
)

// DefaultSupportedRegions is the region set with keyword tables.
var DefaultSupportedRegions = []string{"DE", "US", "GB", "FR", "ES", "IT", "AT", "CH", "NL"}

// KeywordTable holds the regional identifiers for one region.
// Strong/Medium/Weak are matched against channel names; Topics/Places/Culture against titles.
type KeywordTable struct {
	Language string   `yaml:"language" json:"language"`
	Strong   []string `yaml:"strong" json:"strong"`
	Medium   []string `yaml:"medium" json:"medium"`
	Weak     []string `yaml:"weak" json:"weak"`
	Topics   []string `yaml:"topics" json:"topics"`
	Places   []string `yaml:"places" json:"places"`
	Culture  []string `yaml:"culture" json:"culture"`
	// Boost keywords add to the query match bonus when found in title or channel.
	Boost []string `yaml:"boost" json:"boost"`
}

// Merge appends the keywords of other and takes its language when set.
func (t KeywordTable) Merge(other KeywordTable) KeywordTable {
	out := KeywordTable{
		Language: t.Language,
		Strong:   append(append([]string{}, t.Strong...), other.Strong...),
		Medium:   append(append([]string{}, t.Medium...), other.Medium...),
		Weak:     append(append([]string{}, t.Weak...), other.Weak...),
		Topics:   append(append([]string{}, t.Topics...), other.Topics...),
		Places:   append(append([]string{}, t.Places...), other.Places...),
		Culture:  append(append([]string{}, t.Culture...), other.Culture...),
		Boost:    append(append([]string{}, t.Boost...), other.Boost...),
	}
	if other.Language != "" {
		out.Language = other.Language
	}
	return out
}

var germanWeak = []string{"nachrichten", "aktuell", "kanal", "offiziell", "heute", "magazin"}

// defaultTables are the built-in regional keyword tables.
var defaultTables = map[string]KeywordTable{
	"DE": {
		Language: "de",
		Strong:   []string{"deutsch", "deutschland", "german", "germany", "ard", "zdf", "tagesschau", "rtl", "pro7", "prosieben", "sat 1", "sat1", "funk", "spiegel", "bild", "welt"},
		Medium:   []string{"berlin", "münchen", "hamburg", "köln", "frankfurt", "stuttgart", "düsseldorf", "leipzig", "dresden", "bayern", "nrw"},
		Weak:     germanWeak,
		Topics:   []string{"bundesliga", "dfb", "bundestag", "kanzler", "politik", "wirtschaft", "fußball", "nationalmannschaft", "wahl", "deutsche bahn"},
		Places:   []string{"berlin", "münchen", "hamburg", "köln", "frankfurt", "dortmund", "leipzig", "dresden", "stuttgart"},
		Culture:  []string{"oktoberfest", "karneval", "schlager", "tatort", "döner", "bratwurst", "gronkh", "rewinside"},
		Boost:    []string{"deutsch", "deutschland", "german", "aktuell", "nachrichten"},
	},
	"AT": {
		Language: "de",
		Strong:   []string{"österreich", "austria", "orf", "servus tv", "oe24", "krone", "puls 24"},
		Medium:   []string{"wien", "graz", "linz", "salzburg", "innsbruck", "tirol", "kärnten", "steiermark"},
		Weak:     germanWeak,
		Topics:   []string{"nationalrat", "skifahren", "rapid wien", "red bull salzburg", "bundesliga"},
		Places:   []string{"wien", "graz", "linz", "salzburg", "innsbruck", "vorarlberg"},
		Culture:  []string{"schnitzel", "falco", "opernball", "heuriger"},
		Boost:    []string{"österreich", "austria", "wien"},
	},
	"CH": {
		Language: "de",
		Strong:   []string{"schweiz", "switzerland", "suisse", "svizzera", "srf", "rts", "blick", "watson"},
		Medium:   []string{"zürich", "bern", "basel", "genf", "luzern", "lausanne"},
		Weak:     germanWeak,
		Topics:   []string{"super league", "bundesrat", "abstimmung", "eishockey", "nati"},
		Places:   []string{"zürich", "bern", "basel", "genf", "luzern", "lugano"},
		Culture:  []string{"fondue", "schwingen", "fasnacht", "jodel"},
		Boost:    []string{"schweiz", "switzerland", "suisse"},
	},
	"US": {
		Language: "en",
		Strong:   []string{"usa", "america", "american", "united states", "cnn", "fox news", "nbc", "abc news", "cbs", "espn"},
		Medium:   []string{"new york", "los angeles", "chicago", "texas", "california", "florida", "washington"},
		Weak:     []string{"news", "official", "daily", "tonight"},
		Topics:   []string{"nfl", "nba", "mlb", "super bowl", "congress", "senate", "white house", "election"},
		Places:   []string{"new york", "los angeles", "chicago", "houston", "miami", "las vegas", "seattle"},
		Culture:  []string{"thanksgiving", "hollywood", "broadway", "fourth of july"},
		Boost:    []string{"usa", "america", "american"},
	},
	"GB": {
		Language: "en",
		Strong:   []string{"uk", "britain", "british", "england", "bbc", "itv", "sky news", "channel 4"},
		Medium:   []string{"london", "manchester", "liverpool", "birmingham", "scotland", "wales"},
		Weak:     []string{"news", "official", "daily", "tonight"},
		Topics:   []string{"premier league", "parliament", "downing street", "prime minister", "nhs", "fa cup"},
		Places:   []string{"london", "manchester", "liverpool", "leeds", "glasgow", "edinburgh"},
		Culture:  []string{"royal family", "bonfire night", "pub", "the king"},
		Boost:    []string{"uk", "british", "england"},
	},
	"FR": {
		Language: "fr",
		Strong:   []string{"france", "français", "tf1", "france 2", "bfmtv", "canal plus", "m6", "le monde"},
		Medium:   []string{"paris", "lyon", "marseille", "toulouse", "bordeaux", "lille"},
		Weak:     []string{"actualités", "officiel", "chaîne", "info"},
		Topics:   []string{"ligue 1", "psg", "assemblée nationale", "élysée", "tour de france"},
		Places:   []string{"paris", "lyon", "marseille", "nice", "nantes", "strasbourg"},
		Culture:  []string{"baguette", "fromage", "rap français", "chanson"},
		Boost:    []string{"france", "français"},
	},
	"ES": {
		Language: "es",
		Strong:   []string{"españa", "spain", "español", "rtve", "antena 3", "telecinco", "la sexta", "marca"},
		Medium:   []string{"madrid", "barcelona", "valencia", "sevilla", "bilbao", "málaga"},
		Weak:     []string{"noticias", "oficial", "canal", "directo"},
		Topics:   []string{"laliga", "la liga", "real madrid", "barça", "congreso", "elecciones"},
		Places:   []string{"madrid", "barcelona", "valencia", "sevilla", "zaragoza", "málaga"},
		Culture:  []string{"flamenco", "tapas", "paella", "sanfermines"},
		Boost:    []string{"españa", "español"},
	},
	"IT": {
		Language: "it",
		Strong:   []string{"italia", "italy", "italiano", "rai", "mediaset", "canale 5", "sky tg24", "la repubblica"},
		Medium:   []string{"roma", "milano", "napoli", "torino", "firenze", "bologna"},
		Weak:     []string{"notizie", "ufficiale", "canale", "diretta"},
		Topics:   []string{"serie a", "juventus", "inter", "parlamento", "sanremo"},
		Places:   []string{"roma", "milano", "napoli", "torino", "venezia", "palermo"},
		Culture:  []string{"pasta", "pizza", "festival di sanremo", "opera"},
		Boost:    []string{"italia", "italiano"},
	},
	"NL": {
		Language: "nl",
		Strong:   []string{"nederland", "netherlands", "dutch", "nos", "rtl nieuws", "npo", "nu nl", "hart van nederland"},
		Medium:   []string{"amsterdam", "rotterdam", "utrecht", "den haag", "eindhoven", "groningen"},
		Weak:     []string{"nieuws", "officieel", "kanaal", "vandaag"},
		Topics:   []string{"eredivisie", "ajax", "psv", "feyenoord", "tweede kamer"},
		Places:   []string{"amsterdam", "rotterdam", "utrecht", "den haag", "eindhoven"},
		Culture:  []string{"koningsdag", "sinterklaas", "stroopwafel", "carnaval"},
		Boost:    []string{"nederland", "nederlands"},
	},
}

// ContaminationMarkers describes one well-known region whose content tends to leak into
// unrelated regional results.
type ContaminationMarkers struct {
	Label       string   `yaml:"label" json:"label"`
	HomeRegions []string `yaml:"home_regions" json:"home_regions"`
	Names       []string `yaml:"names" json:"names"`
	Language    []string `yaml:"language" json:"language"`
	Topics      []string `yaml:"topics" json:"topics"`
}

// DefaultContamination covers South and Southeast Asian entertainment content.
var DefaultContamination = ContaminationMarkers{
	Label:       "SOUTH_ASIA",
	HomeRegions: []string{"IN", "ID", "PK", "BD", "MY"},
	Names: []string{
		"bollywood", "desi", "hindi", "tamil", "telugu", "punjabi", "bengali", "bhojpuri",
		"marathi", "gujarati", "kannada", "malayalam", "shah rukh", "salman khan",
		"dangdut", "koplo", "ajeng", "febria", "mahesa", "nella kharisma", "via vallen", "siti badriah",
	},
	Language: []string{
		"yang", "untuk", "dengan", "tidak", "adalah", "kau", "aku", "tercipta", "bukan", "untukku",
		"cinta", "rindu", "sayang", "hain", "kya", "kaise", "kyun", "aap", "nahi",
	},
	Topics: []string{
		"cricket", "ipl", "t20", "odi", "ind vs", "india vs", "indonesia", "indonesian",
		"jakarta", "surabaya", "bandung", "mumbai", "delhi", "hyderabad", "lagu",
	},
}

// languageMarkers are short function words that identify the language of a title.
var languageMarkers = map[string][]string{
	"de": {"der", "die", "das", "und", "ist", "nicht", "mit", "für", "ich", "auf", "ein", "eine", "wie", "warum", "was", "mein", "deutsch"},
	"en": {"the", "and", "is", "with", "you", "how", "what", "why", "this", "my", "of", "english"},
	"fr": {"le", "la", "les", "et", "est", "avec", "pour", "une", "des", "du", "je", "pas", "français"},
	"es": {"el", "los", "las", "que", "con", "para", "por", "una", "del", "mi", "cómo", "español"},
	"it": {"il", "che", "per", "della", "sono", "gli", "come", "questo", "italiano"},
	"nl": {"het", "een", "van", "niet", "ik", "je", "voor", "wat", "hoe", "nederlands"},
	"hi": {"hai", "hain", "kya", "kaise", "kyun", "aap", "tum", "nahi", "bhai", "yaar", "hindi"},
	"id": {"yang", "untuk", "dengan", "tidak", "adalah", "aku", "kau", "bisa", "sudah", "belum", "ini", "itu"},
}

// Languages returns the known language codes, sorted.
func Languages() []string {
	out := make([]string, 0, len(languageMarkers))
	for code := range languageMarkers {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// RegionProfile is the compiled keyword set for one region.
type RegionProfile struct {
	Code     string
	Language string
	Table    KeywordTable

	strong, medium, weak    *keywordSet
	topics, places, culture *keywordSet
	boost                   *keywordSet
	identifiers             *keywordSet
}

func compileProfile(code string, t KeywordTable) *RegionProfile {
	p := &RegionProfile{
		Code:     code,
		Language: t.Language,
		Table:    t,
		strong:   newKeywordSet(t.Strong),
		medium:   newKeywordSet(t.Medium),
		weak:     newKeywordSet(t.Weak),
		topics:   newKeywordSet(t.Topics),
		places:   newKeywordSet(t.Places),
		culture:  newKeywordSet(t.Culture),
		boost:    newKeywordSet(t.Boost),
	}
	var all []string
	for _, list := range [][]string{t.Strong, t.Medium, t.Topics, t.Places, t.Culture, t.Boost} {
		all = append(all, list...)
	}
	p.identifiers = newKeywordSet(all)
	return p
}

// Neutral reports whether the profile has no keyword tables.
func (p *RegionProfile) Neutral() bool {
	return p.identifiers.size() == 0
}

// channelScore returns the tiered channel keyword score and the number of distinct hits.
func (p *RegionProfile) channelScore(text string) (float64, int) {
	s, m, w := p.strong.count(text), p.medium.count(text), p.weak.count(text)
	score := float64(s)*0.4 + float64(m)*0.2 + float64(w)*0.1
	return clamp01(score), s + m + w
}

// contentScore returns the topic/place/culture score of a title and the number of distinct hits.
func (p *RegionProfile) contentScore(text string) (float64, int) {
	t, pl, c := p.topics.count(text), p.places.count(text), p.culture.count(text)
	score := float64(t)*0.3 + float64(pl)*0.2 + float64(c)*0.1
	return clamp01(score), t + pl + c
}

// Registry holds the compiled profiles for the supported regions.
type Registry struct {
	profiles      map[string]*RegionProfile
	order         []string
	neutral       *RegionProfile
	contamination *contaminationSet
	languages     map[string]*keywordSet
}

type contaminationSet struct {
	label string
	home  map[string]bool
	names *keywordSet
	lang  *keywordSet
	topic *keywordSet
}

// NewRegistry compiles the tables for the supported regions. extra keywords are merged into the
// built-in tables; regions without a built-in table use only their extras.
func NewRegistry(supported []string, extra map[string]KeywordTable, markers ContaminationMarkers) *Registry {
	if len(supported) == 0 {
		supported = DefaultSupportedRegions
	}
	if markers.Label == "" {
		markers = DefaultContamination
	}

	r := &Registry{
		profiles:  make(map[string]*RegionProfile, len(supported)),
		neutral:   compileProfile("", KeywordTable{}),
		languages: make(map[string]*keywordSet, len(languageMarkers)),
	}
	for _, code := range supported {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || r.profiles[code] != nil {
			continue
		}
		table := defaultTables[code]
		if e, ok := extra[code]; ok {
			table = table.Merge(e)
		}
		r.profiles[code] = compileProfile(code, table)
		r.order = append(r.order, code)
	}

	home := make(map[string]bool, len(markers.HomeRegions))
	for _, h := range markers.HomeRegions {
		home[strings.ToUpper(h)] = true
	}
	r.contamination = &contaminationSet{
		label: markers.Label,
		home:  home,
		names: newKeywordSet(markers.Names),
		lang:  newKeywordSet(markers.Language),
		topic: newKeywordSet(markers.Topics),
	}

	for code, words := range languageMarkers {
		r.languages[code] = newKeywordSet(words)
	}
	return r
}

// Profile returns the profile for a region. Unsupported regions get a neutral profile.
func (r *Registry) Profile(region string) *RegionProfile {
	code := strings.ToUpper(strings.TrimSpace(region))
	if p, ok := r.profiles[code]; ok {
		return p
	}
	return r.neutral
}

// Supported reports whether a region has a configured profile.
func (r *Registry) Supported(region string) bool {
	_, ok := r.profiles[strings.ToUpper(strings.TrimSpace(region))]
	return ok
}

// Regions returns the supported region codes in configuration order.
func (r *Registry) Regions() []string {
	return append([]string(nil), r.order...)
}

// LanguageScore returns how strongly normalized text reads as the given language (0-1).
func (r *Registry) LanguageScore(text, lang string) float64 {
	ks, ok := r.languages[lang]
	if !ok {
		return 0
	}
	return clamp01(float64(ks.count(text)) * 0.25)
}

// DominantLanguage returns the language with the most marker hits, or "" when none match
// or the top two tie.
func (r *Registry) DominantLanguage(text string) string {
	best, bestHits, tie := "", 0, false
	for _, code := range Languages() {
		h := r.languages[code].count(text)
		switch {
		case h > bestHits:
			best, bestHits, tie = code, h, false
		case h == bestHits && h > 0:
			tie = true
		}
	}
	if tie {
		return ""
	}
	return best
}
