package normalize

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Misspelling-tolerant patterns for each sub-location keyword.
var markerBases = map[string]string{
	"BUILDING":  `BU??I??LD??I??N??G??`,
	"WAREHOUSE": `WA??R??E??HSE`,
	"FACILITY":  `FACI??L??I??T??Y??`,
	"PLANT":     `PLA??N??T`,
	"DOCK":      `DO??C??K`,
	"APARTMENT": `APA??R??T??M??E??N??T`,
	"SUITE":     `SU??I??TE`,
	"ROOM":      `RO??O??M`,
	"GATE":      `GA??TE??`,
	"UNIT":      `UNIT`,
	"DOOR":      `DOOR`,
	"GSTORE":    `GSTORE`,
}

const markerDelimiters = `[\s.]?[\s-]?[\s:]?[\s#]?`

// InferMarker derives the marker pattern for a level-1 sub-location such as
// "Building 1". There is no marker when the sub-location is empty, is a bare
// keyword, or ends with a keyword.
func InferMarker(sublocation string) (string, bool) {
	trimmed := strings.TrimSpace(sublocation)
	if trimmed == "" {
		return "", false
	}
	if _, ok := markerBases[trimmed]; ok {
		return "", false
	}

	tokens := Tokenize(sublocation)
	if len(tokens) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(`\b(`)
	for i, token := range tokens {
		last := i == len(tokens)-1
		if base, ok := markerBases[strings.ToUpper(token)]; ok {
			if last {
				return "", false
			}
			b.WriteString(base)
			b.WriteString(markerDelimiters)
			continue
		}
		for _, r := range strings.ToLower(token) {
			b.WriteString("[")
			b.WriteString(regexp.QuoteMeta(strings.ToUpper(string(r))))
			b.WriteString("]")
		}
		if !last {
			b.WriteString(markerDelimiters)
		}
	}
	b.WriteString(`)\b`)
	return b.String(), true
}

// CompileMarker compiles a marker for case-insensitive matching.
func CompileMarker(marker string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + marker)
	if err != nil {
		return nil, errors.Wrapf(err, "compile marker %q", marker)
	}
	return re, nil
}

// MarkerCache holds compiled markers keyed by pattern. Safe for concurrent use.
type MarkerCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

// NewMarkerCache creates an empty cache.
func NewMarkerCache() *MarkerCache {
	return &MarkerCache{compiled: make(map[string]*regexp.Regexp)}
}

// Get returns the compiled marker, compiling it on first use.
func (c *MarkerCache) Get(marker string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.compiled[marker]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := CompileMarker(marker)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.compiled[marker] = re
	c.mu.Unlock()
	return re, nil
}

// Match reports whether marker matches any of the texts.
func (c *MarkerCache) Match(marker string, texts ...string) (bool, error) {
	re, err := c.Get(marker)
	if err != nil {
		return false, err
	}
	for _, text := range texts {
		if text != "" && re.MatchString(text) {
			return true, nil
		}
	}
	return false, nil
}
