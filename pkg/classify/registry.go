package classify

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xhad/foiabias/pkg/logger"
)

// RegistryConfig points at a legislator roster published as YAML plus a
// local cache file so repeated runs avoid refetching.
type RegistryConfig struct {
	RosterURL string
	CacheFile string
	Timeout   time.Duration
}

// Registry maps normalized actor names to a party tag (D, R, or mixed when
// the same name appears for both parties). It is an explicitly constructed
// component handed to the cascade, not process-wide state.
type Registry struct {
	actors map[string]string
	logger *log.Logger
}

// Well-known executive-branch actors the congressional roster misses.
var manualActors = map[string]string{
	"joe biden":        "D",
	"joseph r. biden":  "D",
	"kamala harris":    "D",
	"donald trump":     "R",
	"donald j. trump":  "R",
	"mike pence":       "R",
	"barack obama":     "D",
	"hillary clinton":  "D",
	"bill clinton":     "D",
	"george w. bush":   "R",
	"dick cheney":      "R",
	"al gore":          "D",
	"mitch mcconnell":  "R",
	"nancy pelosi":     "D",
	"kevin mccarthy":   "R",
	"dnc":              "D",
	"rnc":              "R",
	"democratic party": "D",
	"republican party": "R",
}

type rosterEntry struct {
	Name struct {
		First        string `yaml:"first"`
		Last         string `yaml:"last"`
		OfficialFull string `yaml:"official_full"`
	} `yaml:"name"`
	Terms []struct {
		Party string `yaml:"party"`
	} `yaml:"terms"`
}

// NewRegistry builds the actor registry from the configured roster source,
// preferring the local cache file and fetching over HTTP on a miss.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	lg := logger.New("Registry")

	data, err := rosterBytes(config, lg)
	if err != nil {
		return nil, fmt.Errorf("load legislator roster: %w", err)
	}

	var entries []rosterEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse legislator roster: %w", err)
	}

	r := &Registry{actors: make(map[string]string), logger: lg}
	for _, e := range entries {
		party := partyTag(e)
		if party == "" {
			continue
		}
		for _, name := range rosterNames(e) {
			r.add(name, party)
		}
	}
	for name, party := range manualActors {
		r.add(name, party)
	}
	lg.Printf("registry initialized with %d actors", len(r.actors))
	return r, nil
}

// Lookup returns the party tag for an already-normalized name.
func (r *Registry) Lookup(name string) (string, bool) {
	party, ok := r.actors[Normalize(name)]
	return party, ok
}

func (r *Registry) Size() int { return len(r.actors) }

func (r *Registry) add(name, party string) {
	key := Normalize(name)
	if key == "" {
		return
	}
	if existing, ok := r.actors[key]; ok && existing != party {
		r.actors[key] = "mixed"
		return
	}
	r.actors[key] = party
}

// Normalize lowercases and collapses whitespace for registry keys.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func rosterBytes(config RegistryConfig, lg *log.Logger) ([]byte, error) {
	if config.CacheFile != "" {
		if data, err := os.ReadFile(config.CacheFile); err == nil && len(data) > 0 {
			return data, nil
		}
	}

	client := &http.Client{Timeout: config.Timeout}
	resp, err := client.Get(config.RosterURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roster fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if config.CacheFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.CacheFile), 0o755); err == nil {
			if err := os.WriteFile(config.CacheFile, data, 0o644); err != nil {
				lg.Printf("could not cache roster to %s: %v", config.CacheFile, err)
			}
		}
	}
	return data, nil
}

func partyTag(e rosterEntry) string {
	if len(e.Terms) == 0 {
		return ""
	}
	switch e.Terms[len(e.Terms)-1].Party {
	case "Democrat":
		return "D"
	case "Republican":
		return "R"
	}
	return ""
}

func rosterNames(e rosterEntry) []string {
	var names []string
	if e.Name.OfficialFull != "" {
		names = append(names, e.Name.OfficialFull)
	}
	if e.Name.First != "" && e.Name.Last != "" {
		names = append(names, e.Name.First+" "+e.Name.Last)
	}
	return names
}
