package metadata

import (
	"bufio"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DiagnosisMapEntry associates a clinical term (and its aliases) with the
// ICD-code prefixes it maps to.
type DiagnosisMapEntry struct {
	Term        string   `json:"term"`
	Aliases     []string `json:"aliases"`
	ICDPrefixes []string `json:"icd_prefixes"`
}

var whitespaceRE = regexp.MustCompile(`\s+`)

func normalizeMatchText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.ToLower(s), "")
}

// DiagnosisMapStore loads var/metadata/diagnosis_icd_map.jsonl, one JSON
// object per line, with mtime-cache invalidation.
type DiagnosisMapStore struct {
	mu      sync.RWMutex
	path    string
	modTime time.Time
	entries []DiagnosisMapEntry
}

func NewDiagnosisMapStore() *DiagnosisMapStore { return &DiagnosisMapStore{} }

func (d *DiagnosisMapStore) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		d.mu.Lock()
		d.entries = nil
		d.mu.Unlock()
		return err
	}
	d.mu.RLock()
	same := d.path == path && d.modTime.Equal(info.ModTime())
	d.mu.RUnlock()
	if same {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var entries []DiagnosisMapEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw struct {
			Term        string   `json:"term"`
			Aliases     []string `json:"aliases"`
			ICDPrefixes []string `json:"icd_prefixes"`
			Prefixes    []string `json:"prefixes"`
		}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		term := strings.TrimSpace(raw.Term)
		if term == "" {
			continue
		}
		prefixSource := raw.ICDPrefixes
		if len(prefixSource) == 0 {
			prefixSource = raw.Prefixes
		}
		seen := map[string]struct{}{}
		prefixes := make([]string, 0, len(prefixSource))
		for _, p := range prefixSource {
			p = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p), ".", ""))
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			prefixes = append(prefixes, p)
		}
		if len(prefixes) == 0 {
			continue
		}
		entries = append(entries, DiagnosisMapEntry{Term: term, Aliases: raw.Aliases, ICDPrefixes: prefixes})
	}

	d.mu.Lock()
	d.path = path
	d.modTime = info.ModTime()
	d.entries = entries
	d.mu.Unlock()
	return nil
}

func (d *DiagnosisMapStore) Entries() []DiagnosisMapEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]DiagnosisMapEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// MapPrefixesForTerms returns the union of ICD prefixes for every entry
// whose term or alias matches (normalized) any of terms.
func (d *DiagnosisMapStore) MapPrefixesForTerms(terms []string) []string {
	normalizedTerms := map[string]struct{}{}
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		normalizedTerms[normalizeMatchText(t)] = struct{}{}
	}
	if len(normalizedTerms) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	var prefixes []string
	for _, e := range d.Entries() {
		candidates := append([]string{e.Term}, e.Aliases...)
		matched := false
		for _, c := range candidates {
			if _, ok := normalizedTerms[normalizeMatchText(c)]; ok {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, p := range e.ICDPrefixes {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}
