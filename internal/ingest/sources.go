// Package ingest is C7: per-source feed synchronization, turning a Source
// into a batch of extracted, catalog-committed entries.
package ingest

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"feedmind/internal/domain/entity"
)

// sourceDoc mirrors the JSON source-list shape spec §6 names.
type sourceDoc struct {
	Sources []sourceJSON `json:"sources"`
}

type sourceJSON struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// opmlDoc mirrors the subset of OPML 2.0 spec §6 reads: outline elements
// with type="rss".
type opmlDoc struct {
	Body struct {
		Outlines []opmlOutline `xml:"outline"`
	} `xml:"body"`
}

type opmlOutline struct {
	Type     string        `xml:"type,attr"`
	Text     string        `xml:"text,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	Title    string        `xml:"title,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

// LoadSources reads every .json/.opml file directly under dir and returns
// the deduplicated (by url) union of their sources, per spec §6.
func LoadSources(dir string) ([]entity.Source, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read source dir %s: %w", dir, err)
	}

	seen := make(map[string]bool)
	var sources []entity.Source

	add := func(s entity.Source) {
		if seen[s.URL] {
			return
		}
		if err := s.Validate(); err != nil {
			return
		}
		seen[s.URL] = true
		sources = append(sources, s)
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Join(dir, f.Name())
		switch strings.ToLower(filepath.Ext(f.Name())) {
		case ".json":
			fromJSON, err := loadJSONSources(path)
			if err != nil {
				return nil, err
			}
			for _, s := range fromJSON {
				add(s)
			}
		case ".opml":
			fromOPML, err := loadOPMLSources(path)
			if err != nil {
				return nil, err
			}
			for _, s := range fromOPML {
				add(s)
			}
		}
	}
	return sources, nil
}

func loadJSONSources(path string) ([]entity.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	var doc sourceDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	out := make([]entity.Source, 0, len(doc.Sources))
	for _, s := range doc.Sources {
		out = append(out, entity.Source{Name: s.Name, URL: s.URL, Description: s.Description})
	}
	return out, nil
}

func loadOPMLSources(path string) ([]entity.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	var doc opmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	var out []entity.Source
	var walk func(outlines []opmlOutline)
	walk = func(outlines []opmlOutline) {
		for _, o := range outlines {
			if o.Type == "rss" && o.XMLURL != "" {
				out = append(out, entity.Source{Name: o.Text, URL: o.XMLURL, Description: o.Title})
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return out, nil
}
