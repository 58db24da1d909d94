// Package index builds the read-only lookup tables the classifier matches against.
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emilianohg/umbrella/internal/models"
)

// ConfigError reports an ambiguous or malformed taxonomy.
type ConfigError struct {
	Kind   string // "customer", "project", "meeting type" or "domain"
	Key    string
	First  string
	Second string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("config: %s %q: %s", e.Kind, e.Key, e.Reason)
	}
	return fmt.Sprintf("config: %s alias %q declared by both %q and %q", e.Kind, e.Key, e.First, e.Second)
}

// Index is never mutated after Build and is safe for concurrent reads.
type Index struct {
	customers []models.Customer
	projects  []models.Project
	types     []models.MeetingType

	customerByKey  map[string]int
	projectByKey   map[string]int
	customerDomain map[string]int
	typeByName     map[string]int
}

// Build creates the lookup tables. Inactive projects are left out entirely.
func Build(customers []models.Customer, projects []models.Project, types []models.MeetingType) (*Index, error) {
	idx := &Index{
		customerByKey:  make(map[string]int),
		projectByKey:   make(map[string]int),
		customerDomain: make(map[string]int),
		typeByName:     make(map[string]int),
	}

	for _, c := range customers {
		if Normalize(c.Name) == "" {
			return nil, &ConfigError{Kind: "customer", Key: c.Name, Reason: "name is empty"}
		}
		pos := len(idx.customers)
		for _, key := range keys(c.Name, c.Aliases) {
			if prev, ok := idx.customerByKey[key]; ok && prev != pos {
				return nil, &ConfigError{Kind: "customer", Key: key, First: idx.customers[prev].Name, Second: c.Name}
			}
			idx.customerByKey[key] = pos
		}
		for _, d := range c.Domains {
			d = normalizeDomain(d)
			if d == "" {
				continue
			}
			if prev, ok := idx.customerDomain[d]; ok && prev != pos {
				return nil, &ConfigError{Kind: "domain", Key: d, First: idx.customers[prev].Name, Second: c.Name}
			}
			idx.customerDomain[d] = pos
		}
		if c.Color == "" {
			c.Color = models.DefaultColor
		}
		idx.customers = append(idx.customers, c)
	}

	for _, p := range projects {
		if !p.Active {
			continue
		}
		if Normalize(p.Name) == "" {
			return nil, &ConfigError{Kind: "project", Key: p.Name, Reason: "name is empty"}
		}
		if p.Customer != nil {
			if _, ok := idx.customerByKey[Normalize(*p.Customer)]; !ok {
				return nil, &ConfigError{Kind: "project", Key: p.Name, Reason: fmt.Sprintf("unknown customer %q", *p.Customer)}
			}
		}
		pos := len(idx.projects)
		for _, key := range keys(p.Name, p.Aliases) {
			if prev, ok := idx.projectByKey[key]; ok && prev != pos {
				return nil, &ConfigError{Kind: "project", Key: key, First: idx.projects[prev].Name, Second: p.Name}
			}
			idx.projectByKey[key] = pos
		}
		idx.projects = append(idx.projects, p)
	}

	sorted := make([]models.MeetingType, len(types))
	copy(sorted, types)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	for i, t := range sorted {
		key := Normalize(t.Name)
		if key == "" {
			return nil, &ConfigError{Kind: "meeting type", Key: t.Name, Reason: "name is empty"}
		}
		if _, ok := idx.typeByName[key]; ok {
			return nil, &ConfigError{Kind: "meeting type", Key: t.Name, Reason: "declared twice"}
		}
		if sorted[i].Color == "" {
			sorted[i].Color = models.DefaultColor
		}
		idx.typeByName[key] = i
	}
	idx.types = sorted

	return idx, nil
}

// Normalize lowercases and trims a lookup key.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeDomain(d string) string {
	return strings.TrimPrefix(Normalize(d), "@")
}

// keys returns the distinct normalized name and aliases.
func keys(name string, aliases []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range append([]string{name}, aliases...) {
		k := Normalize(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Customers returns customers in configuration order.
func (idx *Index) Customers() []models.Customer {
	return idx.customers
}

// Projects returns active projects in configuration order.
func (idx *Index) Projects() []models.Project {
	return idx.projects
}

// MeetingTypes returns meeting types by descending priority.
func (idx *Index) MeetingTypes() []models.MeetingType {
	return idx.types
}

// CustomerKeys returns the normalized name and aliases of the customer at position i.
func (idx *Index) CustomerKeys(i int) []string {
	c := idx.customers[i]
	return keys(c.Name, c.Aliases)
}

func (idx *Index) ProjectKeys(i int) []string {
	p := idx.projects[i]
	return keys(p.Name, p.Aliases)
}

func (idx *Index) Customer(alias string) (models.Customer, bool) {
	pos, ok := idx.customerByKey[Normalize(alias)]
	if !ok {
		return models.Customer{}, false
	}
	return idx.customers[pos], true
}

func (idx *Index) Project(alias string) (models.Project, bool) {
	pos, ok := idx.projectByKey[Normalize(alias)]
	if !ok {
		return models.Project{}, false
	}
	return idx.projects[pos], true
}

func (idx *Index) MeetingType(name string) (models.MeetingType, bool) {
	pos, ok := idx.typeByName[Normalize(name)]
	if !ok {
		return models.MeetingType{}, false
	}
	return idx.types[pos], true
}

// CustomerForEmail matches the address domain, or any parent domain, against
// the configured customer domains.
func (idx *Index) CustomerForEmail(email string) (models.Customer, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return models.Customer{}, false
	}
	domain := normalizeDomain(email[at+1:])
	for domain != "" {
		if pos, ok := idx.customerDomain[domain]; ok {
			return idx.customers[pos], true
		}
		dot := strings.Index(domain, ".")
		if dot < 0 {
			break
		}
		domain = domain[dot+1:]
	}
	return models.Customer{}, false
}

func (idx *Index) CustomerNames() []string {
	names := make([]string, len(idx.customers))
	for i, c := range idx.customers {
		names[i] = c.Name
	}
	return names
}

func (idx *Index) ProjectNames() []string {
	names := make([]string, len(idx.projects))
	for i, p := range idx.projects {
		names[i] = p.Name
	}
	return names
}

// TypeNames lists configured meeting types followed by the two sentinels.
func (idx *Index) TypeNames() []string {
	names := make([]string, 0, len(idx.types)+2)
	for _, t := range idx.types {
		names = append(names, t.Name)
	}
	for _, s := range []string{models.InternalMeeting, models.Uncategorized} {
		if _, ok := idx.typeByName[Normalize(s)]; !ok {
			names = append(names, s)
		}
	}
	return names
}
