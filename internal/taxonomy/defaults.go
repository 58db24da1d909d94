package taxonomy

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/emilianohg/umbrella/internal/models"
)

func strPtr(s string) *string { return &s }

// Default returns the sample taxonomy matching the fixture calendar.
func Default() *Taxonomy {
	return &Taxonomy{
		Customers: []models.Customer{
			{Name: "Contoso Corporation", Aliases: []string{"Contoso"}, Domains: []string{"contoso.com"}, Color: "#0984E3"},
			{Name: "Fabrikam", Aliases: []string{"Fabrikam Inc"}, Domains: []string{"fabrikam.com"}, Color: "#00B894"},
			{Name: "AdventureWorks", Aliases: []string{"Adventure Works"}, Domains: []string{"adventureworks.com"}, Color: "#FDCB6E"},
			{Name: "Northwind Traders", Aliases: []string{"Northwind"}, Domains: []string{"northwind.com"}, Color: "#E17055"},
		},
		Projects: []models.Project{
			{Name: "Contoso Phase 2", Aliases: []string{"Phase 2"}, Customer: strPtr("Contoso Corporation"), Kind: models.ProjectKindCustomer, Active: true},
			{Name: "Fabrikam Cloud Migration", Aliases: []string{"Cloud Migration"}, Customer: strPtr("Fabrikam"), Kind: models.ProjectKindCustomer, Active: true},
			{Name: "AdventureWorks CRM", Aliases: []string{"CRM Implementation"}, Customer: strPtr("AdventureWorks"), Kind: models.ProjectKindCustomer, Active: true},
			{Name: "Internal Tooling", Aliases: []string{"Tooling"}, Kind: models.ProjectKindInternal, Active: true},
			{Name: "Documentation", Aliases: []string{"Docs"}, Kind: models.ProjectKindInternal, Active: true},
		},
		MeetingTypes: []models.MeetingType{
			{Name: "Standup", Description: "Daily or weekly team syncs", Keywords: []string{"standup", "stand-up", "daily sync"}, Priority: 10, Color: "#74B9FF"},
			{Name: "1:1", Description: "One on one conversations", Keywords: []string{"1:1", "one on one"}, Priority: 9, Color: "#A29BFE"},
			{Name: "Planning", Description: "Sprint and roadmap planning", Keywords: []string{"planning", "roadmap"}, Priority: 8, Color: "#55EFC4"},
			{Name: "Review", Description: "Architecture, code and sprint reviews", Keywords: []string{"review", "deep dive"}, Priority: 7, Color: "#FAB1A0"},
			{Name: "Status", Description: "Project status updates", Keywords: []string{"status", "update"}, Priority: 6, Color: "#81ECEC"},
			{Name: "Sales", Description: "Demos and pitches", Keywords: []string{"demo", "sales"}, Priority: 5, Color: "#FD79A8"},
			{Name: "Training", Description: "Learning sessions", Keywords: []string{"training", "workshop"}, Priority: 4, Color: "#FFEAA7"},
			{Name: "All Hands", Description: "Company wide meetings", Keywords: []string{"all hands", "town hall"}, Priority: 3, Color: "#DFE6E9"},
			{Name: "Social", Description: "Team social events", Keywords: []string{"social", "happy hour"}, Priority: 2, Color: "#FF7675"},
			{Name: "Focus Time", Description: "Blocked heads-down time", Keywords: []string{"focus time", "focus"}, Priority: 1, Color: "#636E72"},
		},
	}
}

// Save writes t into dir as the three taxonomy files, replacing each atomically.
func Save(dir string, t *Taxonomy) error {
	if t == nil {
		return errors.New("taxonomy is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var cf customersFile
	for _, c := range t.Customers {
		cf.Customers = append(cf.Customers, customerEntry{Name: c.Name, Aliases: c.Aliases, Domains: c.Domains, Color: c.Color})
	}
	var pf projectsFile
	for _, p := range t.Projects {
		active := p.Active
		pf.Projects = append(pf.Projects, projectEntry{
			Name:     p.Name,
			Aliases:  p.Aliases,
			Customer: p.Customer,
			Type:     string(p.Kind),
			Active:   &active,
		})
	}
	var mf categoriesFile
	for _, m := range t.MeetingTypes {
		mf.MeetingTypes = append(mf.MeetingTypes, meetingTypeEntry{
			Name:        m.Name,
			Description: m.Description,
			Keywords:    m.Keywords,
			Color:       m.Color,
			Priority:    m.Priority,
		})
	}

	files := map[string]any{
		CustomersFile:  cf,
		ProjectsFile:   pf,
		CategoriesFile: mf,
	}
	for name, v := range files {
		if err := writeYAML(filepath.Join(dir, name), v); err != nil {
			return err
		}
	}
	return nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".umbrella-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
