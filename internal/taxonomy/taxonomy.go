// Package taxonomy loads customers, projects and meeting types from YAML files.
package taxonomy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/emilianohg/umbrella/internal/models"
)

const (
	CustomersFile  = "customers.yaml"
	ProjectsFile   = "projects.yaml"
	CategoriesFile = "categories.yaml"
)

type customerEntry struct {
	Name    string   `yaml:"name" validate:"required"`
	Aliases []string `yaml:"aliases" validate:"dive,required"`
	Domains []string `yaml:"domains" validate:"dive,required"`
	Color   string   `yaml:"color" validate:"omitempty,hexcolor"`
}

type projectEntry struct {
	Name     string   `yaml:"name" validate:"required"`
	Aliases  []string `yaml:"aliases" validate:"dive,required"`
	Customer *string  `yaml:"customer"`
	Type     string   `yaml:"type" validate:"omitempty,oneof=customer internal"`
	Active   *bool    `yaml:"active"`
}

type meetingTypeEntry struct {
	Name        string   `yaml:"name" validate:"required"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords" validate:"dive,required"`
	Color       string   `yaml:"color" validate:"omitempty,hexcolor"`
	Priority    int      `yaml:"priority" validate:"min=0"`
}

type customersFile struct {
	Customers []customerEntry `yaml:"customers" validate:"dive"`
}

type projectsFile struct {
	Projects []projectEntry `yaml:"projects" validate:"dive"`
}

type categoriesFile struct {
	MeetingTypes []meetingTypeEntry `yaml:"meeting_types" validate:"dive"`
}

// Taxonomy is the loaded, validated configuration the index is built from.
type Taxonomy struct {
	Customers    []models.Customer
	Projects     []models.Project
	MeetingTypes []models.MeetingType
}

var validate = validator.New()

// Load reads the three taxonomy files from dir. A missing file is treated as
// an empty list.
func Load(dir string) (*Taxonomy, error) {
	var cf customersFile
	if err := readYAML(filepath.Join(dir, CustomersFile), &cf); err != nil {
		return nil, err
	}
	var pf projectsFile
	if err := readYAML(filepath.Join(dir, ProjectsFile), &pf); err != nil {
		return nil, err
	}
	var mf categoriesFile
	if err := readYAML(filepath.Join(dir, CategoriesFile), &mf); err != nil {
		return nil, err
	}

	t := &Taxonomy{}
	for _, c := range cf.Customers {
		color := c.Color
		if color == "" {
			color = models.DefaultColor
		}
		t.Customers = append(t.Customers, models.Customer{
			Name:    c.Name,
			Aliases: c.Aliases,
			Domains: c.Domains,
			Color:   color,
		})
	}
	for _, p := range pf.Projects {
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		kind := models.ProjectKind(p.Type)
		if kind == "" {
			kind = models.ProjectKindInternal
			if p.Customer != nil {
				kind = models.ProjectKindCustomer
			}
		}
		t.Projects = append(t.Projects, models.Project{
			Name:     p.Name,
			Aliases:  p.Aliases,
			Customer: p.Customer,
			Kind:     kind,
			Active:   active,
		})
	}
	for _, m := range mf.MeetingTypes {
		color := m.Color
		if color == "" {
			color = models.DefaultColor
		}
		t.MeetingTypes = append(t.MeetingTypes, models.MeetingType{
			Name:        m.Name,
			Description: m.Description,
			Keywords:    m.Keywords,
			Priority:    m.Priority,
			Color:       color,
		})
	}
	return t, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), describe(err))
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var errs []error
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.Join(errs...)
}
