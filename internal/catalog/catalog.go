// Package catalog exposes the static lookup tables shared by the wizard,
// the property records and the consultation booking. The tables are
// embedded as YAML and parsed once.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sync"

	"wisebox-backend/internal/schedule"
	"wisebox-backend/internal/wizard"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var rawCatalog []byte

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type DocumentType struct {
	Value     string `yaml:"value" json:"value"`
	Label     string `yaml:"label" json:"label"`
	HasExpiry bool   `yaml:"hasExpiry" json:"hasExpiry"`
}

type Service struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Duration    int    `yaml:"duration" json:"duration"`
	Price       int    `yaml:"price" json:"price"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
}

// Free services are not booked here; they go to the external scheduler.
func (s Service) Free() bool {
	return s.Price == 0
}

type hours struct {
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	StepMinutes int    `yaml:"stepMinutes"`
}

type Catalog struct {
	PropertyTypes        []Option       `yaml:"propertyTypes"`
	OwnershipTypes       []Option       `yaml:"ownershipTypes"`
	SizeUnits            []string       `yaml:"sizeUnits"`
	SurveyTypes          []Option       `yaml:"surveyTypes"`
	DocumentCategories   []Option       `yaml:"documentCategories"`
	DocumentTypes        []DocumentType `yaml:"documentTypes"`
	ConsultationServices []Service      `yaml:"consultationServices"`
	ConsultationHours    hours          `yaml:"consultationHours"`

	timeSlots []string
}

var ErrServiceNotFound = errors.New("consultation service not found")

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load parses the embedded catalog on first use.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(rawCatalog)
	})
	return loaded, loadErr
}

// MustLoad is Load for program start-up.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	slots, err := buildSlots(c.ConsultationHours)
	if err != nil {
		return nil, err
	}
	c.timeSlots = slots

	seen := make(map[string]bool, len(c.ConsultationServices))
	for _, svc := range c.ConsultationServices {
		if svc.ID == "" || svc.Duration <= 0 || svc.Price < 0 {
			return nil, fmt.Errorf("parse catalog: invalid service %q", svc.ID)
		}
		if seen[svc.ID] {
			return nil, fmt.Errorf("parse catalog: duplicate service %q", svc.ID)
		}
		seen[svc.ID] = true
	}
	if err := c.matchWizard(); err != nil {
		return nil, err
	}
	return &c, nil
}

func buildSlots(h hours) ([]string, error) {
	slots, err := schedule.Slots(h.Start, h.End, h.StepMinutes)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: consultation hours: %w", err)
	}
	return slots, nil
}

func (c *Catalog) Services() []Service {
	return append([]Service(nil), c.ConsultationServices...)
}

func (c *Catalog) Service(id string) (Service, error) {
	for _, svc := range c.ConsultationServices {
		if svc.ID == id {
			return svc, nil
		}
	}
	return Service{}, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
}

// TimeSlots are the bookable start times of a consultation day.
func (c *Catalog) TimeSlots() []string {
	return append([]string(nil), c.timeSlots...)
}

// matchWizard requires each option table to list exactly the values the
// wizard accepts, in the wizard's order, so the labels served to clients never
// drift from what a submission can hold.
func (c *Catalog) matchWizard() error {
	checks := []struct {
		table string
		got   []string
		want  []string
	}{
		{"propertyTypes", optionValues(c.PropertyTypes), asStrings(wizard.PropertyTypes())},
		{"ownershipTypes", optionValues(c.OwnershipTypes), asStrings(wizard.OwnershipTypes())},
		{"sizeUnits", c.SizeUnits, asStrings(wizard.SizeUnits())},
		{"surveyTypes", optionValues(c.SurveyTypes), asStrings(wizard.SurveyTypes())},
		{"documentCategories", optionValues(c.DocumentCategories), asStrings(wizard.DocumentCategories())},
	}
	for _, chk := range checks {
		if !slices.Equal(chk.got, chk.want) {
			return fmt.Errorf("parse catalog: %s is %v, the wizard accepts %v", chk.table, chk.got, chk.want)
		}
	}
	return nil
}

func optionValues(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

func asStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// Tables is the JSON shape served to clients.
type Tables struct {
	PropertyTypes        []Option       `json:"propertyTypes"`
	OwnershipTypes       []Option       `json:"ownershipTypes"`
	SizeUnits            []string       `json:"sizeUnits"`
	SurveyTypes          []Option       `json:"surveyTypes"`
	DocumentCategories   []Option       `json:"documentCategories"`
	DocumentTypes        []DocumentType `json:"documentTypes"`
	ConsultationServices []Service      `json:"consultationServices"`
	TimeSlots            []string       `json:"timeSlots"`
}

func (c *Catalog) Tables() Tables {
	return Tables{
		PropertyTypes:        append([]Option(nil), c.PropertyTypes...),
		OwnershipTypes:       append([]Option(nil), c.OwnershipTypes...),
		SizeUnits:            append([]string(nil), c.SizeUnits...),
		SurveyTypes:          append([]Option(nil), c.SurveyTypes...),
		DocumentCategories:   append([]Option(nil), c.DocumentCategories...),
		DocumentTypes:        append([]DocumentType(nil), c.DocumentTypes...),
		ConsultationServices: c.Services(),
		TimeSlots:            c.TimeSlots(),
	}
}
