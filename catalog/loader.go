package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"psychotest/models"
	"psychotest/repository"
	"psychotest/scoring"
)

//go:embed definitions/*.yaml
var builtin embed.FS

// Scoring strategy names accepted in definition files.
const (
	StrategyBinary      = "binary"
	StrategyCategorical = "categorical"
	StrategyCompletion  = "completion"
)

// ScoringSpec is the scoring block of a definition file.
type ScoringSpec struct {
	Strategy string                 `yaml:"strategy"`
	Bands    []scoring.Band         `yaml:"bands"`
	Traits   []string               `yaml:"traits"`
	Weight   int                    `yaml:"weight"`
	Profiles []scoring.ProfileEntry `yaml:"profiles"`
	Fallback *scoring.Profile       `yaml:"fallback"`
}

// QuestionSpec is one question of a definition file.
type QuestionSpec struct {
	Number  int               `yaml:"number"`
	Type    string            `yaml:"type"`
	Section string            `yaml:"section"`
	Left    string            `yaml:"left"`
	Right   string            `yaml:"right"`
	Text    string            `yaml:"text"`
	Options map[string]string `yaml:"options"`
}

// Definition describes a test, its questions and how it is scored.
type Definition struct {
	Slug            string         `yaml:"slug"`
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Icon            string         `yaml:"icon"`
	Color           string         `yaml:"color"`
	DurationMinutes int            `yaml:"duration_minutes"`
	Active          *bool          `yaml:"active"`
	Scoring         ScoringSpec    `yaml:"scoring"`
	Questions       []QuestionSpec `yaml:"questions"`
}

// Parse decodes and validates one definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	sort.Slice(def.Questions, func(i, j int) bool { return def.Questions[i].Number < def.Questions[j].Number })
	return &def, nil
}

func (d *Definition) validate() error {
	if d.Slug == "" {
		return errors.New("test slug is required")
	}
	if d.Name == "" {
		return fmt.Errorf("test %q: name is required", d.Slug)
	}
	if len(d.Questions) == 0 {
		return fmt.Errorf("test %q: at least one question is required", d.Slug)
	}
	seen := make(map[int]bool, len(d.Questions))
	for _, q := range d.Questions {
		if q.Number < 1 {
			return fmt.Errorf("test %q: question numbers start at 1, got %d", d.Slug, q.Number)
		}
		if seen[q.Number] {
			return fmt.Errorf("test %q: question %d is defined twice", d.Slug, q.Number)
		}
		seen[q.Number] = true
		switch models.QuestionType(q.Type) {
		case models.QuestionTypeBinary:
			if q.Left == "" || q.Right == "" {
				return fmt.Errorf("test %q: binary question %d needs left and right statements", d.Slug, q.Number)
			}
		case models.QuestionTypeMultipleChoice:
			if len(q.Options) == 0 {
				return fmt.Errorf("test %q: multiple-choice question %d has no options", d.Slug, q.Number)
			}
			for key := range q.Options {
				if _, ok := scoring.ParseLetter(key); !ok {
					return fmt.Errorf("test %q: question %d has option key %q outside A-E", d.Slug, q.Number, key)
				}
			}
		default:
			return fmt.Errorf("test %q: question %d has unknown type %q", d.Slug, q.Number, q.Type)
		}
	}
	// Completion requires every number 1..N, so gaps would make a test impossible to finish.
	for n := 1; n <= len(d.Questions); n++ {
		if !seen[n] {
			return fmt.Errorf("test %q: question numbers must be contiguous from 1, %d is missing", d.Slug, n)
		}
	}
	if _, err := d.Strategy(); err != nil {
		return fmt.Errorf("test %q: %w", d.Slug, err)
	}
	return nil
}

// Strategy builds the scoring strategy the definition asks for.
func (d *Definition) Strategy() (scoring.Strategy, error) {
	spec := d.Scoring
	switch spec.Strategy {
	case StrategyBinary:
		bands := spec.Bands
		if len(bands) == 0 {
			bands = scoring.DefaultMBTIBands()
		}
		return scoring.NewBinaryStrategy(bands)
	case StrategyCategorical:
		traits := spec.Traits
		if len(traits) == 0 {
			traits = scoring.DefaultTherapistTraits()
		}
		weight := spec.Weight
		if weight == 0 {
			weight = scoring.DefaultTraitWeight
		}
		profiles := spec.Profiles
		if len(profiles) == 0 {
			profiles = scoring.DefaultTherapistProfiles()
		}
		fallback := scoring.DefaultTherapistFallback()
		if spec.Fallback != nil {
			fallback = *spec.Fallback
		}
		return scoring.NewCategoricalStrategy(traits, weight, profiles, fallback)
	case StrategyCompletion, "":
		return scoring.CompletionOnlyStrategy{}, nil
	}
	return nil, fmt.Errorf("unknown scoring strategy %q", spec.Strategy)
}

// Model converts the definition into catalog rows.
func (d *Definition) Model() (*models.Test, []models.Question, error) {
	active := true
	if d.Active != nil {
		active = *d.Active
	}
	strategy := d.Scoring.Strategy
	if strategy == "" {
		strategy = StrategyCompletion
	}
	test := &models.Test{
		Slug:            d.Slug,
		Name:            d.Name,
		Description:     d.Description,
		Icon:            d.Icon,
		Color:           d.Color,
		QuestionCount:   len(d.Questions),
		DurationMinutes: d.DurationMinutes,
		IsActive:        active,
		ScoringStrategy: strategy,
	}
	questions := make([]models.Question, 0, len(d.Questions))
	for _, q := range d.Questions {
		question := models.Question{
			Number:  q.Number,
			Type:    models.QuestionType(q.Type),
			Section: q.Section,
		}
		if question.Type == models.QuestionTypeMultipleChoice {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return nil, nil, fmt.Errorf("test %q: question %d options: %w", d.Slug, q.Number, err)
			}
			question.LeftText = q.Text
			question.Options = datatypes.JSON(options)
		} else {
			question.LeftText = q.Left
			question.RightText = q.Right
		}
		questions = append(questions, question)
	}
	return test, questions, nil
}

// LoadFS reads every *.yaml and *.yml definition at the root of fsys.
func LoadFS(fsys fs.FS) ([]*Definition, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	defs := make([]*Definition, 0, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		def, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadBuiltin returns the definitions shipped with the binary.
func LoadBuiltin() ([]*Definition, error) {
	sub, err := fs.Sub(builtin, "definitions")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// Load returns the built-in definitions overlaid with those found in dir.
// A definition in dir replaces a built-in one with the same slug.
func Load(dir string) ([]*Definition, error) {
	defs, err := LoadBuiltin()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in tests: %w", err)
	}
	if dir == "" {
		return defs, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("catalog directory %s: %w", filepath.Clean(dir), err)
	}
	extra, err := LoadFS(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]int, len(defs))
	for i, d := range defs {
		bySlug[d.Slug] = i
	}
	for _, d := range extra {
		if i, ok := bySlug[d.Slug]; ok {
			log.Printf("INFO: [Catalog] Definition for %q in %s overrides the built-in one.", d.Slug, dir)
			defs[i] = d
			continue
		}
		bySlug[d.Slug] = len(defs)
		defs = append(defs, d)
	}
	return defs, nil
}

// Seed writes the definitions into the catalog repository.
func Seed(ctx context.Context, repo repository.CatalogRepository, defs []*Definition) error {
	for _, d := range defs {
		test, questions, err := d.Model()
		if err != nil {
			return err
		}
		if err := repo.UpsertTest(ctx, test, questions); err != nil {
			return err
		}
	}
	log.Printf("INFO: [Catalog] Seeded %d tests.", len(defs))
	return nil
}

// BuildRegistry binds each definition's strategy to its slug.
func BuildRegistry(defs []*Definition) (*scoring.Registry, error) {
	registry := scoring.NewRegistry()
	for _, d := range defs {
		strategy, err := d.Strategy()
		if err != nil {
			return nil, fmt.Errorf("test %q: %w", d.Slug, err)
		}
		if err := registry.Register(d.Slug, strategy); err != nil {
			return nil, err
		}
		log.Printf("INFO: [Catalog] Test %q scored with %s strategy.", d.Slug, strategy.Name())
	}
	return registry, nil
}
