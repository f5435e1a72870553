package scoring

import (
	"errors"
	"fmt"
	"sort"
)

// Trait names of the therapist-style model, in declaration order. Letter A maps
// to the first trait, B to the second and so on.
const (
	TraitSupportive = "supportive"
	TraitCognitive  = "cognitive"
	TraitAdaptive   = "adaptive"
	TraitBehavioral = "behavioral"
	TraitDepth      = "depth"
)

// DefaultTraitWeight is added to a trait for every answer selecting it.
const DefaultTraitWeight = 2

// Score payload keys written next to the trait totals.
const (
	KeyAnswerDistribution = "answerDistribution"
	KeyPrimaryStyle       = "primaryStyle"
	KeySecondaryStyle     = "secondaryStyle"
	KeyProfileName        = "profileName"
)

// Profile is a named result category.
type Profile struct {
	Type string `yaml:"type" json:"type"`
	Name string `yaml:"name" json:"name"`
}

// ProfileEntry binds an ordered (primary, secondary) trait pair to a profile.
type ProfileEntry struct {
	Primary   string `yaml:"primary" json:"primary"`
	Secondary string `yaml:"secondary" json:"secondary"`
	Profile   `yaml:",inline"`
}

type traitPair struct {
	primary, secondary string
}

// CategoricalStrategy counts how often each option letter was chosen and maps the
// two strongest traits onto a profile table.
type CategoricalStrategy struct {
	traits   []string
	weight   int
	profiles map[traitPair]Profile
	fallback Profile
}

// DefaultTherapistTraits returns the five therapist-style traits in order.
func DefaultTherapistTraits() []string {
	return []string{TraitSupportive, TraitCognitive, TraitAdaptive, TraitBehavioral, TraitDepth}
}

// DefaultTherapistFallback is used for trait pairs missing from the table.
func DefaultTherapistFallback() Profile {
	return Profile{Type: "BUTUNLESTIRICI", Name: "Bütünleştirici Terapist"}
}

// DefaultTherapistProfiles returns the 20-entry therapist profile table.
func DefaultTherapistProfiles() []ProfileEntry {
	p := func(primary, secondary, typ, name string) ProfileEntry {
		return ProfileEntry{Primary: primary, Secondary: secondary, Profile: Profile{Type: typ, Name: name}}
	}
	return []ProfileEntry{
		p(TraitSupportive, TraitCognitive, "SICAK_MENTOR", "Sıcak Mentor"),
		p(TraitSupportive, TraitAdaptive, "DUYGUSAL_REHBER", "Duygusal Rehber"),
		p(TraitSupportive, TraitBehavioral, "DESTEKLEYICI_KOC", "Destekleyici Koç"),
		p(TraitSupportive, TraitDepth, "EMPATIK_ANALIST", "Empatik Analist"),
		p(TraitCognitive, TraitSupportive, "YAPILANDIRICI_DANIŞMAN", "Yapılandırıcı Danışman"),
		p(TraitCognitive, TraitAdaptive, "CBT_UZMANI", "Bilişsel Davranışçı Uzman"),
		p(TraitCognitive, TraitBehavioral, "STRATEJIK_ANALIST", "Stratejik Analist"),
		p(TraitCognitive, TraitDepth, "SEMA_TERAPISTI", "Şema Terapisti"),
		p(TraitAdaptive, TraitSupportive, "ESNEK_DESTEKCI", "Esnek Destekçi"),
		p(TraitAdaptive, TraitCognitive, "BUTUNLESTIRICI", "Bütünleştirici Terapist"),
		p(TraitAdaptive, TraitBehavioral, "PRATIK_REHBER", "Pratik Rehber"),
		p(TraitAdaptive, TraitDepth, "BUTUNCUL_DANIŞMAN", "Bütüncül Danışman"),
		p(TraitBehavioral, TraitSupportive, "MOTIVASYONEL_KOC", "Motivasyonel Koç"),
		p(TraitBehavioral, TraitCognitive, "PROBLEM_COZUCU", "Problem Çözücü"),
		p(TraitBehavioral, TraitAdaptive, "AKSIYON_ODAKLI", "Aksiyon Odaklı Koç"),
		p(TraitBehavioral, TraitDepth, "TRANSFORMASYONEL_KOC", "Transformasyonel Koç"),
		p(TraitDepth, TraitSupportive, "HUMANIST_TERAPIST", "Hümanist Terapist"),
		p(TraitDepth, TraitCognitive, "PSIKODINAMIK_DANIŞMAN", "Psikodinamik Danışman"),
		p(TraitDepth, TraitAdaptive, "VAROLUŞÇU_TERAPIST", "Varoluşçu Terapist"),
		p(TraitDepth, TraitBehavioral, "GEŞTALT_TERAPISTI", "Gestalt Terapisti"),
	}
}

// NewCategoricalStrategy builds a strategy from up to five traits (one per letter),
// a positive weight, the profile table and its fallback.
func NewCategoricalStrategy(traits []string, weight int, profiles []ProfileEntry, fallback Profile) (*CategoricalStrategy, error) {
	if len(traits) < 2 || len(traits) > len(Letters) {
		return nil, fmt.Errorf("categorical scoring needs between 2 and %d traits, got %d", len(Letters), len(traits))
	}
	if weight <= 0 {
		return nil, fmt.Errorf("trait weight must be positive, got %d", weight)
	}
	if fallback.Type == "" {
		return nil, errors.New("fallback profile type is required")
	}
	known := make(map[string]bool, len(traits))
	for _, t := range traits {
		if t == "" || known[t] {
			return nil, fmt.Errorf("trait %q is empty or duplicated", t)
		}
		known[t] = true
	}
	table := make(map[traitPair]Profile, len(profiles))
	for _, e := range profiles {
		if !known[e.Primary] || !known[e.Secondary] {
			return nil, fmt.Errorf("profile %s references unknown trait pair %s/%s", e.Type, e.Primary, e.Secondary)
		}
		if e.Type == "" {
			return nil, fmt.Errorf("profile for %s/%s has no type", e.Primary, e.Secondary)
		}
		table[traitPair{e.Primary, e.Secondary}] = e.Profile
	}
	owned := make([]string, len(traits))
	copy(owned, traits)
	return &CategoricalStrategy{traits: owned, weight: weight, profiles: table, fallback: fallback}, nil
}

// NewDefaultTherapistStrategy returns the five-trait strategy with the built-in table.
func NewDefaultTherapistStrategy() *CategoricalStrategy {
	s, err := NewCategoricalStrategy(DefaultTherapistTraits(), DefaultTraitWeight, DefaultTherapistProfiles(), DefaultTherapistFallback())
	if err != nil {
		panic(err)
	}
	return s
}

func (s *CategoricalStrategy) Name() string { return "categorical" }

// Lookup returns the profile for an ordered trait pair, or the fallback.
func (s *CategoricalStrategy) Lookup(primary, secondary string) Profile {
	if p, ok := s.profiles[traitPair{primary, secondary}]; ok {
		return p
	}
	return s.fallback
}

// Score accumulates trait totals and the A-E distribution, ranks the traits with a
// stable sort so earlier traits win ties, and resolves the profile.
func (s *CategoricalStrategy) Score(answers Answers) Result {
	totals := make(map[string]int, len(s.traits))
	distribution := make(map[string]int, len(Letters))
	for _, l := range Letters {
		distribution[string(l)] = 0
	}

	for _, raw := range answers {
		l, ok := ParseLetter(raw)
		if !ok {
			continue
		}
		distribution[string(l)]++
		if idx := l.Index(); idx < len(s.traits) {
			totals[s.traits[idx]] += s.weight
		}
	}

	ranked := make([]string, len(s.traits))
	copy(ranked, s.traits)
	sort.SliceStable(ranked, func(i, j int) bool {
		return totals[ranked[i]] > totals[ranked[j]]
	})
	primary, secondary := ranked[0], ranked[1]
	profile := s.Lookup(primary, secondary)

	scores := make(Scores, len(s.traits)+4)
	for _, t := range s.traits {
		scores[t] = totals[t]
	}
	scores[KeyAnswerDistribution] = distribution
	scores[KeyPrimaryStyle] = primary
	scores[KeySecondaryStyle] = secondary
	scores[KeyProfileName] = profile.Name

	return Result{ResultType: profile.Type, Scores: scores}
}
