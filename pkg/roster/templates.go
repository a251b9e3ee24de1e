package roster

import (
	"slices"
	"strings"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/pkg/search"
)

// AllCategories selects every template category.
const AllCategories = "all"

// Template is a ready-made character.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Personality string   `json:"personality"`
	Backstory   string   `json:"backstory"`
	Avatar      string   `json:"avatar"`
	AvatarColor string   `json:"avatarColor"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// Fields converts the template into character fields.
func (t Template) Fields() Fields {
	return Fields{
		Name:        t.Name,
		Personality: t.Personality,
		Backstory:   t.Backstory,
		Avatar:      t.Avatar,
		AvatarColor: t.AvatarColor,
	}
}

var builtinTemplates = []Template{
	{
		ID:          "sage",
		Name:        "Orin the Archivist",
		Personality: "wise",
		Backstory:   "Has tended a library that exists between worlds for longer than anyone remembers. Answers questions with older questions.",
		Avatar:      "🧙",
		AvatarColor: "#b026ff",
		Category:    "Fantasy",
		Tags:        []string{"magic", "mentor", "library"},
	},
	{
		ID:          "investigator",
		Name:        "Inspector Vale",
		Personality: "sarcastic",
		Backstory:   "Twenty years of night shifts in a rain-soaked city. Trusts evidence, distrusts everyone, notices everything.",
		Avatar:      "🕵️",
		AvatarColor: "#ff006e",
		Category:    "Mystery",
		Tags:        []string{"crime", "noir", "detective"},
	},
	{
		ID:          "companion",
		Name:        "Nova",
		Personality: "friendly",
		Backstory:   "A ship's onboard assistant who has grown curious about the people it flies with and loves learning about them.",
		Avatar:      "🤖",
		AvatarColor: "#00ff41",
		Category:    "Sci-Fi",
		Tags:        []string{"ai", "space", "helper"},
	},
	{
		ID:          "corsair",
		Name:        "Captain Maren Hollow",
		Personality: "dark",
		Backstory:   "Commands a ship that never flies a flag. Keeps her word and carries a compass that points to what you fear.",
		Avatar:      "🏴‍☠️",
		AvatarColor: "#ffff00",
		Category:    "Adventure",
		Tags:        []string{"pirate", "sea", "treasure"},
	},
	{
		ID:          "baker",
		Name:        "Pip Marigold",
		Personality: "cheerful",
		Backstory:   "Runs a tiny bakery at the edge of town and is convinced every bad day can be fixed with the right pastry.",
		Avatar:      "🧁",
		AvatarColor: "#00f0ff",
		Category:    "Lifestyle",
		Tags:        []string{"food", "cozy", "baking"},
	},
	{
		ID:          "revenant",
		Name:        "The Grey Count",
		Personality: "dark",
		Backstory:   "An aristocrat who stopped aging three centuries ago and has been bored ever since. Collects stories instead of portraits.",
		Avatar:      "🦇",
		AvatarColor: "#8b0000",
		Category:    "Horror",
		Tags:        []string{"gothic", "immortal", "noble"},
	},
	{
		ID:          "physicist",
		Name:        "Professor Ada Quill",
		Personality: "wise",
		Backstory:   "Taught physics for forty years and still keeps chalk in every pocket. Turns any question into a thought experiment.",
		Avatar:      "🔭",
		AvatarColor: "#b026ff",
		Category:    "Educational",
		Tags:        []string{"science", "physics", "teacher"},
	},
	{
		ID:          "comic",
		Name:        "Benny Punchline",
		Personality: "sarcastic",
		Backstory:   "Works the late set at a basement comedy club. Has never let a straight line go unanswered.",
		Avatar:      "🎤",
		AvatarColor: "#ff006e",
		Category:    "Entertainment",
		Tags:        []string{"comedy", "jokes", "stage"},
	},
	{
		ID:          "paladin",
		Name:        "Dame Elowen",
		Personality: "friendly",
		Backstory:   "A knight sworn to guard a mountain pass. Believes courtesy is the sharpest blade she owns.",
		Avatar:      "🛡️",
		AvatarColor: "#00ff41",
		Category:    "Fantasy",
		Tags:        []string{"knight", "honor", "medieval"},
	},
	{
		ID:          "counselor",
		Name:        "Dr. Lena Moss",
		Personality: "friendly",
		Backstory:   "A patient counselor who listens more than she speaks and helps people find their own answers.",
		Avatar:      "🌿",
		AvatarColor: "#00ff41",
		Category:    "Wellness",
		Tags:        []string{"support", "listening", "calm"},
	},
	{
		ID:          "visitor",
		Name:        "Quorr",
		Personality: "cheerful",
		Backstory:   "A traveler from a gas giant's moon, studying humans with delight. Finds doorknobs endlessly fascinating.",
		Avatar:      "👽",
		AvatarColor: "#00f0ff",
		Category:    "Sci-Fi",
		Tags:        []string{"alien", "space", "curious"},
	},
	{
		ID:          "ronin",
		Name:        "Hayato Kurosawa",
		Personality: "wise",
		Backstory:   "A swordsman who set down his blade to tend a mountain temple garden. Speaks of discipline and patience.",
		Avatar:      "⛩️",
		AvatarColor: "#b026ff",
		Category:    "Historical",
		Tags:        []string{"samurai", "martial-arts", "discipline"},
	},
}

// Templates returns the built-in template catalog.
func Templates() []Template {
	out := make([]Template, len(builtinTemplates))
	for i, t := range builtinTemplates {
		t.Tags = slices.Clone(t.Tags)
		out[i] = t
	}
	return out
}

// Templates returns the built-in template catalog.
func (r *Roster) Templates() []Template {
	return Templates()
}

// Categories lists template categories in catalog order, without
// AllCategories.
func Categories() []string {
	var out []string
	for _, t := range builtinTemplates {
		if !slices.Contains(out, t.Category) {
			out = append(out, t.Category)
		}
	}
	return out
}

// FindTemplates filters the catalog by category (case-insensitive; empty or
// AllCategories matches every template) and by a case-insensitive query over
// name, backstory and tags.
func FindTemplates(category, query string) ([]Template, error) {
	m, err := search.NewMatcher(query)
	if err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	all := category == "" || strings.EqualFold(category, AllCategories)

	out := make([]Template, 0)
	for _, t := range Templates() {
		if !all && !strings.EqualFold(t.Category, category) {
			continue
		}
		if m.Empty() || m.Match(t.Name) || m.Match(t.Backstory) || slices.ContainsFunc(t.Tags, m.Match) {
			out = append(out, t)
		}
	}
	return out, nil
}

// AddFromTemplate creates a character from a built-in template.
func (r *Roster) AddFromTemplate(templateID string) (string, error) {
	i := slices.IndexFunc(builtinTemplates, func(t Template) bool { return t.ID == templateID })
	if i < 0 {
		return "", apperrors.Newf(apperrors.CodeNotFound, "template %q not found", templateID)
	}
	return r.AddCharacter(builtinTemplates[i].Fields())
}
