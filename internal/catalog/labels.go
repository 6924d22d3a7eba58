package catalog

import (
	"golang.org/x/text/language"
)

// Languages with difficulty labels. The first entry is the fallback.
var labelLanguages = []language.Tag{
	language.Russian,
	language.English,
}

var labelMatcher = language.NewMatcher(labelLanguages)

var difficultyLabels = []map[Difficulty]string{
	{
		DifficultyEasy:   "Базовый",
		DifficultyMedium: "Средний",
		DifficultyHard:   "Сложный",
	},
	{
		DifficultyEasy:   "Basic",
		DifficultyMedium: "Intermediate",
		DifficultyHard:   "Advanced",
	},
}

// DifficultyLabel returns the human-readable name of d in the closest
// supported language. Unknown tiers are returned verbatim.
func DifficultyLabel(d Difficulty, lang language.Tag) string {
	_, i, _ := labelMatcher.Match(lang)
	if label, ok := difficultyLabels[i][d]; ok {
		return label
	}
	return string(d)
}

// MatchLanguage picks the supported label language for an Accept-Language
// header value. Empty or malformed headers yield the fallback language.
func MatchLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return labelLanguages[0]
	}
	_, i, _ := labelMatcher.Match(tags...)
	return labelLanguages[i]
}
