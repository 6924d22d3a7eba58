package catalog

// Difficulty is the tier of a topic.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Topic is the static metadata of a subject area. Completion state is not
// part of the catalog; it comes from the progress store.
type Topic struct {
	ID          int        `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description"`
	Icon        string     `yaml:"icon" json:"icon"`
	Difficulty  Difficulty `yaml:"difficulty" json:"difficulty"`
	Tasks       int        `yaml:"tasks" json:"tasks"`
}

// Section is a single unit of theory under a topic.
type Section struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Content  string   `yaml:"content" json:"content"`
	Examples []string `yaml:"examples,omitempty" json:"examples,omitempty"`
}

// file is the on-disk layout of a catalog data file.
type file struct {
	Topics []Topic           `yaml:"topics" json:"topics"`
	Theory map[int][]Section `yaml:"theory" json:"theory"`
}
