// Package catalog holds the read-only table of topics and their theory
// sections. A catalog is built once from a data file and never mutated.
package catalog

import (
	"errors"
	"fmt"
	"slices"
)

// Catalog is an immutable, ordered set of topics with their sections.
type Catalog struct {
	topics   []Topic
	index    map[int]int
	sections map[int][]Section
}

// New builds a catalog from topics and a topic-id-to-sections mapping.
// Topics are ordered by id.
func New(topics []Topic, theory map[int][]Section) (*Catalog, error) {
	c := &Catalog{
		topics:   make([]Topic, 0, len(topics)),
		index:    make(map[int]int, len(topics)),
		sections: make(map[int][]Section, len(theory)),
	}

	var errs []error
	for _, t := range topics {
		if _, dup := c.index[t.ID]; dup {
			errs = append(errs, fmt.Errorf("topic %d: duplicate id", t.ID))
			continue
		}
		if t.Tasks < 0 {
			errs = append(errs, fmt.Errorf("topic %d: tasks must be non-negative, got %d", t.ID, t.Tasks))
		}
		if !t.Difficulty.Valid() {
			errs = append(errs, fmt.Errorf("topic %d: unknown difficulty %q", t.ID, t.Difficulty))
		}
		c.index[t.ID] = len(c.topics)
		c.topics = append(c.topics, t)
	}

	for topicID, secs := range theory {
		if _, ok := c.index[topicID]; !ok {
			errs = append(errs, fmt.Errorf("theory for unknown topic %d", topicID))
			continue
		}
		seen := make(map[string]bool, len(secs))
		for _, s := range secs {
			if s.ID == "" {
				errs = append(errs, fmt.Errorf("topic %d: section with empty id", topicID))
				continue
			}
			if seen[s.ID] {
				errs = append(errs, fmt.Errorf("topic %d: duplicate section id %q", topicID, s.ID))
			}
			seen[s.ID] = true
		}
		c.sections[topicID] = slices.Clone(secs)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	slices.SortFunc(c.topics, func(a, b Topic) int { return a.ID - b.ID })
	for i, t := range c.topics {
		c.index[t.ID] = i
	}

	return c, nil
}

// ListTopics returns all topics ordered by id.
func (c *Catalog) ListTopics() []Topic {
	return slices.Clone(c.topics)
}

// Topic returns a topic by id.
func (c *Catalog) Topic(id int) (Topic, bool) {
	i, ok := c.index[id]
	if !ok {
		return Topic{}, false
	}
	return c.topics[i], true
}

// SectionsFor returns the ordered theory sections of a topic, or an empty
// slice if the topic is unknown or has no theory.
func (c *Catalog) SectionsFor(topicID int) []Section {
	secs := c.sections[topicID]
	out := make([]Section, len(secs))
	for i, s := range secs {
		s.Examples = slices.Clone(s.Examples)
		out[i] = s
	}
	return out
}

// Len returns the number of topics.
func (c *Catalog) Len() int {
	return len(c.topics)
}
