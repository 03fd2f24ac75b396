// Package curriculum holds the fixed 25-week courtship syllabus.
package curriculum

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"courtline/internal/domain"
)

//go:embed topics.yml
var topicsYAML []byte

// Topic is one curriculum unit.
type Topic struct {
	Week     int    `json:"week" yaml:"week"`
	Title    string `json:"title" yaml:"title"`
	Leader   string `json:"leader" yaml:"leader" enum:"couple,groom,bride,supervisor"`
	Duration string `json:"duration,omitempty" yaml:"duration"`
}

var topics []Topic
var byWeek map[int]Topic

func init() {
	var doc struct {
		Topics []Topic `yaml:"topics"`
	}
	if err := yaml.Unmarshal(topicsYAML, &doc); err != nil {
		panic(fmt.Sprintf("curriculum: %v", err))
	}
	if len(doc.Topics) != domain.CourtshipWeeks {
		panic(fmt.Sprintf("curriculum: expected %d topics, got %d", domain.CourtshipWeeks, len(doc.Topics)))
	}
	sort.Slice(doc.Topics, func(i, j int) bool { return doc.Topics[i].Week < doc.Topics[j].Week })
	topics = doc.Topics
	byWeek = make(map[int]Topic, len(topics))
	for _, t := range topics {
		byWeek[t.Week] = t
	}
}

// All returns the full syllabus in week order.
func All() []Topic {
	out := make([]Topic, len(topics))
	copy(out, topics)
	return out
}

// ByWeek returns the topic for a week.
func ByWeek(week int) (Topic, bool) {
	t, ok := byWeek[week]
	return t, ok
}
