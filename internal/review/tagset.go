package review

import (
	"encoding/json"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TagSet is an unordered set of tags. It is serialized as a sorted array.
type TagSet map[string]struct{}

// NewTagSet builds a set from tags, ignoring blanks.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	s.Add(tags...)
	return s
}

func (s TagSet) Add(tags ...string) {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		s[tag] = struct{}{}
	}
}

// Union returns a new set containing the tags of both sets.
func (s TagSet) Union(other TagSet) TagSet {
	result := make(TagSet, len(s)+len(other))
	for tag := range s {
		result[tag] = struct{}{}
	}
	for tag := range other {
		result[tag] = struct{}{}
	}
	return result
}

func (s TagSet) Contains(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *TagSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}

func (s TagSet) MarshalYAML() (interface{}, error) {
	return s.Sorted(), nil
}

func (s *TagSet) UnmarshalYAML(value *yaml.Node) error {
	var tags []string
	if err := value.Decode(&tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}
