// Package catalog loads the static content the engine rewards: tasks and skins.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// DefaultTaskReward is credited for tasks that do not declare a reward.
const DefaultTaskReward = 500

type SkinType string

const (
	SkinStars    SkinType = "stars"
	SkinReferral SkinType = "referral"
)

type Task struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	URL    string `yaml:"url"`
	Reward int64  `yaml:"reward"`
}

type Skin struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Type              SkinType `yaml:"type"`
	Price             int64    `yaml:"price"`
	RequiredReferrals int      `yaml:"required_referrals"`
}

// Catalog is an immutable lookup of tasks and skins.
type Catalog struct {
	tasks     map[string]Task
	skins     map[string]Skin
	taskOrder []string
	skinOrder []string
}

type document struct {
	Tasks []Task `yaml:"tasks"`
	Skins []Skin `yaml:"skins"`
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from path, falling back to the embedded one when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	c := &Catalog{
		tasks: make(map[string]Task, len(doc.Tasks)),
		skins: make(map[string]Skin, len(doc.Skins)),
	}

	for _, t := range doc.Tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("catalog: task without id")
		}
		if _, dup := c.tasks[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate task %q", t.ID)
		}
		if t.Reward <= 0 {
			t.Reward = DefaultTaskReward
		}
		c.tasks[t.ID] = t
		c.taskOrder = append(c.taskOrder, t.ID)
	}

	for _, s := range doc.Skins {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: skin without id")
		}
		if _, dup := c.skins[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate skin %q", s.ID)
		}
		switch s.Type {
		case SkinStars, SkinReferral:
		default:
			return nil, fmt.Errorf("catalog: skin %q has unknown type %q", s.ID, s.Type)
		}
		c.skins[s.ID] = s
		c.skinOrder = append(c.skinOrder, s.ID)
	}

	return c, nil
}

func (c *Catalog) Task(id string) (Task, bool) {
	t, ok := c.tasks[id]
	return t, ok
}

func (c *Catalog) Skin(id string) (Skin, bool) {
	s, ok := c.skins[id]
	return s, ok
}

// Tasks returns every task in declaration order.
func (c *Catalog) Tasks() []Task {
	out := make([]Task, 0, len(c.taskOrder))
	for _, id := range c.taskOrder {
		out = append(out, c.tasks[id])
	}
	return out
}

// Skins returns every skin in declaration order.
func (c *Catalog) Skins() []Skin {
	out := make([]Skin, 0, len(c.skinOrder))
	for _, id := range c.skinOrder {
		out = append(out, c.skins[id])
	}
	return out
}
