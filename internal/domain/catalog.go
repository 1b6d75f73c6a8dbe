package domain

// Catalog is the authored content a learner progresses through. It is
// read-only once loaded; call Index before sharing it between goroutines.
type Catalog struct {
	ID           string        `json:"id" yaml:"id" validate:"required"`
	Tasks        []Task        `json:"tasks" yaml:"tasks" validate:"dive"`
	Modules      []Module      `json:"modules" yaml:"modules" validate:"dive"`
	Badges       []Badge       `json:"badges" yaml:"badges" validate:"dive"`
	Certificates []Certificate `json:"certificates,omitempty" yaml:"certificates,omitempty" validate:"dive"`
	Rewards      []Reward      `json:"rewards,omitempty" yaml:"rewards,omitempty" validate:"dive"`

	tasks          map[string]int
	modules        map[string]int
	badges         map[string]int
	certificates   map[string]int
	rewards        map[string]int
	modulesOfBadge map[string][]int
}

// Index builds the lookup tables once; later calls are no-ops.
func (c *Catalog) Index() *Catalog {
	if c.indexed() {
		return c
	}
	c.tasks = make(map[string]int, len(c.Tasks))
	for i, t := range c.Tasks {
		c.tasks[t.ID] = i
	}
	c.modules = make(map[string]int, len(c.Modules))
	c.modulesOfBadge = make(map[string][]int)
	for i, m := range c.Modules {
		c.modules[m.ID] = i
		c.modulesOfBadge[m.BadgeID] = append(c.modulesOfBadge[m.BadgeID], i)
	}
	c.badges = make(map[string]int, len(c.Badges))
	for i, b := range c.Badges {
		c.badges[b.ID] = i
	}
	c.certificates = make(map[string]int, len(c.Certificates))
	for i, cert := range c.Certificates {
		c.certificates[cert.ID] = i
	}
	c.rewards = make(map[string]int, len(c.Rewards))
	for i, r := range c.Rewards {
		c.rewards[r.ID] = i
	}
	return c
}

func (c *Catalog) indexed() bool {
	return c.tasks != nil
}

// Task looks up a task by id.
func (c *Catalog) Task(id string) (Task, bool) {
	if c.indexed() {
		i, ok := c.tasks[id]
		if !ok {
			return Task{}, false
		}
		return c.Tasks[i], true
	}
	for _, t := range c.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Module looks up a module by id.
func (c *Catalog) Module(id string) (Module, bool) {
	if c.indexed() {
		i, ok := c.modules[id]
		if !ok {
			return Module{}, false
		}
		return c.Modules[i], true
	}
	for _, m := range c.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// Badge looks up a badge by id.
func (c *Catalog) Badge(id string) (Badge, bool) {
	if c.indexed() {
		i, ok := c.badges[id]
		if !ok {
			return Badge{}, false
		}
		return c.Badges[i], true
	}
	for _, b := range c.Badges {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// Certificate looks up a certificate by id.
func (c *Catalog) Certificate(id string) (Certificate, bool) {
	if c.indexed() {
		i, ok := c.certificates[id]
		if !ok {
			return Certificate{}, false
		}
		return c.Certificates[i], true
	}
	for _, cert := range c.Certificates {
		if cert.ID == id {
			return cert, true
		}
	}
	return Certificate{}, false
}

// Reward looks up a reward by id.
func (c *Catalog) Reward(id string) (Reward, bool) {
	if c.indexed() {
		i, ok := c.rewards[id]
		if !ok {
			return Reward{}, false
		}
		return c.Rewards[i], true
	}
	for _, r := range c.Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}

// ModulesOfBadge returns the modules whose BadgeID equals badgeID, in
// catalog order.
func (c *Catalog) ModulesOfBadge(badgeID string) []Module {
	var out []Module
	if c.indexed() {
		for _, i := range c.modulesOfBadge[badgeID] {
			out = append(out, c.Modules[i])
		}
		return out
	}
	for _, m := range c.Modules {
		if m.BadgeID == badgeID {
			out = append(out, m)
		}
	}
	return out
}
