package domain

// Label is a named marker attachable to cards. Identity is the (Name, ID)
// pair; the API allows several labels to share a name.
type Label struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

// List is a column on a board
type List struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

// Board holds its lists in board order
type Board struct {
	Name  string `json:"name" yaml:"name"`
	ID    string `json:"id" yaml:"id"`
	Lists []List `json:"lists" yaml:"lists"`
}

// Card is the minimal work item record. Label order is not meaningful.
type Card struct {
	Name   string  `json:"name" yaml:"name"`
	ID     string  `json:"id" yaml:"id"`
	Labels []Label `json:"labels" yaml:"labels"`
}

// LabelNames returns the names of the card's labels in stored order, once
// each.
func (c Card) LabelNames() []string {
	names := make([]string, 0, len(c.Labels))
	seen := make(map[string]bool, len(c.Labels))
	for _, l := range c.Labels {
		if seen[l.Name] {
			continue
		}
		seen[l.Name] = true
		names = append(names, l.Name)
	}
	return names
}
