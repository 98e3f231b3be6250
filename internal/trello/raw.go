package trello

// RawLabel is a label record as returned inside a card payload
type RawLabel struct {
	ID      string `json:"id"`
	IDBoard string `json:"idBoard,omitempty"`
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
}

// RawList is a list stub nested in a board payload
type RawList struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Closed  bool    `json:"closed,omitempty"`
	IDBoard string  `json:"idBoard,omitempty"`
	Pos     float64 `json:"pos,omitempty"`
}

// RawBoard is a board record from GET /members/me/boards?lists=all
type RawBoard struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Desc   string    `json:"desc,omitempty"`
	Closed bool      `json:"closed,omitempty"`
	URL    string    `json:"url,omitempty"`
	Lists  []RawList `json:"lists"`
}

// RawCard is a card record from GET /lists/{id}/cards
type RawCard struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Desc     string     `json:"desc,omitempty"`
	IDList   string     `json:"idList,omitempty"`
	IDLabels []string   `json:"idLabels,omitempty"`
	Labels   []RawLabel `json:"labels"`
}
