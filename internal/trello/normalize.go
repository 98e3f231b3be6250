package trello

import "github.com/lherron/ttags/internal/domain"

// NormalizeBoards keeps name, id and the {name, id} of every list.
// Everything else on the board and list records is dropped.
func NormalizeBoards(raw []RawBoard) []domain.Board {
	boards := make([]domain.Board, 0, len(raw))
	for _, b := range raw {
		lists := make([]domain.List, 0, len(b.Lists))
		for _, l := range b.Lists {
			lists = append(lists, domain.List{Name: l.Name, ID: l.ID})
		}
		boards = append(boards, domain.Board{
			Name:  b.Name,
			ID:    b.ID,
			Lists: lists,
		})
	}
	return boards
}

// ExtractLists returns a copy of the board's lists in board order.
func ExtractLists(board domain.Board) []domain.List {
	lists := make([]domain.List, 0, len(board.Lists))
	for _, l := range board.Lists {
		lists = append(lists, domain.List{Name: l.Name, ID: l.ID})
	}
	return lists
}

// NormalizeCards keeps name, id and the {name, id} of every label.
func NormalizeCards(raw []RawCard) []domain.Card {
	cards := make([]domain.Card, 0, len(raw))
	for _, c := range raw {
		labels := make([]domain.Label, 0, len(c.Labels))
		for _, l := range c.Labels {
			labels = append(labels, domain.Label{Name: l.Name, ID: l.ID})
		}
		cards = append(cards, domain.Card{
			Name:   c.Name,
			ID:     c.ID,
			Labels: labels,
		})
	}
	return cards
}
