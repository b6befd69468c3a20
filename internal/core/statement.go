package core

// StatementItem is one amount due in a month.
type StatementItem struct {
	ExpenseID         int64
	Description       string
	Classification    Classification
	DueDate           Date
	Amount            Money
	InstallmentNumber int // installments only
	InstallmentCount  int // installments only
	CategoryID        int64
	Status            bool
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID int64
	Name       string
	Amount     Money
}

// MonthStatement lists everything due in a specific year+month.
type MonthStatement struct {
	Year       int
	Month      int // 1-12
	Items      []StatementItem
	Total      Money
	ByCategory []CategoryAmount
}

// Summarize fills Total and ByCategory from Items. names maps category ids
// to display names; unknown ids keep an empty name.
func (s *MonthStatement) Summarize(names map[int64]string) {
	s.Total = Money{}
	s.ByCategory = s.ByCategory[:0]
	index := make(map[int64]int)
	for _, it := range s.Items {
		s.Total.Cents += it.Amount.Cents
		i, ok := index[it.CategoryID]
		if !ok {
			i = len(s.ByCategory)
			index[it.CategoryID] = i
			s.ByCategory = append(s.ByCategory, CategoryAmount{CategoryID: it.CategoryID, Name: names[it.CategoryID]})
		}
		s.ByCategory[i].Amount.Cents += it.Amount.Cents
	}
}
