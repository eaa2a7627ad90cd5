package billing

type Invoice struct {
	lines []int
	total int
}

func NewInvoice() *Invoice { return &Invoice{} }

func (i *Invoice) Add(amount int) {
	i.lines = append(i.lines, amount)
	i.total = i.total + amount
}

func (i *Invoice) Total() int { return i.total }
