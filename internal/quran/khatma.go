package quran

// MaxContribution bounds the pages one contribution may add
const MaxContribution = 10 * LastPage

// Khatma is the shared reading cycle derived from all contributed pages
type Khatma struct {
	Number        int64   `json:"number"`
	PagesRead     int64   `json:"pages_read"`
	PagesTotal    int     `json:"pages_total"`
	Percent       float64 `json:"percent"`
	Completed     int64   `json:"completed"`
	TotalPages    int64   `json:"total_pages"`
	Contributions int64   `json:"contributions"`
}

// KhatmaFromPages places total contributed pages on the current cycle
func KhatmaFromPages(total, contributions int64) Khatma {
	if total < 0 {
		total = 0
	}
	completed := total / LastPage
	read := total % LastPage
	return Khatma{
		Number:        completed + 1,
		PagesRead:     read,
		PagesTotal:    LastPage,
		Percent:       float64(read) / LastPage * 100,
		Completed:     completed,
		TotalPages:    total,
		Contributions: contributions,
	}
}
