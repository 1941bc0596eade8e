package provider

import "github.com/oncofinder/oncofinder/pkg/pagination"

// Selection is the visitor's current finder state. The With* transitions
// return an updated copy; changing a filter value sends the visitor back to
// page 1.
type Selection struct {
	State     string `json:"state"`
	Specialty string `json:"specialty"`
	County    string `json:"county"`
	Query     string `json:"q"`
	Page      int    `json:"page"`

	// LastTotal is the filtered count seen on the previous render; it only
	// counts when Observed is set.
	LastTotal int  `json:"last_total"`
	Observed  bool `json:"-"`
}

// NewSelection returns the initial state: everything unselected, page 1.
func NewSelection() Selection {
	return Selection{Page: 1}
}

// WithState selects a state. Switching to a different state also clears the
// county and returns to page 1.
func (s Selection) WithState(state string) Selection {
	if state != s.State {
		s.Page = 1
		s.County = ""
	}
	s.State = state
	return s
}

func (s Selection) WithSpecialty(specialty string) Selection {
	if specialty != s.Specialty {
		s.Page = 1
	}
	s.Specialty = specialty
	return s
}

func (s Selection) WithCounty(county string) Selection {
	if county != s.County {
		s.Page = 1
	}
	s.County = county
	return s
}

func (s Selection) WithSearch(query string) Selection {
	if query != s.Query {
		s.Page = 1
	}
	s.Query = query
	return s
}

func (s Selection) WithPage(page int) Selection {
	s.Page = pagination.Normalize(page)
	return s
}

// Reconcile records the filtered count of the latest render. A count that
// differs from the previously observed one sends the visitor back to page 1.
func (s Selection) Reconcile(total int) Selection {
	if s.Observed && s.LastTotal != total {
		s.Page = 1
	}
	s.LastTotal = total
	s.Observed = true
	return s
}

// Browse renders a selection and reconciles it against the result count,
// re-rendering when the reconcile moved the page.
func Browse(cat *Catalog, sel Selection) (Result, Selection) {
	res := Find(cat, sel)
	next := sel.Reconcile(res.Total)
	if pagination.Normalize(next.Page) != res.Page {
		res = Find(cat, next)
	}
	return res, next
}
