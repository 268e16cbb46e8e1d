package web

import (
	"fmt"
	"sync"
	"time"

	"racecal/internal/filter"
	"racecal/internal/model"
	"racecal/internal/view"
)

// BoardPresenter is the Presentation Adapter: it turns each recompute's
// outputs into the JSON shape the board page renders. It holds the
// latest rendered view; renderMu serializes a recompute with reading
// its result so each request observes one consistent render.
type BoardPresenter struct {
	loc *time.Location

	renderMu sync.Mutex

	mu      sync.Mutex
	items   []itemDTO
	summary filter.Summary
	sumText string
	notice  string
}

// NewBoardPresenter creates a presenter formatting timestamps in the
// given display timezone.
func NewBoardPresenter(loc *time.Location) *BoardPresenter {
	if loc == nil {
		loc = time.Local
	}
	return &BoardPresenter{loc: loc}
}

// itemDTO is one rendered row of the board.
type itemDTO struct {
	Name                 string `json:"name"`
	RaceDate             string `json:"race_date"`
	RegistrationDeadline string `json:"registration_deadline"`
	Location             string `json:"location"`
	RegistrationOpen     bool   `json:"registration_open"`
	StatusLabel          string `json:"status_label"`
	Website              string `json:"website"`
	Source               string `json:"source"`
}

// viewResponse is the JSON response shape for /api/view.
type viewResponse struct {
	State       string         `json:"state"`
	GeneratedAt string         `json:"generated_at,omitempty"`
	Summary     filter.Summary `json:"summary"`
	SummaryText string         `json:"summary_text"`
	Notice      string         `json:"notice,omitempty"`
	Locations   []string       `json:"locations"`
	Items       []itemDTO      `json:"items"`
}

// RenderList renders the filtered rows; an empty subset renders the
// empty-state notice instead of a bare empty list.
func (p *BoardPresenter) RenderList(events []model.Event) {
	items := make([]itemDTO, 0, len(events))
	for _, e := range events {
		items = append(items, itemDTO{
			Name:                 e.Name,
			RaceDate:             displayDate(e.RaceDate),
			RegistrationDeadline: displayDate(e.RegistrationDeadline),
			Location:             e.Location,
			RegistrationOpen:     e.RegistrationOpen,
			StatusLabel:          statusLabel(e.RegistrationOpen),
			Website:              e.Website,
			Source:               e.Source,
		})
	}

	p.mu.Lock()
	p.items = items
	if len(items) == 0 {
		p.notice = view.EmptyNotice
	} else {
		p.notice = ""
	}
	p.mu.Unlock()
}

// RenderSummary renders the count line.
func (p *BoardPresenter) RenderSummary(sum filter.Summary) {
	p.mu.Lock()
	p.summary = sum
	p.sumText = fmt.Sprintf("共 %d 場賽事，目前顯示 %d 場，%d 場報名中", sum.Total, sum.Visible, sum.Open)
	p.mu.Unlock()
}

// RenderLoadFailure replaces the whole board with the fixed failure
// message.
func (p *BoardPresenter) RenderLoadFailure(message string) {
	p.mu.Lock()
	p.items = nil
	p.summary = filter.Summary{}
	p.sumText = ""
	p.notice = message
	p.mu.Unlock()
}

// buildView assembles the latest render together with the
// synchronizer's option set and lifecycle state.
func (p *BoardPresenter) buildView(s *view.Synchronizer) viewResponse {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp := viewResponse{
		State:       s.State().String(),
		GeneratedAt: p.displayTimestamp(s.GeneratedAt()),
		Summary:     p.summary,
		SummaryText: p.sumText,
		Notice:      p.notice,
		Locations:   s.Locations(),
		Items:       p.items,
	}
	if resp.Items == nil {
		resp.Items = []itemDTO{}
	}
	if resp.Locations == nil {
		resp.Locations = []string{}
	}
	return resp
}

// displayDate renders a valid date in the board's fixed numeric form
// and falls back to the original feed text verbatim.
func displayDate(d model.Date) string {
	if !d.Valid {
		return d.Raw
	}
	return d.Time.Format("2006/01/02")
}

func statusLabel(open bool) string {
	if open {
		return "報名中"
	}
	return "已截止"
}

// displayTimestamp re-renders the feed's generatedAt stamp in the
// display timezone; anything unparseable passes through unchanged.
func (p *BoardPresenter) displayTimestamp(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.In(p.loc).Format("2006/01/02 15:04")
}
