package http

import (
	"operaciones/internal/controller"
	"operaciones/internal/core"
)

type tableView struct {
	Search        string
	Rows          []rowView
	Error         string
	ConfirmDelete string
}

type rowView struct {
	ID             int64
	Identification string
	Name           string
	CreditType     string
	Amount         string
	StartDate      string
	TermMonths     int
	EndDate        string
	Approved       bool
	RegisteredAt   string
}

func newTableView(snap controller.ListSnapshot) tableView {
	v := tableView{
		Search:        snap.Search,
		Rows:          make([]rowView, 0, len(snap.Items)),
		ConfirmDelete: controller.MsgConfirmDelete,
	}
	if snap.Err != nil {
		v.Error = controller.MsgLoadFailed
	}
	for _, op := range snap.Items {
		end := op.EndDate
		if end.IsZero() && !op.StartDate.IsZero() {
			end = core.Date{Time: core.ComputeEndDate(op.StartDate.Time, op.TermMonths)}
		}
		v.Rows = append(v.Rows, rowView{
			ID:             op.ID,
			Identification: op.Identification,
			Name:           op.Name,
			CreditType:     op.CreditType,
			Amount:         core.FormatAmount(op.Amount),
			StartDate:      op.StartDate.Display(),
			TermMonths:     op.TermMonths,
			EndDate:        end.Display(),
			Approved:       op.Approved,
			RegisteredAt:   registeredText(op.RegisteredAt),
		})
	}
	return v
}

func registeredText(d core.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format(registeredLayout)
}

const registeredLayout = "02/01/2006 15:04"

type formView struct {
	Draft         core.Draft
	CreditTypes   []core.CreditType
	Errors        map[string]string
	Error         string
	EndDate       string
	ConfirmCancel string
}

func newFormView(form *controller.FormController, errMsg string) formView {
	v := formView{
		Draft:         form.Draft(),
		CreditTypes:   form.CreditTypes(),
		Errors:        form.FieldErrors(),
		Error:         errMsg,
		EndDate:       endDateText(form.EndDate()),
		ConfirmCancel: controller.MsgConfirmCancel,
	}
	return v
}

func endDateText(d core.Date, ok bool) string {
	if !ok {
		return "-"
	}
	return d.Display()
}

type chartView struct {
	Search string
	Bars   []barView
	Total  int
}

type barView struct {
	Label string
	Count int
	Width int
}

// newChartView scales bars against the busiest month.
func newChartView(search string, series core.MonthlySeries) chartView {
	v := chartView{Search: search, Total: series.Total()}
	maxCount := series.Max()
	for i, label := range series.Labels {
		count := series.Counts[i]
		width := 0
		if maxCount > 0 {
			width = (count*100 + maxCount/2) / maxCount
			if width < 2 && count > 0 {
				width = 2
			}
		}
		v.Bars = append(v.Bars, barView{Label: label, Count: count, Width: width})
	}
	return v
}
