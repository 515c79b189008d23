package receipt

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"billpos/internal/model"

	"github.com/google/uuid"
)

const (
	modifierPrefix = "- "
	messagePrefix  = "* "
	voidPrefix     = "VOID "
	referenceLabel = "TABLE"
)

// KitchenInput is everything needed to render prep tickets for a bill.
// Items must carry all their modifier items, voided ones included.
type KitchenInput struct {
	Logs        []model.BillItemPrintLog
	Items       map[uuid.UUID]*model.BillItem
	Printers    map[uuid.UUID]model.Printer
	PriceGroups map[uuid.UUID]model.PriceGroup
	Reference   string
	PrepTime    time.Time
	Now         time.Time
}

// Job is one prep ticket: the logs of one price group bound for one printer.
type Job struct {
	PrinterID    uuid.UUID
	PriceGroupID uuid.UUID
	LogIDs       []uuid.UUID
	Commands     []Command

	printer    model.Printer
	priceGroup model.PriceGroup
	entries    []entry
	reference  string
	prepTime   time.Time
	now        time.Time
}

type entry struct {
	log  model.BillItemPrintLog
	item *model.BillItem
}

// FirstCreated is the creation time of the oldest log on the ticket.
func (j Job) FirstCreated() time.Time {
	var first time.Time
	for i, e := range j.entries {
		if i == 0 || e.log.CreatedAt.Before(first) {
			first = e.log.CreatedAt
		}
	}
	return first
}

// PrinterName is the display name of the target printer.
func (j Job) PrinterName() string { return j.printer.Name }

// Restrict re-renders the ticket with only the logs in keep. A job left with no
// logs has no commands.
func (j Job) Restrict(keep map[uuid.UUID]bool) Job {
	out := j
	out.entries = nil
	for _, e := range j.entries {
		if keep[e.log.ID] {
			out.entries = append(out.entries, e)
		}
	}
	out.render()
	return out
}

// ComposeKitchen groups pending print logs into one ticket per price group and
// printer. Logs whose item or printer is unknown are left out; callers are
// expected to resolve those before composing. Tickets are ordered by price
// group name, then printer name.
func ComposeKitchen(in KitchenInput) []Job {
	logs := make([]model.BillItemPrintLog, 0, len(in.Logs))
	for _, l := range in.Logs {
		if l.Status == model.PrintPending {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(a, b int) bool {
		if !logs[a].CreatedAt.Equal(logs[b].CreatedAt) {
			return logs[a].CreatedAt.Before(logs[b].CreatedAt)
		}
		return logs[a].ID.String() < logs[b].ID.String()
	})

	type jobKey struct{ priceGroup, printer uuid.UUID }
	jobs := map[jobKey]*Job{}
	var order []jobKey
	for _, l := range logs {
		item, ok := in.Items[l.BillItemID]
		if !ok {
			continue
		}
		printer, ok := in.Printers[l.PrinterID]
		if !ok {
			continue
		}
		k := jobKey{item.PriceGroupID, l.PrinterID}
		j, ok := jobs[k]
		if !ok {
			pg, found := in.PriceGroups[item.PriceGroupID]
			if !found {
				pg = model.PriceGroup{ID: item.PriceGroupID, Name: item.PriceGroupName}
			}
			j = &Job{
				PrinterID:    l.PrinterID,
				PriceGroupID: item.PriceGroupID,
				printer:      printer,
				priceGroup:   pg,
				reference:    in.Reference,
				prepTime:     in.PrepTime,
				now:          in.Now,
			}
			jobs[k] = j
			order = append(order, k)
		}
		j.entries = append(j.entries, entry{log: l, item: item})
	}

	out := make([]Job, 0, len(order))
	for _, k := range order {
		j := jobs[k]
		j.render()
		out = append(out, *j)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].priceGroup.Name != out[b].priceGroup.Name {
			return out[a].priceGroup.Name < out[b].priceGroup.Name
		}
		return out[a].printer.Name < out[b].printer.Name
	})
	return out
}

// line is a consolidated ticket line: identical items rung on together.
type line struct {
	item     *model.BillItem
	isVoid   bool
	quantity int
}

func consolidationKey(e entry) string {
	ids := make([]string, 0, len(e.item.ModifierItems))
	for _, m := range e.item.ModifierItems {
		ids = append(ids, m.ModifierItemID.String())
	}
	sort.Strings(ids)
	return strings.Join([]string{
		e.item.ItemID.String(),
		strings.Join(ids, ","),
		e.item.PrintMessageText(),
		strconv.FormatBool(e.log.Type == model.PrintTypeVoid),
	}, "|")
}

func (j *Job) render() {
	j.LogIDs = make([]uuid.UUID, 0, len(j.entries))
	for _, e := range j.entries {
		j.LogIDs = append(j.LogIDs, e.log.ID)
	}
	if len(j.entries) == 0 {
		j.Commands = nil
		return
	}

	lines := map[string]*line{}
	var seen []*line
	for _, e := range j.entries {
		k := consolidationKey(e)
		if l, ok := lines[k]; ok {
			l.quantity++
			continue
		}
		l := &line{item: e.item, isVoid: e.log.Type == model.PrintTypeVoid, quantity: 1}
		lines[k] = l
		seen = append(seen, l)
	}
	sort.SliceStable(seen, func(a, b int) bool {
		return seen[a].item.CategoryName < seen[b].item.CategoryName
	})

	w := j.printer.Width()
	c := []Command{
		text(alignCenter(strings.ToUpper(j.priceGroup.Label()), w)),
		text(alignCenter("IN: "+j.now.Format("15:04"), w)),
		text(alignCenter("PREP: "+j.prepTime.Format("15:04"), w)),
		text(alignCenter(referenceLabel+": "+j.reference, w)),
		starDivider(w),
	}
	for _, l := range seen {
		name := l.item.ItemShortName
		if l.isVoid {
			name = voidPrefix + capitalize(name)
		}
		c = append(c, text(alignLeftRight(name, strconv.Itoa(l.quantity), w)))
		for _, m := range l.item.ModifierItems {
			c = append(c, text(truncate(modifierPrefix+capitalize(m.ModifierItemShortName), w)))
		}
		if msg := l.item.PrintMessageText(); msg != "" {
			c = append(c, text(truncate(messagePrefix+msg, w)))
		}
	}
	c = append(c, feed(3), cut())
	j.Commands = c
}
