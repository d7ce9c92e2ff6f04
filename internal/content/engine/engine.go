// Package engine applies admin edits to an in-memory content document.
// Operations never persist; the caller saves the document afterwards.
package engine

import (
	"strings"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
)

var registry = map[content.Kind]kindOps{
	content.KindCampaign: register[content.Campaign](collectionSpec[content.Campaign]{
		kind: content.KindCampaign,
		schema: schema{
			ints:       []string{"originalPrice", "salePrice"},
			checkboxes: []string{"featured", "active"},
		},
		items:    func(d *content.Document) *[]content.Campaign { return &d.Campaigns },
		validate: validateCampaign,
	}, false),
	content.KindNews: register[content.NewsItem](collectionSpec[content.NewsItem]{
		kind: content.KindNews,
		schema: schema{
			checkboxes: []string{"featured"},
			readOnly:   []string{"publishedAt"},
		},
		items: func(d *content.Document) *[]content.NewsItem { return &d.News },
		prepare: func(n *content.NewsItem, now time.Time) {
			n.PublishedAt = content.Timestamp(now)
		},
	}, true),
	content.KindStaff: register[content.StaffMember](collectionSpec[content.StaffMember]{
		kind: content.KindStaff,
		schema: schema{
			ints:   []string{"experience"},
			floats: []string{"rating"},
		},
		items: func(d *content.Document) *[]content.StaffMember { return &d.Staff },
		prepare: func(s *content.StaffMember, _ time.Time) {
			if s.Reviews == nil {
				s.Reviews = []string{}
			}
		},
		validate: validateStaff,
	}, false),
	content.KindService: register[content.Service](collectionSpec[content.Service]{
		kind: content.KindService,
		schema: schema{
			ints: []string{"price"},
		},
		items:    func(d *content.Document) *[]content.Service { return &d.Services },
		validate: validateService,
	}, false),
}

// Engine applies edits. The clock stamps news publication times.
type Engine struct {
	now func() time.Time
}

func New() *Engine { return &Engine{now: time.Now} }

// WithClock overrides the clock (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func lookup(kind content.Kind) (kindOps, error) {
	ops, ok := registry[kind]
	if !ok {
		return kindOps{}, &content.ValidationError{Reason: "unknown kind", Fields: map[string]string{"kind": string(kind)}}
	}
	return ops, nil
}

// Checkboxes lists the boolean form fields of kind; a form omits unchecked boxes.
func Checkboxes(kind content.Kind) []string {
	ops, ok := registry[kind]
	if !ok {
		return nil
	}
	return append([]string(nil), ops.schema.checkboxes...)
}

// Create appends a new entity with id max+1.
func (e *Engine) Create(doc *content.Document, kind content.Kind, f Fields) (content.Entity, error) {
	ops, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	return ops.create(doc, f, e.now())
}

// Update merges the present fields onto the entity with the given id.
func (e *Engine) Update(doc *content.Document, kind content.Kind, id int, f Fields) (content.Entity, error) {
	ops, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	return ops.update(doc, id, f)
}

// Delete removes an entity. Only news can be deleted; deleting a missing id is a no-op.
func (e *Engine) Delete(doc *content.Document, kind content.Kind, id int) error {
	ops, err := lookup(kind)
	if err != nil {
		return err
	}
	if !ops.deletable {
		return content.ErrUnsupported
	}
	ops.remove(doc, id)
	return nil
}

// ToggleActive flips a campaign's active flag.
func (e *Engine) ToggleActive(doc *content.Document, id int) (content.Campaign, error) {
	for i := range doc.Campaigns {
		if doc.Campaigns[i].ID == id {
			doc.Campaigns[i].Active = !doc.Campaigns[i].Active
			return doc.Campaigns[i].Copy(), nil
		}
	}
	return content.Campaign{}, &content.NotFoundError{Kind: content.KindCampaign, ID: id}
}

// SetAllActive sets every campaign's active flag and returns how many flags changed.
func (e *Engine) SetAllActive(doc *content.Document, active bool) int {
	changed := 0
	for i := range doc.Campaigns {
		if doc.Campaigns[i].Active != active {
			doc.Campaigns[i].Active = active
			changed++
		}
	}
	return changed
}

var contactKeys = []string{"phone", "email", "address", "hours"}

// UpdateSettings merges site name, colors and contact details. Contact
// entries may be nested under "contact" or given flat, as a form sends them.
func (e *Engine) UpdateSettings(doc *content.Document, f Fields) (content.Settings, error) {
	in := f.clone()
	for _, k := range []string{"lastUpdated", "lastUpdatedBy", "schemaVersion"} {
		delete(in, k)
	}
	contact := map[string]any{}
	if nested, ok := in["contact"].(map[string]any); ok {
		for k, v := range nested {
			contact[k] = v
		}
	}
	delete(in, "contact")
	for _, k := range contactKeys {
		if v, ok := in[k]; ok {
			contact[k] = v
			delete(in, k)
		}
	}
	if len(contact) > 0 {
		in["contact"] = contact
	}

	next := doc.Settings
	if err := decode(in, &next); err != nil {
		return content.Settings{}, err
	}
	if strings.TrimSpace(next.SiteName) == "" {
		return content.Settings{}, &content.ValidationError{Reason: "invalid settings", Fields: map[string]string{"siteName": "must not be empty"}}
	}
	next.LastUpdated = doc.Settings.LastUpdated
	next.LastUpdatedBy = doc.Settings.LastUpdatedBy
	next.SchemaVersion = doc.Settings.SchemaVersion
	doc.Settings = next
	return next, nil
}

// AddReview appends a review to a staff member.
func (e *Engine) AddReview(doc *content.Document, staffID int, text string) (content.StaffMember, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return content.StaffMember{}, &content.ValidationError{Reason: "empty review", Fields: map[string]string{"review": "must not be empty"}}
	}
	for i := range doc.Staff {
		if doc.Staff[i].ID == staffID {
			doc.Staff[i].Reviews = append(doc.Staff[i].Reviews, text)
			return doc.Staff[i].Copy(), nil
		}
	}
	return content.StaffMember{}, &content.NotFoundError{Kind: content.KindStaff, ID: staffID}
}

func validateCampaign(c *content.Campaign) map[string]string {
	out := map[string]string{}
	if c.OriginalPrice != nil && *c.OriginalPrice < 0 {
		out["originalPrice"] = "must not be negative"
	}
	if c.SalePrice != nil && *c.SalePrice < 0 {
		out["salePrice"] = "must not be negative"
	}
	return out
}

func validateStaff(s *content.StaffMember) map[string]string {
	out := map[string]string{}
	if s.Experience < 0 {
		out["experience"] = "must not be negative"
	}
	// 0 means not yet rated
	if s.Rating != 0 && (s.Rating < 1 || s.Rating > 5) {
		out["rating"] = "must be between 1.0 and 5.0"
	}
	return out
}

func validateService(s *content.Service) map[string]string {
	out := map[string]string{}
	if s.Price < 0 {
		out["price"] = "must not be negative"
	}
	return out
}
