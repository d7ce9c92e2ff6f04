package content

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is the document shape written by this build.
const SchemaVersion = 1

// TimestampLayout is the ISO-8601 form used for publishedAt and lastUpdated.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t in UTC with millisecond precision.
func Timestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// ParseTimestamp accepts any RFC3339 timestamp.
func ParseTimestamp(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// Document is the whole site content. It is read and written as one unit.
type Document struct {
	Campaigns     []Campaign    `json:"campaigns" bson:"campaigns"`
	News          []NewsItem    `json:"news" bson:"news"`
	Staff         []StaffMember `json:"staff" bson:"staff"`
	Services      []Service     `json:"services" bson:"services"`
	Settings      Settings      `json:"settings" bson:"settings"`
	SchemaVersion int           `json:"schemaVersion" bson:"schemaVersion"`
}

type Campaign struct {
	ID            int    `json:"id" bson:"id"`
	Title         string `json:"title" bson:"title"`
	Period        string `json:"period" bson:"period"`
	Description   string `json:"description" bson:"description"`
	OriginalPrice *int   `json:"originalPrice,omitempty" bson:"originalPrice,omitempty"`
	SalePrice     *int   `json:"salePrice,omitempty" bson:"salePrice,omitempty"`
	Badge         string `json:"badge" bson:"badge"`
	Featured      bool   `json:"featured" bson:"featured"`
	Active        bool   `json:"active" bson:"active"`
	Tags          string `json:"tags" bson:"tags"`
	Image         string `json:"image" bson:"image"`
}

type NewsItem struct {
	ID          int    `json:"id" bson:"id"`
	Title       string `json:"title" bson:"title"`
	Content     string `json:"content" bson:"content"`
	PublishedAt string `json:"publishedAt" bson:"publishedAt"`
	Featured    bool   `json:"featured" bson:"featured"`
}

type StaffMember struct {
	ID          int      `json:"id" bson:"id"`
	Name        string   `json:"name" bson:"name"`
	Role        string   `json:"role" bson:"role"`
	Experience  Years    `json:"experience" bson:"experience"`
	Bio         string   `json:"bio" bson:"bio"`
	Specialties string   `json:"specialties" bson:"specialties"`
	Rating      float64  `json:"rating" bson:"rating"`
	Photo       string   `json:"photo" bson:"photo"`
	Reviews     []string `json:"reviews" bson:"reviews"`
}

type Service struct {
	ID          int    `json:"id" bson:"id"`
	Category    string `json:"category" bson:"category"`
	Name        string `json:"name" bson:"name"`
	Price       int    `json:"price" bson:"price"`
	PriceNote   string `json:"priceNote" bson:"priceNote"`
	Description string `json:"description" bson:"description"`
	Features    string `json:"features" bson:"features"`
}

type Contact struct {
	Phone   string `json:"phone" bson:"phone"`
	Email   string `json:"email" bson:"email"`
	Address string `json:"address" bson:"address"`
	Hours   string `json:"hours" bson:"hours"`
}

type Settings struct {
	SiteName       string  `json:"siteName" bson:"siteName"`
	PrimaryColor   string  `json:"primaryColor" bson:"primaryColor"`
	SecondaryColor string  `json:"secondaryColor" bson:"secondaryColor"`
	AccentColor    string  `json:"accentColor" bson:"accentColor"`
	Contact        Contact `json:"contact" bson:"contact"`
	LastUpdated    string  `json:"lastUpdated,omitempty" bson:"lastUpdated,omitempty"`
	LastUpdatedBy  string  `json:"lastUpdatedBy,omitempty" bson:"lastUpdatedBy,omitempty"`
	SchemaVersion  int     `json:"schemaVersion,omitempty" bson:"schemaVersion,omitempty"`
}

// Years is a whole number of years. Older documents store it as a numeric string.
type Years int

func (y *Years) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*y = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*y = 0
			return nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		*y = Years(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("experience: %q is not a number", s)
	}
	*y = Years(math.Round(f))
	return nil
}

// Entity is implemented by every collection item.
type Entity interface {
	EntityID() int
}

func (c Campaign) EntityID() int    { return c.ID }
func (n NewsItem) EntityID() int    { return n.ID }
func (s StaffMember) EntityID() int { return s.ID }
func (s Service) EntityID() int     { return s.ID }

func (c *Campaign) SetID(id int)    { c.ID = id }
func (n *NewsItem) SetID(id int)    { n.ID = id }
func (s *StaffMember) SetID(id int) { s.ID = id }
func (s *Service) SetID(id int)     { s.ID = id }

// Copy returns a campaign that shares no pointers with c.
func (c Campaign) Copy() Campaign {
	c.OriginalPrice = copyInt(c.OriginalPrice)
	c.SalePrice = copyInt(c.SalePrice)
	return c
}

func (n NewsItem) Copy() NewsItem { return n }

func (s StaffMember) Copy() StaffMember {
	if s.Reviews != nil {
		s.Reviews = append([]string(nil), s.Reviews...)
	}
	return s
}

func (s Service) Copy() Service { return s }

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr is a convenience for optional prices.
func IntPtr(v int) *int { return &v }

// Clone deep-copies the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{Settings: d.Settings, SchemaVersion: d.SchemaVersion}
	out.Campaigns = cloneSlice(d.Campaigns, Campaign.Copy)
	out.News = cloneSlice(d.News, NewsItem.Copy)
	out.Staff = cloneSlice(d.Staff, StaffMember.Copy)
	out.Services = cloneSlice(d.Services, Service.Copy)
	return out
}

func cloneSlice[T any](in []T, cp func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = cp(v)
	}
	return out
}

// Normalize replaces nil collections and review lists with empty ones and
// fills a missing schema version, so the encoded form always has all fields.
func (d *Document) Normalize() {
	if d.Campaigns == nil {
		d.Campaigns = []Campaign{}
	}
	if d.News == nil {
		d.News = []NewsItem{}
	}
	if d.Staff == nil {
		d.Staff = []StaffMember{}
	}
	if d.Services == nil {
		d.Services = []Service{}
	}
	for i := range d.Staff {
		if d.Staff[i].Reviews == nil {
			d.Staff[i].Reviews = []string{}
		}
	}
	if d.SchemaVersion < SchemaVersion {
		d.SchemaVersion = SchemaVersion
	}
}
