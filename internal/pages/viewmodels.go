package pages

import "github.com/salonmirai/sitesync/internal/content"

// PageID names a public page.
type PageID string

const (
	PageHome         PageID = "home"
	PageCampaignList PageID = "campaignList"
	PageStaffList    PageID = "staffList"
	PageServiceList  PageID = "serviceList"
	PageAbout        PageID = "about"
)

// Pages lists every public page.
var Pages = []PageID{PageHome, PageCampaignList, PageStaffList, PageServiceList, PageAbout}

const (
	DefaultCampaignImage = "images_top/default.jpg"
	DefaultStaffPhoto    = "images_about/default-staff.jpg"
	UncategorizedLabel   = "その他"
)

type Colors struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
}

// Common is shown on every page.
type Common struct {
	SiteName    string          `json:"siteName"`
	PageTitle   string          `json:"pageTitle"`
	Contact     content.Contact `json:"contact"`
	Colors      Colors          `json:"colors"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
}

type PriceView struct {
	Original        int    `json:"original"`
	OriginalLabel   string `json:"originalLabel"`
	Sale            *int   `json:"sale,omitempty"`
	SaleLabel       string `json:"saleLabel,omitempty"`
	DiscountPercent *int   `json:"discountPercent,omitempty"`
}

type CampaignCard struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Period      string     `json:"period"`
	Description string     `json:"description"`
	Excerpt     string     `json:"excerpt"`
	Badge       string     `json:"badge,omitempty"`
	Featured    bool       `json:"featured"`
	Tags        []string   `json:"tags"`
	Image       string     `json:"image"`
	Price       *PriceView `json:"price,omitempty"`
}

type NewsView struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Excerpt     string `json:"excerpt"`
	PublishedAt string `json:"publishedAt"`
	Date        string `json:"date"`
	Featured    bool   `json:"featured"`
}

type StaffCard struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Experience  int      `json:"experience"`
	Bio         string   `json:"bio"`
	Excerpt     string   `json:"excerpt"`
	Specialties []string `json:"specialties"`
	Rating      float64  `json:"rating"`
	Stars       Stars    `json:"stars"`
	Photo       string   `json:"photo"`
	Reviews     []string `json:"reviews"`
}

type ServiceCard struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       int      `json:"price"`
	PriceLabel  string   `json:"priceLabel"`
	Description string   `json:"description"`
	Excerpt     string   `json:"excerpt"`
	Features    []string `json:"features"`
}

type ServiceGroup struct {
	Category string        `json:"category"`
	Services []ServiceCard `json:"services"`
}

type HomePage struct {
	Common    Common         `json:"common"`
	Featured  *CampaignCard  `json:"featured,omitempty"`
	Campaigns []CampaignCard `json:"campaigns"`
	News      []NewsView     `json:"news"`
	Staff     []StaffCard    `json:"staff"`
	Services  []ServiceCard  `json:"services"`
}

type CampaignListPage struct {
	Common    Common         `json:"common"`
	Campaigns []CampaignCard `json:"campaigns"`
	News      []NewsView     `json:"news"`
}

type StaffListPage struct {
	Common Common      `json:"common"`
	Staff  []StaffCard `json:"staff"`
	News   []NewsView  `json:"news"`
}

type ServiceListPage struct {
	Common Common         `json:"common"`
	Groups []ServiceGroup `json:"groups"`
	News   []NewsView     `json:"news"`
}

type AboutPage struct {
	Common   Common          `json:"common"`
	SiteName string          `json:"siteName"`
	Contact  content.Contact `json:"contact"`
	News     []NewsView      `json:"news"`
}
