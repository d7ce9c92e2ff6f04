package pages

import (
	"fmt"
	"sort"
	"strings"

	"github.com/salonmirai/sitesync/internal/content"
)

const (
	homeCampaigns = 3
	homeNews      = 3
	homeStaff     = 3
	homeServices  = 4
	sectionNews   = 3

	campaignExcerpt = 80
	newsExcerpt     = 100
	serviceExcerpt  = 60
)

// Project builds the view-model of one page. It never modifies doc.
func Project(doc *content.Document, page PageID) (interface{}, error) {
	switch page {
	case PageHome:
		return Home(doc), nil
	case PageCampaignList:
		return CampaignList(doc), nil
	case PageStaffList:
		return StaffList(doc), nil
	case PageServiceList:
		return ServiceList(doc), nil
	case PageAbout:
		return About(doc), nil
	}
	return nil, fmt.Errorf("unknown page %q", page)
}

func Home(doc *content.Document) HomePage {
	active := activeCampaigns(doc)
	vm := HomePage{
		Common:    commonOf(doc),
		Campaigns: make([]CampaignCard, 0, homeCampaigns),
		News:      latestNews(doc, homeNews),
		Staff:     make([]StaffCard, 0, homeStaff),
		Services:  make([]ServiceCard, 0, homeServices),
	}
	if f, ok := FeaturedCampaign(doc); ok {
		card := campaignCard(f)
		vm.Featured = &card
	}
	for _, c := range head(active, homeCampaigns) {
		vm.Campaigns = append(vm.Campaigns, campaignCard(c))
	}
	for _, s := range head(doc.Staff, homeStaff) {
		vm.Staff = append(vm.Staff, staffCard(s))
	}
	for _, s := range head(doc.Services, homeServices) {
		vm.Services = append(vm.Services, serviceCard(s))
	}
	return vm
}

func CampaignList(doc *content.Document) CampaignListPage {
	active := activeCampaigns(doc)
	vm := CampaignListPage{
		Common:    commonOf(doc),
		Campaigns: make([]CampaignCard, 0, len(active)),
		News:      latestNews(doc, sectionNews),
	}
	for _, c := range active {
		vm.Campaigns = append(vm.Campaigns, campaignCard(c))
	}
	return vm
}

func StaffList(doc *content.Document) StaffListPage {
	vm := StaffListPage{
		Common: commonOf(doc),
		Staff:  make([]StaffCard, 0, len(doc.Staff)),
		News:   latestNews(doc, sectionNews),
	}
	for _, s := range doc.Staff {
		vm.Staff = append(vm.Staff, staffCard(s))
	}
	return vm
}

// ServiceList groups services by category in first-seen order.
func ServiceList(doc *content.Document) ServiceListPage {
	vm := ServiceListPage{
		Common: commonOf(doc),
		Groups: []ServiceGroup{},
		News:   latestNews(doc, sectionNews),
	}
	index := map[string]int{}
	for _, s := range doc.Services {
		cat := strings.TrimSpace(s.Category)
		if cat == "" {
			cat = UncategorizedLabel
		}
		i, ok := index[cat]
		if !ok {
			i = len(vm.Groups)
			index[cat] = i
			vm.Groups = append(vm.Groups, ServiceGroup{Category: cat})
		}
		vm.Groups[i].Services = append(vm.Groups[i].Services, serviceCard(s))
	}
	return vm
}

func About(doc *content.Document) AboutPage {
	return AboutPage{
		Common:   commonOf(doc),
		SiteName: doc.Settings.SiteName,
		Contact:  doc.Settings.Contact,
		News:     latestNews(doc, sectionNews),
	}
}

// FeaturedCampaign is the first active featured campaign, else the first active one.
func FeaturedCampaign(doc *content.Document) (content.Campaign, bool) {
	active := activeCampaigns(doc)
	for _, c := range active {
		if c.Featured {
			return c, true
		}
	}
	if len(active) > 0 {
		return active[0], true
	}
	return content.Campaign{}, false
}

func commonOf(doc *content.Document) Common {
	s := doc.Settings
	c := Common{
		SiteName:  s.SiteName,
		PageTitle: s.SiteName + " - 美容室",
		Contact:   s.Contact,
		Colors:    Colors{Primary: s.PrimaryColor, Secondary: s.SecondaryColor, Accent: s.AccentColor},
	}
	if s.LastUpdated != "" {
		c.LastUpdated = Date(s.LastUpdated)
	}
	return c
}

func activeCampaigns(doc *content.Document) []content.Campaign {
	out := make([]content.Campaign, 0, len(doc.Campaigns))
	for _, c := range doc.Campaigns {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}

// latestNews returns up to n news items, newest first.
func latestNews(doc *content.Document, n int) []NewsView {
	items := append([]content.NewsItem(nil), doc.News...)
	sort.SliceStable(items, func(i, j int) bool {
		ti, ei := content.ParseTimestamp(items[i].PublishedAt)
		tj, ej := content.ParseTimestamp(items[j].PublishedAt)
		if ei != nil || ej != nil {
			return false
		}
		return ti.After(tj)
	})
	out := make([]NewsView, 0, n)
	for _, it := range head(items, n) {
		out = append(out, NewsView{
			ID:          it.ID,
			Title:       it.Title,
			Content:     it.Content,
			Excerpt:     Excerpt(it.Content, newsExcerpt),
			PublishedAt: it.PublishedAt,
			Date:        Date(it.PublishedAt),
			Featured:    it.Featured,
		})
	}
	return out
}

func campaignCard(c content.Campaign) CampaignCard {
	card := CampaignCard{
		ID:          c.ID,
		Title:       c.Title,
		Period:      c.Period,
		Description: c.Description,
		Excerpt:     Excerpt(c.Description, campaignExcerpt),
		Badge:       c.Badge,
		Featured:    c.Featured,
		Tags:        SplitList(c.Tags),
		Image:       c.Image,
	}
	if strings.TrimSpace(card.Image) == "" {
		card.Image = DefaultCampaignImage
	}
	if c.OriginalPrice != nil && *c.OriginalPrice > 0 {
		p := &PriceView{Original: *c.OriginalPrice, OriginalLabel: Yen(*c.OriginalPrice)}
		if c.SalePrice != nil {
			sale := *c.SalePrice
			p.Sale = &sale
			p.SaleLabel = Yen(sale)
		}
		if d, ok := Discount(c.OriginalPrice, c.SalePrice); ok {
			p.DiscountPercent = &d
		}
		card.Price = p
	}
	return card
}

func staffCard(s content.StaffMember) StaffCard {
	card := StaffCard{
		ID:          s.ID,
		Name:        s.Name,
		Role:        s.Role,
		Experience:  int(s.Experience),
		Bio:         s.Bio,
		Excerpt:     Excerpt(s.Bio, serviceExcerpt),
		Specialties: SplitList(s.Specialties),
		Rating:      s.Rating,
		Stars:       RatingStars(s.Rating),
		Photo:       s.Photo,
		Reviews:     append([]string{}, s.Reviews...),
	}
	if strings.TrimSpace(card.Photo) == "" {
		card.Photo = DefaultStaffPhoto
	}
	return card
}

func serviceCard(s content.Service) ServiceCard {
	return ServiceCard{
		ID:          s.ID,
		Name:        s.Name,
		Category:    s.Category,
		Price:       s.Price,
		PriceLabel:  Yen(s.Price) + s.PriceNote,
		Description: s.Description,
		Excerpt:     Excerpt(s.Description, serviceExcerpt),
		Features:    SplitLines(s.Features),
	}
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
