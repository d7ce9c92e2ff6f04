package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2024, 10, 1, 3, 4, 5, 0, time.UTC)

func newEngine() *Engine {
	return New().WithClock(func() time.Time { return clock })
}

func emptyDoc() *content.Document {
	d := &content.Document{}
	d.Normalize()
	return d
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	e := newEngine()
	doc := emptyDoc()

	c1, err := e.Create(doc, content.KindCampaign, Fields{"title": "A"})
	require.NoError(t, err)
	c2, err := e.Create(doc, content.KindCampaign, Fields{"title": "B"})
	require.NoError(t, err)
	assert.Equal(t, 1, c1.EntityID())
	assert.Equal(t, 2, c2.EntityID())

	// ids follow the current maximum
	doc.Campaigns = doc.Campaigns[1:]
	c3, err := e.Create(doc, content.KindCampaign, Fields{"title": "C"})
	require.NoError(t, err)
	assert.Equal(t, 3, c3.EntityID())
}

func TestCreate_NextIDIsMaxPlusOne(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()
	doc.Staff[1].ID = 40

	s, err := e.Create(doc, content.KindStaff, Fields{"name": "高橋", "id": 2})
	require.NoError(t, err)
	assert.Equal(t, 41, s.EntityID(), "client-supplied id is ignored")
}

func TestCreate_CoercesFormValues(t *testing.T) {
	e := newEngine()
	doc := emptyDoc()

	got, err := e.Create(doc, content.KindCampaign, Fields{
		"title":         "秋冬限定カラー",
		"originalPrice": "8,500",
		"salePrice":     "abc",
		"featured":      "on",
	})
	require.NoError(t, err)
	c := got.(content.Campaign)
	require.NotNil(t, c.OriginalPrice)
	assert.Equal(t, 8500, *c.OriginalPrice)
	require.NotNil(t, c.SalePrice)
	assert.Equal(t, 0, *c.SalePrice, "unparseable numbers become 0")
	assert.True(t, c.Featured)
	assert.False(t, c.Active, "absent checkbox is false")
	assert.Equal(t, c, doc.Campaigns[0])
}

func TestCreate_StaffDefaults(t *testing.T) {
	e := newEngine()
	doc := emptyDoc()

	got, err := e.Create(doc, content.KindStaff, Fields{"name": "山田愛", "experience": "8", "rating": "4.7"})
	require.NoError(t, err)
	s := got.(content.StaffMember)
	assert.Equal(t, content.Years(8), s.Experience)
	assert.Equal(t, 4.7, s.Rating)
	assert.Equal(t, []string{}, s.Reviews)

	got, err = e.Create(doc, content.KindStaff, Fields{"name": "新人", "reviews": []any{"丁寧です"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"丁寧です"}, got.(content.StaffMember).Reviews)
}

func TestCreate_NewsPublishedAtIsNow(t *testing.T) {
	e := newEngine()
	doc := emptyDoc()

	got, err := e.Create(doc, content.KindNews, Fields{"title": "臨時休業", "publishedAt": "1999-01-01T00:00:00.000Z"})
	require.NoError(t, err)
	assert.Equal(t, "2024-10-01T03:04:05.000Z", got.(content.NewsItem).PublishedAt)
}

func TestCreate_Validation(t *testing.T) {
	e := newEngine()
	doc := emptyDoc()

	_, err := e.Create(doc, content.KindService, Fields{"name": "カット", "price": -100})
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "price")
	assert.Empty(t, doc.Services)

	_, err = e.Create(doc, content.KindStaff, Fields{"name": "x", "rating": 6})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "rating")

	_, err = e.Create(doc, content.KindStaff, Fields{"name": "x"})
	require.NoError(t, err, "unrated staff is allowed")
}

func TestUpdate_ShallowMerge(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()
	before := doc.Campaigns[0].Copy()

	got, err := e.Update(doc, content.KindCampaign, 1, Fields{"title": "新タイトル", "id": 99})
	require.NoError(t, err)
	c := got.(content.Campaign)
	assert.Equal(t, 1, c.ID)
	assert.Equal(t, "新タイトル", c.Title)
	assert.Equal(t, before.Description, c.Description)
	assert.Equal(t, *before.SalePrice, *c.SalePrice)
	assert.Equal(t, before.Active, c.Active, "absent checkbox untouched in a merge")
	assert.Equal(t, "新タイトル", doc.Campaigns[0].Title)
}

func TestUpdate_NewsKeepsPublishedAt(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()
	orig := doc.News[0].PublishedAt

	_, err := e.Update(doc, content.KindNews, 1, Fields{"publishedAt": "2000-01-01T00:00:00.000Z", "content": "更新"})
	require.NoError(t, err)
	assert.Equal(t, orig, doc.News[0].PublishedAt)
	assert.Equal(t, "更新", doc.News[0].Content)
}

func TestUpdate_NotFoundLeavesCollection(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()
	before := doc.Clone()

	_, err := e.Update(doc, content.KindCampaign, 99, Fields{"title": "x"})
	var nf *content.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, content.KindCampaign, nf.Kind)
	assert.Equal(t, 99, nf.ID)
	assert.Equal(t, before, doc)
}

func TestUpdate_InvalidLeavesEntity(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()
	before := doc.Clone()

	_, err := e.Update(doc, content.KindCampaign, 1, Fields{"title": "x", "salePrice": -1})
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, before, doc)
}

func TestDelete(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()

	require.NoError(t, e.Delete(doc, content.KindNews, 2))
	require.Len(t, doc.News, 2)
	require.NoError(t, e.Delete(doc, content.KindNews, 2), "idempotent")
	require.Len(t, doc.News, 2)

	err := e.Delete(doc, content.KindCampaign, 1)
	require.True(t, errors.Is(err, content.ErrUnsupported))
	require.Len(t, doc.Campaigns, 3)
}

func TestToggleActive(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()

	c, err := e.ToggleActive(doc, 2)
	require.NoError(t, err)
	assert.False(t, c.Active)
	c, err = e.ToggleActive(doc, 2)
	require.NoError(t, err)
	assert.True(t, c.Active)

	_, err = e.ToggleActive(doc, 42)
	var nf *content.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestSetAllActive(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()

	n := e.SetAllActive(doc, false)
	assert.Equal(t, 3, n)
	for _, c := range doc.Campaigns {
		assert.False(t, c.Active)
	}
	assert.Equal(t, 0, e.SetAllActive(doc, false))

	doc.Campaigns[1].Active = true
	assert.Equal(t, 2, e.SetAllActive(doc, true))
	for _, c := range doc.Campaigns {
		assert.True(t, c.Active)
	}
}

func TestUpdateSettings(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()
	stamp := doc.Settings.LastUpdated

	got, err := e.UpdateSettings(doc, Fields{
		"siteName":    "サロン未来 表参道",
		"phone":       "03-0000-0000",
		"contact":     map[string]any{"hours": "9:00〜19:00"},
		"lastUpdated": "2000-01-01T00:00:00.000Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "サロン未来 表参道", got.SiteName)
	assert.Equal(t, "03-0000-0000", got.Contact.Phone)
	assert.Equal(t, "9:00〜19:00", got.Contact.Hours)
	assert.Equal(t, "info@salon-mirai.com", got.Contact.Email, "untouched contact keys kept")
	assert.Equal(t, stamp, got.LastUpdated)
	assert.Equal(t, got, doc.Settings)

	_, err = e.UpdateSettings(doc, Fields{"siteName": "  "})
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "サロン未来 表参道", doc.Settings.SiteName)
}

func TestAddReview(t *testing.T) {
	e := newEngine()
	doc := content.Defaults()

	s, err := e.AddReview(doc, 1, " 最高でした ")
	require.NoError(t, err)
	assert.Equal(t, "最高でした", s.Reviews[len(s.Reviews)-1])
	assert.Len(t, doc.Staff[0].Reviews, 3)

	_, err = e.AddReview(doc, 1, "")
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = e.AddReview(doc, 9, "x")
	var nf *content.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestUnknownKind(t *testing.T) {
	e := newEngine()
	_, err := e.Create(emptyDoc(), content.Kind("settings"), Fields{})
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Nil(t, Checkboxes(content.Kind("settings")))
	assert.Equal(t, []string{"featured", "active"}, Checkboxes(content.KindCampaign))
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, 4500, toInt("¥4,500"))
	assert.Equal(t, 0, toInt(""))
	assert.Equal(t, 0, toInt(nil))
	assert.Equal(t, 3, toInt(2.6))
	assert.Equal(t, 12, toInt([]string{"12"}))
	assert.True(t, toBool("on"))
	assert.True(t, toBool([]string{"false", "true"}))
	assert.False(t, toBool("off"))
	assert.True(t, toBool(1.0))
}

func TestCreate_RejectsHugeNumbers(t *testing.T) {
	e := newEngine()
	doc := emptyDoc()

	_, err := e.Create(doc, content.KindService, Fields{"name": "カット", "price": "1e300"})
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "price")
	assert.Empty(t, doc.Services)

	_, err = e.Create(doc, content.KindService, Fields{"name": "カット", "price": "4500"})
	require.NoError(t, err)
	_, err = e.Update(doc, content.KindService, 1, Fields{"price": -1e12})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 4500, doc.Services[0].Price)

	assert.Equal(t, maxFormInt, toInt("1e300"))
	assert.Equal(t, -maxFormInt, toInt(-1e300))
}
