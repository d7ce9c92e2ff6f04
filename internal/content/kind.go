package content

import (
	"fmt"
	"strings"
)

// Kind names an entity collection.
type Kind string

const (
	KindCampaign Kind = "campaign"
	KindNews     Kind = "news"
	KindStaff    Kind = "staff"
	KindService  Kind = "service"
)

// Kinds lists the collection kinds in document order.
var Kinds = []Kind{KindCampaign, KindNews, KindStaff, KindService}

// ParseKind accepts singular or plural names as used in URLs ("campaigns", "services").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "campaign", "campaigns":
		return KindCampaign, nil
	case "news":
		return KindNews, nil
	case "staff":
		return KindStaff, nil
	case "service", "services":
		return KindService, nil
	}
	return "", fmt.Errorf("unknown content kind %q", s)
}
