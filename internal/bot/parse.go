package bot

import (
	"fmt"
	"strconv"
	"strings"

	"headlines/internal/classify"
	"headlines/internal/model"
)

// PageArgs holds the parsed arguments of /news and /social.
type PageArgs struct {
	Page     int
	Category model.Category
}

// ParsePageArgs parses "[page] [category]" in either order.
func ParsePageArgs(args string) (PageArgs, error) {
	out := PageArgs{Page: 1}
	var havePage, haveCategory bool
	for _, tok := range strings.Fields(args) {
		if n, err := strconv.Atoi(tok); err == nil {
			if havePage {
				return PageArgs{}, fmt.Errorf("page given twice")
			}
			if n < 1 {
				return PageArgs{}, fmt.Errorf("page must be at least 1")
			}
			out.Page = n
			havePage = true
			continue
		}
		if haveCategory {
			return PageArgs{}, fmt.Errorf("category given twice")
		}
		cat, err := classify.ParseCategory(tok)
		if err != nil {
			return PageArgs{}, err
		}
		out.Category = cat
		haveCategory = true
	}
	return out, nil
}

// PageCallback is the payload of a Prev/Next button.
type PageCallback struct {
	Kind     model.Kind
	Page     int
	Category model.Category
}

// Data encodes the callback as "<kind>:<page>:<category>".
func (c PageCallback) Data() string {
	return fmt.Sprintf("%s:%d:%s", c.Kind, c.Page, c.Category)
}

// ParsePageCallback decodes callback data produced by PageCallback.Data.
func ParsePageCallback(data string) (PageCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return PageCallback{}, fmt.Errorf("malformed callback %q", data)
	}

	var kind model.Kind
	switch parts[0] {
	case cmdNews:
		kind = model.KindNews
	case cmdSocial:
		kind = model.KindSocial
	default:
		return PageCallback{}, fmt.Errorf("unknown callback action %q", parts[0])
	}

	page, err := strconv.Atoi(parts[1])
	if err != nil || page < 1 {
		return PageCallback{}, fmt.Errorf("invalid page %q", parts[1])
	}
	cat, err := classify.ParseCategory(parts[2])
	if err != nil {
		return PageCallback{}, err
	}
	return PageCallback{Kind: kind, Page: page, Category: cat}, nil
}
