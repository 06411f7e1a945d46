package parser

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Form is an HTML form found for the login step: its action URL and
// the pre-filled input values keyed by input name.
type Form struct {
	URL  string
	Data map[string]string
}

// FindForm returns the first form containing an input named userField
// (and one named passwordField when that is non-empty). Hidden input
// values are carried over so the login POST keeps CSRF tokens and the
// like.
func FindForm(r io.Reader, userField, passwordField string) (*Form, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	var form *Form
	doc.Find("form").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		fields := make(map[string]string)
		hasUser, hasPassword := false, false
		sel.Find("input").Each(func(_ int, input *goquery.Selection) {
			name, ok := input.Attr("name")
			if !ok || name == "" {
				return
			}
			switch {
			case strings.EqualFold(name, userField):
				hasUser = true
			case passwordField != "" && strings.EqualFold(name, passwordField):
				hasPassword = true
			default:
				if value, ok := input.Attr("value"); ok {
					fields[name] = value
				}
			}
		})
		if hasUser && (passwordField == "" || hasPassword) {
			action, _ := sel.Attr("action")
			form = &Form{URL: action, Data: fields}
			return false
		}
		return true
	})
	return form, nil
}
