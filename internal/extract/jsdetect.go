package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The detector errs toward rendering; a false positive only costs one
// browser round trip.

var spaMountSelectors = []string{
	"#__next", "#root", "#app", "[data-reactroot]", "[ng-app]",
	".search-results-app", "[data-buycard-app]",
}

var jsHintPhrases = []string{
	"enable javascript", "turn on javascript", "requires javascript",
	"needs javascript", "please enable cookies", "disabled scripts",
}

// LooksJSShell reports whether the document is a client-side shell
// whose listings only exist after rendering.
func LooksJSShell(doc *goquery.Document) bool {
	if doc == nil {
		return true
	}

	total := doc.Find("*").Length()
	scripts := doc.Find("script").Length()
	styles := doc.Find("style").Length()
	realNodes := total - scripts - styles

	if realNodes < 15 && scripts >= 3 {
		return true
	}

	bodyText := strings.ToLower(collapseSpace(doc.Find("body").Text()))
	for _, h := range jsHintPhrases {
		if strings.Contains(bodyText, h) {
			return true
		}
	}

	for _, sel := range spaMountSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}

	main := doc.Find("main").First()
	if main.Length() == 0 {
		main = doc.Find("body").First()
	}
	textLen := len(collapseSpace(main.Text()))
	if realNodes > 200 && textLen < 800 && scripts >= 3 {
		return true
	}

	return doc.Find(".app-loading-spinner").Length() > 0
}
