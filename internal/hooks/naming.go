package hooks

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// ItemNameFor derives the item name recorded in audits from a collection name:
// the last word is singularised and every word is title-cased ("test_objects" -> "TestObject").
func ItemNameFor(collection string) string {
	words := strings.FieldsFunc(collection, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return collection
	}
	words[len(words)-1] = inflection.Singular(words[len(words)-1])
	var b strings.Builder
	for _, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
