package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"slices"
	"strings"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/cardapiofacil/internal/templ/components/field"
	"github.com/DukeRupert/cardapiofacil/internal/templ/components/toast"
)

var titleCaser = cases.Title(language.BrazilianPortuguese)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"year": func() int {
			return time.Now().Year()
		},

		// String functions
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"title": func(v any) string {
			return titleCaser.String(strings.ToLower(fmt.Sprint(v)))
		},
		// firstName returns the first word of a name, title cased.
		"firstName": func(name string) string {
			fields := strings.Fields(name)
			if len(fields) == 0 {
				return ""
			}
			return titleCaser.String(strings.ToLower(fields[0]))
		},
		"has": func(list []string, s string) bool {
			return slices.Contains(list, s)
		},
		// JSON encoding for safe JavaScript embedding
		"json": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return template.JS(`""`)
			}
			return template.JS(b)
		},

		// Collection functions
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil
				}
				dict[key] = values[i+1]
			}
			return dict
		},
		"seq": func(start, end int) []int {
			var result []int
			for i := start; i <= end; i++ {
				result = append(result, i)
			}
			return result
		},

		// Form helpers
		"csrfField": func(token string) template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="csrf_token" value="%s">`, template.HTMLEscapeString(token)))
		},
		"inputClass": func(message string) string {
			return field.InputClass(message != "", "")
		},
		"fieldError": func(name, message string) (template.HTML, error) {
			return templ.ToGoHTML(context.Background(), field.Error(name, message))
		},
		"errorID": field.ErrorID,
		"toast": func(d toast.Data) (template.HTML, error) {
			return templ.ToGoHTML(context.Background(), toast.Toast(d))
		},
	}
}
