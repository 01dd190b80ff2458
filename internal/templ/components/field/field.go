// Package field renders the pieces around a form input: its classes and
// its inline error message.
package field

import (
	"context"
	"fmt"
	"io"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"
)

const (
	inputBase    = "block w-full rounded-md border border-gray-300 px-3 py-2 text-base shadow-sm focus:border-emerald-500 focus:outline-none focus:ring-2 focus:ring-emerald-500"
	inputInvalid = "border-red-500 focus:border-red-500 focus:ring-red-500"
)

// InputClass returns the class list of an input, switching to the error
// styling when invalid.
func InputClass(invalid bool, extra string) string {
	if invalid {
		return twmerge.Merge(inputBase, inputInvalid, extra)
	}
	return twmerge.Merge(inputBase, extra)
}

// ErrorID is the id of the error element of a field, referenced by the
// input's aria-describedby.
func ErrorID(name string) string {
	return name + "-error"
}

// Error renders the inline error of a field. An empty message renders an
// empty live region so screen readers announce it once it fills.
func Error(name, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<p id="%s" class="mt-1 min-h-5 text-sm text-red-600" aria-live="polite">%s</p>`,
			templ.EscapeString(ErrorID(name)), templ.EscapeString(message),
		)
		return err
	})
}
